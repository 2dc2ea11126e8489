// internal/store/connector.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/lib/pq"
)

// SecretResolver turns an opaque credentials reference from the tenant
// directory into the actual secret. The default reads the environment;
// deployments with a secret manager plug their own resolver in.
type SecretResolver func(ref string) (string, error)

// EnvSecretResolver resolves "env:NAME" references.
func EnvSecretResolver(ref string) (string, error) {
	name, ok := strings.CutPrefix(ref, "env:")
	if !ok {
		return "", fmt.Errorf("unsupported credentials ref %q", ref)
	}
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("credentials ref %q resolves to empty secret", ref)
	}
	return v, nil
}

// Connector builds store pools over lib/pq. The shared pool is opened once
// at construction; isolated pools are opened per tenant on demand.
type Connector struct {
	shared     *sql.DB
	sharedName string

	// dsnTemplate expands to a DSN with the resolved secret and the store
	// locator, in that order.
	dsnTemplate string
	secrets     SecretResolver
}

func NewConnector(sharedDSN, sharedName, isolatedDSNTemplate string, secrets SecretResolver) (*Connector, error) {
	if secrets == nil {
		secrets = EnvSecretResolver
	}
	db, err := sql.Open("postgres", sharedDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open shared store: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to shared store: %w", err)
	}
	return &Connector{
		shared:      db,
		sharedName:  sharedName,
		dsnTemplate: isolatedDSNTemplate,
		secrets:     secrets,
	}, nil
}

// Shared returns the shared-RLS pool and its deterministic store name.
func (c *Connector) Shared() (*sql.DB, string) {
	return c.shared, c.sharedName
}

// Isolated opens a pool against a tenant's dedicated store.
func (c *Connector) Isolated(ctx context.Context, locator, credentialsRef string) (*sql.DB, error) {
	secret, err := c.secrets(credentialsRef)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials for %s: %w", locator, err)
	}

	db, err := sql.Open("postgres", fmt.Sprintf(c.dsnTemplate, secret, locator))
	if err != nil {
		return nil, fmt.Errorf("open isolated store %s: %w", locator, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to isolated store %s: %w", locator, err)
	}
	return db, nil
}

// Close tears down the shared pool.
func (c *Connector) Close() error {
	return c.shared.Close()
}
