// internal/store/creator.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Creator provisions isolated stores through an admin connection to the
// data platform. CREATE DATABASE cannot run inside a transaction, so each
// call is a single statement; DropStore exists for provisioning rollback
// and is best-effort by contract.
type Creator struct {
	admin *sql.DB

	// credentialsRef is the opaque reference handed to the directory for
	// every store this creator provisions. The platform runs one applicat-
	// ion role across isolated stores; per-store roles would change only
	// this field.
	credentialsRef string
}

func NewCreator(adminDSN, credentialsRef string) (*Creator, error) {
	db, err := sql.Open("postgres", adminDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open admin connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect as admin: %w", err)
	}
	return &Creator{admin: db, credentialsRef: credentialsRef}, nil
}

func (c *Creator) CreateStore(ctx context.Context, storeName string) (string, error) {
	_, err := c.admin.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(storeName))
	if err != nil {
		return "", fmt.Errorf("create database %s: %w", storeName, err)
	}
	return c.credentialsRef, nil
}

func (c *Creator) DropStore(ctx context.Context, storeName string) error {
	_, err := c.admin.ExecContext(ctx, "DROP DATABASE IF EXISTS "+pq.QuoteIdentifier(storeName))
	if err != nil {
		return fmt.Errorf("drop database %s: %w", storeName, err)
	}
	return nil
}

func (c *Creator) Close() error { return c.admin.Close() }
