// internal/directory/postgres.go
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"clinica-cloud/internal/model"
)

var (
	// ErrTenantNotFound means no directory row matches the subdomain.
	ErrTenantNotFound = errors.New("tenant not found in directory")
	// ErrSubdomainExists is returned when an insert loses the uniqueness
	// race on subdomain.
	ErrSubdomainExists = errors.New("subdomain already registered")
)

const uniqueViolation = "23505"

// Client reads and writes the central tenant registry. It never caches:
// caching handles is the connection cache's job, which keeps this layer
// trivially testable.
type Client struct {
	DB *sql.DB
}

func NewClient(dsn string) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to directory db: %w", err)
	}
	return &Client{DB: db}, nil
}

func (c *Client) Close() error { return c.DB.Close() }

const tenantColumns = `id, subdomain, display_name, contact_email, status,
		store_locator, store_credentials_ref, plan_tier, limits,
		configuration_pending, created_at, last_access_at`

// Lookup fetches one tenant by subdomain. A missing row is ErrTenantNotFound;
// every other failure is a backend error, never a stale or partial record.
func (c *Client) Lookup(ctx context.Context, subdomain string) (*model.TenantRecord, error) {
	row := c.DB.QueryRowContext(ctx, `
		SELECT `+tenantColumns+`
		FROM tenant_directory
		WHERE subdomain = $1
	`, subdomain)

	rec, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory lookup failed: %w", err)
	}
	return rec, nil
}

// Insert registers a new tenant. Uniqueness on subdomain is enforced by the
// database constraint, not a prior read, so two concurrent provisioning
// calls for the same subdomain cannot both win.
func (c *Client) Insert(ctx context.Context, rec *model.TenantRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	limits, err := rec.Limits.Encode()
	if err != nil {
		return fmt.Errorf("encode limits: %w", err)
	}

	_, err = c.DB.ExecContext(ctx, `
		INSERT INTO tenant_directory
			(id, subdomain, display_name, contact_email, status,
			 store_locator, store_credentials_ref, plan_tier, limits,
			 configuration_pending, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.ID, rec.Subdomain, rec.DisplayName, rec.ContactEmail, rec.Status,
		rec.StoreLocator, rec.StoreCredentialsRef, rec.PlanTier, limits,
		rec.ConfigurationPending, rec.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrSubdomainExists
		}
		return fmt.Errorf("directory insert failed: %w", err)
	}
	return nil
}

// UpdateStatus moves a tenant between lifecycle states. Records are never
// deleted; suspension and blocking are status flips only.
func (c *Client) UpdateStatus(ctx context.Context, subdomain string, status model.Status) error {
	if !status.Valid() {
		return model.ErrInvalidStatus
	}
	res, err := c.DB.ExecContext(ctx, `
		UPDATE tenant_directory SET status = $1 WHERE subdomain = $2
	`, status, subdomain)
	if err != nil {
		return fmt.Errorf("directory status update failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTenantNotFound
	}
	return nil
}

// TouchLastAccess records a successful resolution for the tenant.
func (c *Client) TouchLastAccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := c.DB.ExecContext(ctx, `
		UPDATE tenant_directory SET last_access_at = $1 WHERE id = $2
	`, at, id)
	if err != nil {
		return fmt.Errorf("last-access update failed: %w", err)
	}
	return nil
}

// ClearConfigurationPending marks DNS setup as complete.
func (c *Client) ClearConfigurationPending(ctx context.Context, subdomain string) error {
	res, err := c.DB.ExecContext(ctx, `
		UPDATE tenant_directory SET configuration_pending = FALSE WHERE subdomain = $1
	`, subdomain)
	if err != nil {
		return fmt.Errorf("configuration-pending update failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTenantNotFound
	}
	return nil
}

// ListTenants returns every directory row, optionally filtered to tenants
// still waiting on DNS setup.
func (c *Client) ListTenants(ctx context.Context, pendingOnly bool) ([]model.TenantRecord, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenant_directory ORDER BY subdomain`
	if pendingOnly {
		query = `SELECT ` + tenantColumns + ` FROM tenant_directory
			WHERE configuration_pending ORDER BY subdomain`
	}

	rows, err := c.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("directory list failed: %w", err)
	}
	defer rows.Close()

	var tenants []model.TenantRecord
	for rows.Next() {
		rec, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("directory list scan failed: %w", err)
		}
		tenants = append(tenants, *rec)
	}
	return tenants, rows.Err()
}

// CountByStatus aggregates the directory for the monitoring surface.
func (c *Client) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := c.DB.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM tenant_directory GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("directory count failed: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var s model.Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("directory count scan failed: %w", err)
		}
		counts[s] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*model.TenantRecord, error) {
	var rec model.TenantRecord
	var rawLimits []byte
	if err := row.Scan(
		&rec.ID, &rec.Subdomain, &rec.DisplayName, &rec.ContactEmail, &rec.Status,
		&rec.StoreLocator, &rec.StoreCredentialsRef, &rec.PlanTier, &rawLimits,
		&rec.ConfigurationPending, &rec.CreatedAt, &rec.LastAccessAt,
	); err != nil {
		return nil, err
	}

	limits, err := model.DecodeLimits(rawLimits, rec.PlanTier)
	if err != nil {
		return nil, err
	}
	rec.Limits = limits

	// Reject malformed rows at the read boundary rather than letting a
	// half-configured store surface as a connection failure later.
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}
