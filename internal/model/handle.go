// internal/model/handle.go
package model

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// StoreMode says how a connection handle isolates tenant data.
type StoreMode string

const (
	// ModeIsolated binds to a store dedicated to one tenant.
	ModeIsolated StoreMode = "isolated"
	// ModeSharedRLS binds to the shared store; row-level security policies
	// keyed on TenantID restrict every query to the tenant's rows.
	ModeSharedRLS StoreMode = "shared-rls"
)

// ConnectionHandle is a live binding to a tenant's data store. The
// connection cache owns cached handles; request handlers borrow them for
// the duration of one request and must not retain them, since the cache
// may evict or invalidate at any point between requests.
type ConnectionHandle struct {
	TenantID   uuid.UUID
	Mode       StoreMode
	StoreName  string
	CreatedAt  time.Time
	LastUsedAt time.Time
	Healthy    bool

	// DB is the underlying pool. For shared-RLS handles it is the shared
	// pool and close is a no-op; isolated handles own their pool.
	DB    *sql.DB
	close func() error
}

// NewIsolatedHandle wraps a dedicated pool that the handle owns.
func NewIsolatedHandle(tenantID uuid.UUID, storeName string, db *sql.DB) *ConnectionHandle {
	now := time.Now()
	return &ConnectionHandle{
		TenantID:   tenantID,
		Mode:       ModeIsolated,
		StoreName:  storeName,
		CreatedAt:  now,
		LastUsedAt: now,
		Healthy:    true,
		DB:         db,
		close:      db.Close,
	}
}

// NewSharedHandle wraps the shared pool. Closing the handle never closes
// the pool, which outlives every tenant handle.
func NewSharedHandle(tenantID uuid.UUID, storeName string, db *sql.DB) *ConnectionHandle {
	now := time.Now()
	return &ConnectionHandle{
		TenantID:   tenantID,
		Mode:       ModeSharedRLS,
		StoreName:  storeName,
		CreatedAt:  now,
		LastUsedAt: now,
		Healthy:    true,
		DB:         db,
		close:      func() error { return nil },
	}
}

// Close releases the handle's underlying resources.
func (h *ConnectionHandle) Close() error {
	h.Healthy = false
	if h.close == nil {
		return nil
	}
	return h.close()
}
