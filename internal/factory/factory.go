// internal/factory/factory.go
package factory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"clinica-cloud/internal/cache"
	"clinica-cloud/internal/directory"
	"clinica-cloud/internal/metrics"
	"clinica-cloud/internal/model"
	"clinica-cloud/internal/resolver"
)

// Caller-facing error taxonomy. Request handlers branch on these to pick
// the user-visible behavior: not-found page, suspension notice, or a
// retryable service-unavailable page.
var (
	ErrUnknownTenant        = errors.New("unknown tenant")
	ErrTenantNotActive      = errors.New("tenant is not active")
	ErrDirectoryUnavailable = errors.New("tenant directory unavailable")
)

// Directory is the read surface the factory needs from the tenant registry.
type Directory interface {
	Lookup(ctx context.Context, subdomain string) (*model.TenantRecord, error)
	TouchLastAccess(ctx context.Context, id uuid.UUID, at time.Time) error
}

// StoreConnector constructs the underlying pools. Isolated-store
// construction crosses a network boundary and may block; the shared pool
// is opened once at startup.
type StoreConnector interface {
	Shared() (db *sql.DB, storeName string)
	Isolated(ctx context.Context, locator, credentialsRef string) (*sql.DB, error)
}

// ConnectionFactory resolves hostnames to tenants and hands out connection
// handles, going through the cache first and the directory only on miss.
// One instance is constructed at process start and injected into the HTTP
// layer; there is no package-level state.
type ConnectionFactory struct {
	resolver  *resolver.Resolver
	directory Directory
	cache     *cache.ConnectionCache
	connector StoreConnector

	// flights collapses concurrent misses for one tenant key into a single
	// directory lookup and handle construction.
	flights singleflight.Group
}

func New(r *resolver.Resolver, dir Directory, c *cache.ConnectionCache, conn StoreConnector) *ConnectionFactory {
	return &ConnectionFactory{
		resolver:  r,
		directory: dir,
		cache:     c,
		connector: conn,
	}
}

// GetConnection returns a ready handle for the tenant addressed by a raw
// hostname or an already-resolved tenant key. Callers borrow the handle
// for one request and must not retain it.
func (f *ConnectionFactory) GetConnection(ctx context.Context, hostOrKey string) (*model.ConnectionHandle, error) {
	key := hostOrKey
	if looksLikeHostname(hostOrKey) {
		resolved, err := f.resolver.Resolve(hostOrKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownTenant, err)
		}
		key = resolved
	}
	key = strings.ToLower(key)

	if h := f.cache.Get(key); h != nil {
		metrics.CacheHits.Inc()
		return h, nil
	}
	metrics.CacheMisses.Inc()

	// The miss path runs detached from the request context: a lookup whose
	// request was cancelled still populates the cache, so a concurrent
	// request for the same tenant is not forced into a second lookup.
	v, err, _ := f.flights.Do(key, func() (any, error) {
		return f.buildHandle(context.WithoutCancel(ctx), key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.ConnectionHandle), nil
}

func (f *ConnectionFactory) buildHandle(ctx context.Context, key string) (*model.ConnectionHandle, error) {
	// Another flight may have filled the cache between our miss and the
	// singleflight admission.
	if h := f.cache.Get(key); h != nil {
		return h, nil
	}

	rec, err := f.directory.Lookup(ctx, key)
	switch {
	case errors.Is(err, directory.ErrTenantNotFound):
		metrics.DirectoryLookups.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnknownTenant, key)
	case err != nil:
		metrics.DirectoryLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	metrics.DirectoryLookups.WithLabelValues("ok").Inc()

	// Fail closed. The status-change path invalidates eagerly, but every
	// directory round-trip re-checks so a stale cache entry can never
	// outlive a suspension.
	if rec.Status != model.StatusActive {
		f.cache.Invalidate(key)
		return nil, fmt.Errorf("%w: %s is %s", ErrTenantNotActive, key, rec.Status)
	}

	var handle *model.ConnectionHandle
	if rec.Isolated() {
		db, err := f.connector.Isolated(ctx, *rec.StoreLocator, *rec.StoreCredentialsRef)
		if err != nil {
			return nil, fmt.Errorf("%w: isolated store %s: %v", ErrDirectoryUnavailable, *rec.StoreLocator, err)
		}
		handle = model.NewIsolatedHandle(rec.ID, *rec.StoreLocator, db)
	} else {
		db, name := f.connector.Shared()
		handle = model.NewSharedHandle(rec.ID, name, db)
	}

	f.cache.Put(key, handle)

	// Best-effort bookkeeping; a failed touch must not fail the request.
	if err := f.directory.TouchLastAccess(ctx, rec.ID, time.Now()); err != nil {
		log.Printf("[Factory] last-access touch failed for %s: %v", key, err)
	}

	return handle, nil
}

// looksLikeHostname distinguishes raw Host header values from tenant keys
// that were already resolved. Tenant keys are bare DNS labels; anything
// with a dot, colon, or bracket came off the wire, as did localhost.
func looksLikeHostname(s string) bool {
	return strings.ContainsAny(s, ".:[") || strings.EqualFold(s, "localhost")
}
