package factory

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinica-cloud/internal/cache"
	"clinica-cloud/internal/directory"
	"clinica-cloud/internal/model"
	"clinica-cloud/internal/resolver"
)

type stubDirectory struct {
	mu      sync.Mutex
	records map[string]*model.TenantRecord
	lookups atomic.Int64
	err     error
	delay   time.Duration
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{records: make(map[string]*model.TenantRecord)}
}

func (d *stubDirectory) add(rec *model.TenantRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[rec.Subdomain] = rec
}

func (d *stubDirectory) Lookup(ctx context.Context, subdomain string) (*model.TenantRecord, error) {
	d.lookups.Add(1)
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.err != nil {
		return nil, d.err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.records[subdomain]
	if !ok {
		return nil, directory.ErrTenantNotFound
	}
	copied := *rec
	return &copied, nil
}

func (d *stubDirectory) TouchLastAccess(context.Context, uuid.UUID, time.Time) error {
	return nil
}

type stubConnector struct {
	isolatedErr error
}

func (c *stubConnector) Shared() (*sql.DB, string) {
	return nil, "clinica_shared"
}

func (c *stubConnector) Isolated(_ context.Context, locator, _ string) (*sql.DB, error) {
	if c.isolatedErr != nil {
		return nil, c.isolatedErr
	}
	return nil, nil
}

func newTestFactory(dir *stubDirectory) (*ConnectionFactory, *cache.ConnectionCache) {
	c := cache.New()
	r := resolver.New("clinicacloud.com.br", nil, "desenvolvimento")
	return New(r, dir, c, &stubConnector{}), c
}

func activeTenant(subdomain string, locator string) *model.TenantRecord {
	rec := &model.TenantRecord{
		ID:        uuid.New(),
		Subdomain: subdomain,
		Status:    model.StatusActive,
		PlanTier:  model.TierBasico,
		CreatedAt: time.Now(),
	}
	if locator != "" {
		credRef := "env:ISOLATED_STORE_SECRET"
		rec.PlanTier = model.TierProfissional
		rec.StoreLocator = &locator
		rec.StoreCredentialsRef = &credRef
	}
	return rec
}

func TestSharedRLSHandle(t *testing.T) {
	dir := newStubDirectory()
	rec := activeTenant("teste-1", "")
	dir.add(rec)
	f, _ := newTestFactory(dir)

	h, err := f.GetConnection(context.Background(), "teste-1")
	require.NoError(t, err)

	assert.Equal(t, model.ModeSharedRLS, h.Mode)
	assert.Equal(t, "clinica_shared", h.StoreName)
	assert.Equal(t, rec.ID, h.TenantID, "tenant id is the row-level isolation parameter")
}

func TestIsolatedHandle(t *testing.T) {
	dir := newStubDirectory()
	dir.add(activeTenant("clinica-exemplo", "clinica_exemplo_db"))
	f, _ := newTestFactory(dir)

	h, err := f.GetConnection(context.Background(), "clinica-exemplo")
	require.NoError(t, err)

	assert.Equal(t, model.ModeIsolated, h.Mode)
	assert.Equal(t, "clinica_exemplo_db", h.StoreName)
}

func TestSecondCallIsAPureCacheHit(t *testing.T) {
	dir := newStubDirectory()
	dir.add(activeTenant("teste-1", ""))
	f, _ := newTestFactory(dir)

	h1, err := f.GetConnection(context.Background(), "teste-1")
	require.NoError(t, err)
	h2, err := f.GetConnection(context.Background(), "teste-1")
	require.NoError(t, err)

	assert.Equal(t, h1.StoreName, h2.StoreName)
	assert.Equal(t, h1.Mode, h2.Mode)
	assert.EqualValues(t, 1, dir.lookups.Load(), "the second call must not hit the directory")
}

func TestResolvesRawHostnames(t *testing.T) {
	dir := newStubDirectory()
	dir.add(activeTenant("clinica-um", ""))
	f, _ := newTestFactory(dir)

	h, err := f.GetConnection(context.Background(), "Clinica-Um.clinicacloud.com.br:443")
	require.NoError(t, err)
	assert.Equal(t, model.ModeSharedRLS, h.Mode)
}

func TestUnknownTenant(t *testing.T) {
	f, _ := newTestFactory(newStubDirectory())

	_, err := f.GetConnection(context.Background(), "fantasma")
	assert.ErrorIs(t, err, ErrUnknownTenant)
}

func TestUnresolvableHostname(t *testing.T) {
	f, _ := newTestFactory(newStubDirectory())

	_, err := f.GetConnection(context.Background(), "example.com")
	assert.ErrorIs(t, err, ErrUnknownTenant)
}

func TestDirectoryBackendFailure(t *testing.T) {
	dir := newStubDirectory()
	dir.err = errors.New("connection refused")
	f, _ := newTestFactory(dir)

	_, err := f.GetConnection(context.Background(), "teste-1")
	assert.ErrorIs(t, err, ErrDirectoryUnavailable)
}

func TestNonActiveTenantFailsClosed(t *testing.T) {
	dir := newStubDirectory()
	rec := activeTenant("clinica-suspensa", "")
	rec.Status = model.StatusSuspended
	dir.add(rec)
	f, c := newTestFactory(dir)

	// A handle was cached while the tenant was still active; the
	// status-change path invalidates it, forcing the next call through
	// the directory where the suspended status is seen.
	c.Put("clinica-suspensa", model.NewSharedHandle(rec.ID, "clinica_shared", nil))
	c.Invalidate("clinica-suspensa")

	_, err := f.GetConnection(context.Background(), "clinica-suspensa")
	assert.ErrorIs(t, err, ErrTenantNotActive)
	assert.Nil(t, c.Get("clinica-suspensa"), "no handle may survive for a suspended tenant")

	for _, status := range []model.Status{model.StatusBlocked, model.StatusInactive} {
		rec.Status = status
		dir.add(rec)
		c.Invalidate("clinica-suspensa")
		_, err := f.GetConnection(context.Background(), "clinica-suspensa")
		assert.ErrorIs(t, err, ErrTenantNotActive, "status %s", status)
	}
}

func TestIsolatedStoreUnreachable(t *testing.T) {
	dir := newStubDirectory()
	dir.add(activeTenant("clinica-exemplo", "clinica_exemplo_db"))
	c := cache.New()
	r := resolver.New("clinicacloud.com.br", nil, "desenvolvimento")
	f := New(r, dir, c, &stubConnector{isolatedErr: errors.New("no route to host")})

	_, err := f.GetConnection(context.Background(), "clinica-exemplo")
	assert.ErrorIs(t, err, ErrDirectoryUnavailable)
	assert.Nil(t, c.Get("clinica-exemplo"), "a failed construction must not be cached")
}

func TestConcurrentMissesCauseOneLookup(t *testing.T) {
	dir := newStubDirectory()
	dir.add(activeTenant("teste-1", ""))
	dir.delay = 20 * time.Millisecond
	f, _ := newTestFactory(dir)

	const n = 50
	var wg sync.WaitGroup
	handles := make([]*model.ConnectionHandle, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = f.GetConnection(context.Background(), "teste-1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "clinica_shared", handles[i].StoreName)
	}
	assert.EqualValues(t, 1, dir.lookups.Load(), "concurrent misses must collapse into one lookup")
}

func TestCancelledRequestStillPopulatesCache(t *testing.T) {
	dir := newStubDirectory()
	dir.add(activeTenant("teste-1", ""))
	f, c := newTestFactory(dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h, err := f.GetConnection(ctx, "teste-1")
	require.NoError(t, err, "the miss path runs detached from the request context")
	assert.NotNil(t, h)
	assert.NotNil(t, c.Get("teste-1"), "a concurrent request must find the handle cached")
}
