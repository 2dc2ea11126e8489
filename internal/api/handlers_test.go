package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinica-cloud/internal/cache"
	"clinica-cloud/internal/directory"
	"clinica-cloud/internal/factory"
	"clinica-cloud/internal/model"
	"clinica-cloud/internal/resolver"
)

type stubDirectory struct {
	records map[string]*model.TenantRecord
	err     error
}

func (d *stubDirectory) Lookup(_ context.Context, subdomain string) (*model.TenantRecord, error) {
	if d.err != nil {
		return nil, d.err
	}
	rec, ok := d.records[subdomain]
	if !ok {
		return nil, directory.ErrTenantNotFound
	}
	return rec, nil
}

func (d *stubDirectory) TouchLastAccess(context.Context, uuid.UUID, time.Time) error {
	return nil
}

type stubConnector struct{}

func (stubConnector) Shared() (*sql.DB, string) { return nil, "clinica_shared" }
func (stubConnector) Isolated(context.Context, string, string) (*sql.DB, error) {
	return nil, nil
}

func newTestAPI(dir *stubDirectory) *API {
	c := cache.New()
	r := resolver.New("clinicacloud.com.br", nil, "desenvolvimento")
	return &API{
		Factory: factory.New(r, dir, c, stubConnector{}),
		Cache:   c,
	}
}

func serveTenantRoute(a *API, host string) *httptest.ResponseRecorder {
	handler := a.TenantContext(http.HandlerFunc(a.CurrentTenant))
	req := httptest.NewRequest(http.MethodGet, "http://"+host+"/api/tenant", nil)
	req.Host = host
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestTenantContextResolvesHost(t *testing.T) {
	dir := &stubDirectory{records: map[string]*model.TenantRecord{
		"teste-1": {
			ID:        uuid.New(),
			Subdomain: "teste-1",
			Status:    model.StatusActive,
			PlanTier:  model.TierBasico,
		},
	}}

	rr := serveTenantRoute(newTestAPI(dir), "teste-1.clinicacloud.com.br")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "shared-rls", body["mode"])
	assert.Equal(t, "clinica_shared", body["store_name"])
}

func TestUnknownClinicRendersNotFound(t *testing.T) {
	rr := serveTenantRoute(newTestAPI(&stubDirectory{records: map[string]*model.TenantRecord{}}),
		"fantasma.clinicacloud.com.br")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "clinic_not_found")
}

func TestSuspendedClinicRendersForbidden(t *testing.T) {
	dir := &stubDirectory{records: map[string]*model.TenantRecord{
		"clinica-suspensa": {
			ID:        uuid.New(),
			Subdomain: "clinica-suspensa",
			Status:    model.StatusSuspended,
			PlanTier:  model.TierBasico,
		},
	}}

	rr := serveTenantRoute(newTestAPI(dir), "clinica-suspensa.clinicacloud.com.br")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "access_suspended")
}

func TestDirectoryOutageRendersServiceUnavailable(t *testing.T) {
	dir := &stubDirectory{err: errors.New("connection refused")}

	rr := serveTenantRoute(newTestAPI(dir), "teste-1.clinicacloud.com.br")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"), "outages are the retryable class")
}

func TestConnectionStatsSnapshot(t *testing.T) {
	a := newTestAPI(&stubDirectory{records: map[string]*model.TenantRecord{}})
	a.Cache.Put("teste-1", model.NewSharedHandle(uuid.New(), "clinica_shared", nil))

	req := httptest.NewRequest(http.MethodGet, "/internal/connections/stats", nil)
	rr := httptest.NewRecorder()
	a.ConnectionStats(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
	require.Len(t, stats.Entries, 1)
	assert.Equal(t, "teste-1", stats.Entries[0].Subdomain)
	assert.True(t, stats.Entries[0].IsActive)
}
