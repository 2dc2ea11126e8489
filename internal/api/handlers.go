package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"clinica-cloud/internal/auth"
	"clinica-cloud/internal/factory"
	"clinica-cloud/internal/metrics"
	"clinica-cloud/internal/model"
	"clinica-cloud/internal/provision"
)

type handleKey struct{}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	// Operational surface
	r.Handle("/metrics", metrics.Handler())
	r.Get("/internal/connections/stats", a.ConnectionStats)
	r.Get("/internal/tenants/stats", a.TenantStats)
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Tenant-facing: the Host header picks the clinic.
	r.Group(func(r chi.Router) {
		r.Use(a.TenantContext)
		r.Get("/api/tenant", a.CurrentTenant)
	})

	// Admin surface
	r.Group(func(r chi.Router) {
		r.Use(a.Tokens.Middleware)

		r.Post("/admin/tenants", a.ProvisionTenant)
		r.Get("/admin/tenants", a.ListTenants)
		r.Put("/admin/tenants/{subdomain}/status", a.UpdateTenantStatus)
	})

	return r
}

// TenantContext resolves the request's Host header to a borrowed connection
// handle and maps resolution failures onto user-facing status classes.
func (a *API) TenantContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handle, err := a.Factory.GetConnection(r.Context(), r.Host)
		if err != nil {
			writeConnectionError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), handleKey{}, handle)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// HandleFromContext returns the connection handle the middleware resolved.
func HandleFromContext(ctx context.Context) *model.ConnectionHandle {
	h, _ := ctx.Value(handleKey{}).(*model.ConnectionHandle)
	return h
}

func writeConnectionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, factory.ErrUnknownTenant):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "clinic_not_found",
		})
	case errors.Is(err, factory.ErrTenantNotActive):
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": "access_suspended",
			"hint":  "contact support",
		})
	case errors.Is(err, factory.ErrDirectoryUnavailable):
		w.Header().Set("Retry-After", "5")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "temporarily_unavailable",
		})
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// @Summary Current tenant binding
// @Tags Tenants
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/tenant [get]
func (a *API) CurrentTenant(w http.ResponseWriter, r *http.Request) {
	h := HandleFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"tenant_id":  h.TenantID.String(),
		"mode":       string(h.Mode),
		"store_name": h.StoreName,
	})
}

// @Summary Provision a tenant
// @Tags Admin
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param body body model.NewTenantDescriptor true "Tenant descriptor"
// @Success 201 {object} model.TenantRecord
// @Router /admin/tenants [post]
func (a *API) ProvisionTenant(w http.ResponseWriter, r *http.Request) {
	var desc model.NewTenantDescriptor
	if err := json.NewDecoder(r.Body).Decode(&desc); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	rec, err := a.Provisioner.Provision(r.Context(), desc)
	switch {
	case errors.Is(err, provision.ErrInvalidSubdomain):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, provision.ErrSubdomainTaken):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	log.Printf("API: Provisioned tenant %s (%s)", rec.Subdomain, rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

// @Summary List tenants
// @Tags Admin
// @Security ApiKeyAuth
// @Produce json
// @Param pending query bool false "Only tenants awaiting DNS setup"
// @Success 200 {array} model.TenantRecord
// @Router /admin/tenants [get]
func (a *API) ListTenants(w http.ResponseWriter, r *http.Request) {
	pendingOnly := r.URL.Query().Get("pending") == "true"
	tenants, err := a.Directory.ListTenants(r.Context(), pendingOnly)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tenants)
}

type statusUpdate struct {
	Status model.Status `json:"status"`
}

// @Summary Change a tenant's lifecycle status
// @Tags Admin
// @Security ApiKeyAuth
// @Accept json
// @Param subdomain path string true "Tenant subdomain"
// @Param body body statusUpdate true "New status"
// @Success 204
// @Router /admin/tenants/{subdomain}/status [put]
func (a *API) UpdateTenantStatus(w http.ResponseWriter, r *http.Request) {
	subdomain := chi.URLParam(r, "subdomain")

	var body statusUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !body.Status.Valid() {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	if err := a.Directory.UpdateStatus(r.Context(), subdomain, body.Status); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Drop our own cached handle immediately, then fan the change out so
	// every other instance does the same.
	if body.Status != model.StatusActive {
		a.Cache.Invalidate(subdomain)
	}
	if a.Events != nil {
		if err := a.Events.PublishStatusChange(subdomain, body.Status); err != nil {
			log.Printf("API: Failed to publish status change for %s: %v", subdomain, err)
		}
	}

	log.Printf("API: Tenant %s set to %s by %s", subdomain, body.Status, operatorOr(r, "unknown"))
	w.WriteHeader(http.StatusNoContent)
}

// @Summary Connection cache snapshot
// @Tags Monitoring
// @Produce json
// @Success 200 {object} cache.Stats
// @Router /internal/connections/stats [get]
func (a *API) ConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Cache.Stats())
}

// @Summary Directory aggregation by status
// @Tags Monitoring
// @Produce json
// @Success 200 {object} map[string]int
// @Router /internal/tenants/stats [get]
func (a *API) TenantStats(w http.ResponseWriter, r *http.Request) {
	counts, err := a.Directory.CountByStatus(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func operatorOr(r *http.Request, fallback string) string {
	if op := auth.GetOperator(r); op != "" {
		return op
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
