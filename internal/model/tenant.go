// internal/model/tenant.go
package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a tenant. Tenants are never hard-deleted;
// administrative actions only move them between these states.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusBlocked   Status = "blocked"
	StatusInactive  Status = "inactive"
)

// Valid reports whether s is one of the recognized lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusBlocked, StatusInactive:
		return true
	}
	return false
}

// PlanTier is the commercial plan a clinic subscribes to.
type PlanTier string

const (
	TierBasico       PlanTier = "basico"
	TierProfissional PlanTier = "profissional"
	TierClinicaPlus  PlanTier = "clinica-plus"
)

func (t PlanTier) Valid() bool {
	switch t {
	case TierBasico, TierProfissional, TierClinicaPlus:
		return true
	}
	return false
}

// IsolatedStore reports whether this tier gets a dedicated database.
// Lower tiers share a single store with row-level isolation.
func (t PlanTier) IsolatedStore() bool {
	return t == TierProfissional || t == TierClinicaPlus
}

var (
	ErrHalfConfiguredStore = errors.New("store locator and credentials ref must both be set or both be empty")
	ErrInvalidStatus       = errors.New("invalid tenant status")
	ErrInvalidPlanTier     = errors.New("invalid plan tier")
)

// TenantRecord is one clinic's row in the tenant directory.
type TenantRecord struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Subdomain    string    `db:"subdomain" json:"subdomain"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	ContactEmail string    `db:"contact_email" json:"contact_email"`
	Status       Status    `db:"status" json:"status"`

	// StoreLocator and StoreCredentialsRef are both set for tenants with an
	// isolated store and both nil for shared-RLS tenants. CredentialsRef is
	// an opaque pointer into the secret store, never the secret itself.
	StoreLocator        *string `db:"store_locator" json:"store_locator,omitempty"`
	StoreCredentialsRef *string `db:"store_credentials_ref" json:"-"`

	PlanTier PlanTier   `db:"plan_tier" json:"plan_tier"`
	Limits   PlanLimits `db:"limits" json:"limits"`

	// ConfigurationPending marks tenants whose DNS activation failed after
	// registration; an operator completes setup manually.
	ConfigurationPending bool `db:"configuration_pending" json:"configuration_pending"`

	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	LastAccessAt *time.Time `db:"last_access_at" json:"last_access_at,omitempty"`
}

// Validate checks the structural invariants every directory row must hold.
func (t *TenantRecord) Validate() error {
	if (t.StoreLocator == nil) != (t.StoreCredentialsRef == nil) {
		return ErrHalfConfiguredStore
	}
	if !t.Status.Valid() {
		return ErrInvalidStatus
	}
	if !t.PlanTier.Valid() {
		return ErrInvalidPlanTier
	}
	return nil
}

// Isolated reports whether this tenant has its own store.
func (t *TenantRecord) Isolated() bool {
	return t.StoreLocator != nil
}

// NewTenantDescriptor is the input to the provisioning path. The subdomain
// is normalized before validation, so callers may pass a raw clinic name.
type NewTenantDescriptor struct {
	Subdomain    string   `json:"subdomain"`
	DisplayName  string   `json:"display_name"`
	ContactEmail string   `json:"contact_email"`
	PlanTier     PlanTier `json:"plan_tier"`
}
