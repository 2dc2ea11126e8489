// internal/model/limits.go
package model

import (
	"encoding/json"
	"fmt"
)

// PlanLimits are the per-tenant usage ceilings enforced by the application
// layer. The directory stores them as JSONB; decoding rejects unknown keys
// so a typo in an admin tool surfaces at the read boundary, not at some
// arbitrary use site later.
type PlanLimits struct {
	MaxDoctors             int `json:"max_doctors"`
	MaxPatients            int `json:"max_patients"`
	MaxMonthlyAppointments int `json:"max_monthly_appointments"`
}

// DefaultLimits returns the ceilings for a plan tier.
func DefaultLimits(tier PlanTier) PlanLimits {
	switch tier {
	case TierProfissional:
		return PlanLimits{MaxDoctors: 15, MaxPatients: 5000, MaxMonthlyAppointments: 3000}
	case TierClinicaPlus:
		return PlanLimits{MaxDoctors: 50, MaxPatients: 25000, MaxMonthlyAppointments: 15000}
	default:
		return PlanLimits{MaxDoctors: 3, MaxPatients: 500, MaxMonthlyAppointments: 400}
	}
}

// DecodeLimits parses the directory's JSONB limits column. Empty input
// falls back to the tier defaults; unknown keys are an error.
func DecodeLimits(raw []byte, tier PlanTier) (PlanLimits, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return DefaultLimits(tier), nil
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return PlanLimits{}, fmt.Errorf("malformed limits: %w", err)
	}
	for k := range keys {
		switch k {
		case "max_doctors", "max_patients", "max_monthly_appointments":
		default:
			return PlanLimits{}, fmt.Errorf("unrecognized limits key %q", k)
		}
	}

	l := DefaultLimits(tier)
	if err := json.Unmarshal(raw, &l); err != nil {
		return PlanLimits{}, fmt.Errorf("malformed limits: %w", err)
	}
	return l, nil
}

// Encode serializes the limits for the directory's JSONB column.
func (l PlanLimits) Encode() ([]byte, error) {
	return json.Marshal(l)
}
