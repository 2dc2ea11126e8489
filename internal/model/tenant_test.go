package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() TenantRecord {
	return TenantRecord{
		ID:        uuid.New(),
		Subdomain: "clinica-exemplo",
		Status:    StatusActive,
		PlanTier:  TierBasico,
	}
}

func TestValidateStoreFieldsMustPair(t *testing.T) {
	locator := "clinica_exemplo_db"
	credRef := "env:ISOLATED_STORE_SECRET"

	// All four nullability combinations; only the matched pairs are legal.
	cases := []struct {
		name    string
		locator *string
		creds   *string
		ok      bool
	}{
		{"both nil", nil, nil, true},
		{"both set", &locator, &credRef, true},
		{"locator only", &locator, nil, false},
		{"creds only", nil, &credRef, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := validRecord()
			rec.StoreLocator = tc.locator
			rec.StoreCredentialsRef = tc.creds

			err := rec.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrHalfConfiguredStore)
			}
		})
	}
}

func FuzzValidateStorePairing(f *testing.F) {
	f.Add("clinica_exemplo_db", "env:SECRET", true, true)
	f.Add("", "", false, true)
	f.Add("db", "", true, false)
	f.Fuzz(func(t *testing.T, locator, creds string, hasLocator, hasCreds bool) {
		rec := validRecord()
		if hasLocator {
			rec.StoreLocator = &locator
		}
		if hasCreds {
			rec.StoreCredentialsRef = &creds
		}

		err := rec.Validate()
		if hasLocator != hasCreds {
			assert.ErrorIs(t, err, ErrHalfConfiguredStore)
		} else {
			assert.NoError(t, err)
		}
	})
}

func TestValidateRejectsBadEnums(t *testing.T) {
	rec := validRecord()
	rec.Status = Status("deleted")
	assert.ErrorIs(t, rec.Validate(), ErrInvalidStatus)

	rec = validRecord()
	rec.PlanTier = PlanTier("enterprise")
	assert.ErrorIs(t, rec.Validate(), ErrInvalidPlanTier)
}

func TestIsolatedStoreByTier(t *testing.T) {
	assert.False(t, TierBasico.IsolatedStore())
	assert.True(t, TierProfissional.IsolatedStore())
	assert.True(t, TierClinicaPlus.IsolatedStore())
}

func TestDecodeLimits(t *testing.T) {
	l, err := DecodeLimits([]byte(`{"max_doctors": 7}`), TierBasico)
	require.NoError(t, err)
	assert.Equal(t, 7, l.MaxDoctors)
	// Unspecified keys keep tier defaults.
	assert.Equal(t, DefaultLimits(TierBasico).MaxPatients, l.MaxPatients)
}

func TestDecodeLimitsDefaults(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte("null")} {
		l, err := DecodeLimits(raw, TierClinicaPlus)
		require.NoError(t, err)
		assert.Equal(t, DefaultLimits(TierClinicaPlus), l)
	}
}

func TestDecodeLimitsRejectsUnknownKeys(t *testing.T) {
	_, err := DecodeLimits([]byte(`{"max_doctors": 5, "max_rooms": 2}`), TierBasico)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_rooms")
}
