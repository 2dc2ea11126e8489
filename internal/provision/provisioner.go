// internal/provision/provisioner.go
package provision

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"clinica-cloud/internal/directory"
	"clinica-cloud/internal/metrics"
	"clinica-cloud/internal/model"
)

var (
	ErrInvalidSubdomain    = errors.New("invalid subdomain")
	ErrSubdomainTaken      = errors.New("subdomain already taken")
	ErrStoreCreationFailed = errors.New("isolated store creation failed")
	ErrRegistrationFailed  = errors.New("directory registration failed")
)

// Registry is the write surface of the tenant directory used here.
type Registry interface {
	Insert(ctx context.Context, rec *model.TenantRecord) error
	ClearConfigurationPending(ctx context.Context, subdomain string) error
}

// StoreCreator provisions and tears down isolated stores on the external
// data platform. CreateStore returns the opaque credentials reference the
// directory will carry; the secret itself never passes through here.
type StoreCreator interface {
	CreateStore(ctx context.Context, storeName string) (credentialsRef string, err error)
	DropStore(ctx context.Context, storeName string) error
}

// DNSActivator points the tenant's subdomain at the platform. An external
// collaborator; failures are recoverable by an operator.
type DNSActivator interface {
	Activate(ctx context.Context, subdomain string) error
}

// EventSink receives tenant lifecycle notifications. Best-effort.
type EventSink interface {
	TenantProvisioned(rec *model.TenantRecord)
}

// Provisioner is the admin-triggered write path: it creates a tenant's
// isolated store when the plan calls for one, registers the tenant in the
// directory, and activates its subdomain. Invoked rarely, from admin
// tooling, well away from the request hot path.
type Provisioner struct {
	registry Registry
	stores   StoreCreator
	dns      DNSActivator
	events   EventSink
}

func New(registry Registry, stores StoreCreator, dns DNSActivator, events EventSink) *Provisioner {
	return &Provisioner{
		registry: registry,
		stores:   stores,
		dns:      dns,
		events:   events,
	}
}

// Provision creates a new tenant from a descriptor and returns the
// registered record.
//
// Partial-failure policy: a store created before a failed registration is
// rolled back best-effort; a failed DNS activation after registration
// leaves the tenant active with configuration_pending set, since an
// operator can finish DNS later without data loss.
func (p *Provisioner) Provision(ctx context.Context, desc model.NewTenantDescriptor) (*model.TenantRecord, error) {
	subdomain := NormalizeSubdomain(desc.Subdomain)
	if !ValidSubdomain(subdomain) {
		return nil, fmt.Errorf("%w: %q normalizes to %q", ErrInvalidSubdomain, desc.Subdomain, subdomain)
	}
	if !desc.PlanTier.Valid() {
		return nil, fmt.Errorf("%w: unknown plan tier %q", ErrInvalidSubdomain, desc.PlanTier)
	}

	rec := &model.TenantRecord{
		ID:           uuid.New(),
		Subdomain:    subdomain,
		DisplayName:  desc.DisplayName,
		ContactEmail: desc.ContactEmail,
		Status:       model.StatusActive,
		PlanTier:     desc.PlanTier,
		Limits:       model.DefaultLimits(desc.PlanTier),
		// Pending until DNS activation confirms; cleared below.
		ConfigurationPending: true,
		CreatedAt:            time.Now(),
	}

	var storeName string
	if desc.PlanTier.IsolatedStore() {
		storeName = StoreName(subdomain)
		credRef, err := p.stores.CreateStore(ctx, storeName)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreCreationFailed, err)
		}
		rec.StoreLocator = &storeName
		rec.StoreCredentialsRef = &credRef
	}

	if err := p.registry.Insert(ctx, rec); err != nil {
		if storeName != "" {
			if dropErr := p.stores.DropStore(ctx, storeName); dropErr != nil {
				log.Printf("[Provision] Rollback of store %s failed: %v", storeName, dropErr)
			}
		}
		if errors.Is(err, directory.ErrSubdomainExists) {
			return nil, fmt.Errorf("%w: %s", ErrSubdomainTaken, subdomain)
		}
		return nil, fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}

	if err := p.dns.Activate(ctx, subdomain); err != nil {
		// Tenant stays registered and active; the pending marker tells
		// operators DNS still needs a hand.
		log.Printf("[Provision] DNS activation for %s failed, left configuration_pending: %v", subdomain, err)
	} else {
		if err := p.registry.ClearConfigurationPending(ctx, subdomain); err != nil {
			log.Printf("[Provision] Failed to clear pending marker for %s: %v", subdomain, err)
		} else {
			rec.ConfigurationPending = false
		}
	}

	metrics.TenantsProvisioned.Inc()
	if p.events != nil {
		p.events.TenantProvisioned(rec)
	}
	log.Printf("[Provision] Tenant %s registered (tier %s, isolated=%t)", subdomain, rec.PlanTier, rec.Isolated())
	return rec, nil
}

// StoreName derives the deterministic isolated-store identifier for a
// subdomain, e.g. "clinica-exemplo" -> "clinica_exemplo_db".
func StoreName(subdomain string) string {
	return strings.ReplaceAll(subdomain, "-", "_") + "_db"
}
