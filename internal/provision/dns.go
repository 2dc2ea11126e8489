// internal/provision/dns.go
package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// NoopDNS is used when no DNS automation is configured: activation always
// succeeds and the wildcard domain is assumed to already cover the tenant.
type NoopDNS struct{}

func (NoopDNS) Activate(ctx context.Context, subdomain string) error {
	log.Printf("[DNS] No automation configured, assuming wildcard covers %s", subdomain)
	return nil
}

// WebhookDNS posts the new subdomain to an external activation endpoint.
type WebhookDNS struct {
	URL    string
	Client *http.Client
}

func NewWebhookDNS(url string) *WebhookDNS {
	return &WebhookDNS{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *WebhookDNS) Activate(ctx context.Context, subdomain string) error {
	body, err := json.Marshal(map[string]string{"subdomain": subdomain})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build DNS activation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("DNS activation call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("DNS activation returned %s", resp.Status)
	}
	return nil
}
