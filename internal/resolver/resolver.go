// internal/resolver/resolver.go
package resolver

import (
	"errors"
	"net"
	"strings"
)

// ErrNoTenantKey means the hostname carries no usable tenant routing key.
var ErrNoTenantKey = errors.New("hostname does not contain a tenant key")

// DefaultDevTenantKey is the tenant served for local and preview hosts,
// so development proceeds without DNS.
const DefaultDevTenantKey = "desenvolvimento"

// Resolver maps inbound hostnames to tenant keys. It is pure: no lookups,
// no side effects, total over all string inputs.
type Resolver struct {
	// AppDomain is the production wildcard domain; any host of the form
	// <tenant>.<AppDomain> routes by its first label.
	AppDomain string
	// PreviewDomains are deploy-preview suffixes that resolve to the
	// development tenant.
	PreviewDomains []string
	// DevTenantKey is returned for local and preview hosts. Empty means
	// DefaultDevTenantKey.
	DevTenantKey string
}

func New(appDomain string, previewDomains []string, devKey string) *Resolver {
	if devKey == "" {
		devKey = DefaultDevTenantKey
	}
	lowered := make([]string, len(previewDomains))
	for i, d := range previewDomains {
		lowered[i] = strings.ToLower(d)
	}
	return &Resolver{
		AppDomain:      strings.ToLower(appDomain),
		PreviewDomains: lowered,
		DevTenantKey:   devKey,
	}
}

// Resolve extracts the tenant key from a Host header value. Matching is
// case-insensitive and ignores any port.
func (r *Resolver) Resolve(hostname string) (string, error) {
	host := strings.ToLower(strings.TrimSpace(hostname))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")

	if isLocalHost(host) {
		return r.DevTenantKey, nil
	}

	labels := strings.Split(host, ".")

	if r.AppDomain != "" && strings.HasSuffix(host, "."+r.AppDomain) && len(labels) >= 3 {
		return labels[0], nil
	}

	for _, d := range r.PreviewDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return r.DevTenantKey, nil
		}
	}

	if len(labels) >= 3 && labels[0] != "" {
		return labels[0], nil
	}

	return "", ErrNoTenantKey
}

func isLocalHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
