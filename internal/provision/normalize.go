// internal/provision/normalize.go
package provision

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// stripDiacritics decomposes to NFD and drops combining marks, then
// recomposes, so "Clínica São João" becomes "Clinica Sao Joao".
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeSubdomain folds a requested subdomain into the DNS-label charset:
// lowercase, diacritics stripped, every run of other characters collapsed to
// a single hyphen, leading and trailing hyphens trimmed.
func NormalizeSubdomain(raw string) string {
	s, _, err := transform.String(stripDiacritics, raw)
	if err != nil {
		s = raw
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	hyphen := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			hyphen = false
		default:
			if !hyphen && b.Len() > 0 {
				b.WriteByte('-')
				hyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// ValidSubdomain reports whether a normalized subdomain may be registered.
func ValidSubdomain(s string) bool {
	return subdomainPattern.MatchString(s)
}
