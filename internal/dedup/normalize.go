package dedup

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// NormalizeName case-folds a company name and collapses its whitespace.
// Compatibility forms are unified first so that full-width and ligature
// variants of the same name compare equal.
func NormalizeName(name string) string {
	name = norm.NFKC.String(name)
	name = folder.String(name)
	return strings.Join(strings.Fields(name), " ")
}

// NormalizeRegistration trims a registration number. Registration numbers
// match exactly otherwise.
func NormalizeRegistration(reg string) string {
	return strings.TrimSpace(reg)
}

// NormalizeDomain reduces a website URL to its lower-cased host without a
// leading "www.".
func NormalizeDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
