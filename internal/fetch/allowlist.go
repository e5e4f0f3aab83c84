package fetch

import (
	"net/url"
	"strings"
)

// DefaultAllowlist holds the product-code lookup sites pages may be fetched
// from.
var DefaultAllowlist = []string{
	"eandata.com",
	"barcodelookup.com",
	"upcitemdb.com",
	"openfoodfacts.org",
	"world.openfoodfacts.org",
	"gs1.org",
	"gepir.gs1.org",
}

// Allowlist matches hosts against a set of domains, subdomains included.
type Allowlist struct {
	domains []string
}

// NewAllowlist builds an Allowlist. Domains are lower-cased and a leading
// "www." is dropped.
func NewAllowlist(domains []string) *Allowlist {
	a := &Allowlist{domains: make([]string, 0, len(domains))}
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d != "" {
			a.domains = append(a.domains, d)
		}
	}
	return a
}

// Allows reports whether host equals an allowed domain or is a subdomain of
// one.
func (a *Allowlist) Allows(host string) bool {
	host = strings.ToLower(host)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	for _, d := range a.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Domain returns the host of rawURL without a leading "www.", lower-cased.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
