package fetch

import "strings"

// renderOverride marks a domain whose pages never yield a usable image over
// the lightweight path (hard anti-scraping, or image markup produced only
// by client-side rendering).
type renderOverride struct {
	domainSubstring string
	requiresRender  bool
}

// OverrideTable is the static, ordered render-required table. It is
// process-wide constant configuration: consulted once per URL before any
// network call, never mutated at runtime.
type OverrideTable []renderOverride

// DefaultOverrides lists the domains known to require the rendered path.
// First matching entry wins.
func DefaultOverrides() OverrideTable {
	return OverrideTable{
		{domainSubstring: "ebay.com", requiresRender: true},
		{domainSubstring: "mercari.com", requiresRender: true},
	}
}

// RequiresRender reports whether the host matches an entry marked
// render-required. Evaluated in order; first match decides.
func (t OverrideTable) RequiresRender(host string) bool {
	host = strings.ToLower(host)
	for _, o := range t {
		if strings.Contains(host, o.domainSubstring) {
			return o.requiresRender
		}
	}
	return false
}
