package resolver

import (
	"log/slog"
	"net/url"
	"strings"
)

// ResolveRef converts a possibly relative image reference into an absolute
// URL against the page's final (post-redirect) URL.
//
// Rules:
//   - empty ref → empty string
//   - ref already carries an http/https scheme → returned unchanged
//   - protocol-relative ref ("//host/…") → prefixed with the base scheme
//   - anything else → standard relative resolution against base
//
// Malformed input that cannot be parsed fails open: the ref is returned
// unchanged and a diagnostic is logged, so a broken base URL never turns a
// usable reference into nothing.
func ResolveRef(baseURL, ref string) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" {
		slog.Debug("path resolve: unparseable base, returning ref unchanged",
			"base", baseURL, "ref", ref, "error", err)
		return ref
	}

	if strings.HasPrefix(ref, "//") {
		return base.Scheme + ":" + ref
	}

	resolved, err := base.Parse(ref)
	if err != nil {
		slog.Debug("path resolve: unparseable ref, returning unchanged",
			"base", baseURL, "ref", ref, "error", err)
		return ref
	}
	return resolved.String()
}

// hostOf extracts the lowercase hostname from a URL string, or "" when the
// URL cannot be parsed.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// usableRef rejects references the cascade must never emit: empty strings
// and inline-encoded data URIs.
func usableRef(ref string) bool {
	return ref != "" && !strings.HasPrefix(ref, "data:")
}

// stripQuery cuts the query string off an image reference. Site extractors
// use it where the query only carries resize/cache parameters.
func stripQuery(ref string) string {
	if i := strings.IndexByte(ref, '?'); i >= 0 {
		return ref[:i]
	}
	return ref
}
