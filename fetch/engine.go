// Package fetch obtains page HTML for the resolver. It owns the two-tier
// strategy: a lightweight HTTP path with a browser-like TLS fingerprint,
// and a rendered-browser path for pages that only materialize their DOM
// through client-side script execution.
package fetch

import "context"

// Strategy identifies which fetch path produced a page.
type Strategy string

const (
	StrategyStatic   Strategy = "static"
	StrategyRendered Strategy = "rendered"
)

// Engine is the interface both fetch paths implement.
type Engine interface {
	// Name returns the engine identifier ("static" or "rendered").
	Name() Strategy

	// Fetch retrieves the page for the given URL. Implementations convert
	// their failures into *models.ResolveError values.
	Fetch(ctx context.Context, url string) (*PageResult, error)
}

// PageResult is the output of a successful fetch.
type PageResult struct {
	// HTML is the page markup: the raw response body on the static path,
	// the serialized rendered DOM on the browser path.
	HTML string

	// FinalURL is the post-redirect URL; extraction resolves relative
	// references against it.
	FinalURL string

	// Title is the page title, captured for diagnostics.
	Title string

	// StatusCode is the HTTP status where known (0 on some rendered
	// fetches).
	StatusCode int

	// Strategy records which path produced this result.
	Strategy Strategy
}
