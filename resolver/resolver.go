// Package resolver locates a representative product/content image inside a
// fetched HTML document. It applies a prioritized cascade of extraction
// strategies and converts the winning reference into an absolute URL.
//
// The cascade is a pure function of (html, finalURL): no network access, no
// shared state, identical input always yields identical output.
package resolver

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Resolver runs the extraction cascade. The zero value is not usable;
// construct with New.
type Resolver struct{}

// New creates a Resolver.
func New() *Resolver {
	return &Resolver{}
}

// Resolve parses the document and returns an absolute image URL, or ""
// when no stage produced a candidate — a normal outcome, not an error.
//
// Fixed priority order, short-circuiting at the first success:
//
//  1. Site-specific rule registered for this host
//  2. Social-preview metadata (og:image, then twitter:image)
//  3. JSON-LD structured data
//  4. Generic inline-image fallback
func (r *Resolver) Resolve(html, finalURL string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		slog.Warn("resolver: document parse failed", "url", finalURL, "error", err)
		return ""
	}

	host := hostOf(finalURL)

	if cand, ok := extractSiteSpecific(doc, host); ok {
		return r.finish(cand, finalURL)
	}
	if cand, ok := extractMetadata(doc, host); ok {
		return r.finish(cand, finalURL)
	}
	if cand, ok := extractStructuredData(doc); ok {
		return r.finish(cand, finalURL)
	}
	if cand, ok := extractFallback(doc, finalURL); ok {
		return r.finish(cand, finalURL)
	}

	slog.Debug("resolver: no image candidate", "url", finalURL)
	return ""
}

// finish converts the candidate reference to an absolute URL and logs which
// stage won.
func (r *Resolver) finish(cand Candidate, finalURL string) string {
	abs := ResolveRef(finalURL, cand.URL)
	slog.Info("resolver: image found", "signal", string(cand.Signal), "image", abs)
	return abs
}
