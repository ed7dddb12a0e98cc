package fetch

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hiraku00/scraping-img/models"
)

// PageResolver is the extraction boundary the orchestrator hands fetched
// pages to. Implemented by resolver.Resolver.
type PageResolver interface {
	// Resolve returns an absolute image URL, or "" when the page has none.
	Resolve(html, finalURL string) string
}

// Outcome is the terminal state of one URL's resolution.
type Outcome struct {
	// ImageURL is the resolved absolute image URL; empty on NotFound.
	ImageURL string

	// FinalURL is the post-redirect page URL (set when a fetch succeeded).
	FinalURL string

	// Strategy is the fetch path that produced the page the image was
	// found on (or the last path attempted).
	Strategy Strategy

	// Err carries the most specific diagnostic when no image was found.
	// nil exactly when ImageURL is non-empty.
	Err *models.ResolveError
}

// Orchestrator decides per URL whether to use the lightweight or the
// rendered fetch path and owns the escalation policy:
//
//	Start → DomainCheck → {StaticFetch | RenderedFetch}
//	      → [EscalateToRendered] → Done(Found | NotFound)
//
// Escalation is a single one-shot switch to the rendered path after the
// static path fails or finds nothing — never a retry loop. Render-required
// domains go straight to the rendered path and terminate there regardless
// of outcome. No error propagates past Locate.
//
// The orchestrator is used sequentially, one URL at a time, matching the
// single shared browser session.
type Orchestrator struct {
	static    Engine
	renderer  Engine // nil when the rendered path is disabled or failed to start
	overrides OverrideTable
	resolver  PageResolver

	// rendererDown is latched after a session-level crash so the remaining
	// URLs in the run skip the rendered path instead of failing one by one.
	rendererDown bool
}

// NewOrchestrator wires the fetch paths to the resolver. renderer may be
// nil; the orchestrator then terminates without escalation wherever the
// rendered path would have run.
func NewOrchestrator(static, renderer Engine, overrides OverrideTable, res PageResolver) *Orchestrator {
	return &Orchestrator{
		static:    static,
		renderer:  renderer,
		overrides: overrides,
		resolver:  res,
	}
}

// RendererAvailable reports whether the rendered path can still be used.
func (o *Orchestrator) RendererAvailable() bool {
	return o.renderer != nil && !o.rendererDown
}

// Locate runs the state machine for one URL and always returns a terminal
// outcome.
func (o *Orchestrator) Locate(ctx context.Context, pageURL string) Outcome {
	host := hostname(pageURL)

	// ── DomainCheck ─────────────────────────────────────────────────
	if o.overrides.RequiresRender(host) {
		slog.Info("fetch: domain requires rendered path", "host", host, "url", pageURL)
		if !o.RendererAvailable() {
			return Outcome{
				Strategy: StrategyRendered,
				Err:      models.NewResolveError(models.ErrCodeNoRenderer, "no renderer available", nil),
			}
		}
		// Rendered-only: whatever happens here is final.
		return o.renderedAttempt(ctx, pageURL, nil)
	}

	// ── StaticFetch ─────────────────────────────────────────────────
	var staticErr *models.ResolveError
	page, err := o.static.Fetch(ctx, pageURL)
	if err != nil {
		staticErr = asResolveError(err)
		slog.Warn("fetch: static path failed", "url", pageURL, "code", staticErr.Code, "error", err)
	} else {
		if img := o.resolver.Resolve(page.HTML, page.FinalURL); img != "" {
			return Outcome{ImageURL: img, FinalURL: page.FinalURL, Strategy: StrategyStatic}
		}
		slog.Info("fetch: no image after lightweight fetch", "url", pageURL)
		staticErr = models.NewResolveError(models.ErrCodeNoImageStatic, "no image after lightweight fetch", nil)
	}

	// ── EscalateToRendered ──────────────────────────────────────────
	if !o.RendererAvailable() {
		out := Outcome{Strategy: StrategyStatic, Err: staticErr}
		if page != nil {
			out.FinalURL = page.FinalURL
		}
		return out
	}
	slog.Info("fetch: escalating to rendered path", "url", pageURL, "static_code", staticErr.Code)
	return o.renderedAttempt(ctx, pageURL, staticErr)
}

// renderedAttempt performs the rendered fetch and resolution. staticErr, when
// non-nil, is the diagnostic from the earlier lightweight attempt; it is
// wrapped so the terminal outcome carries the most specific history, but a
// rendered success makes it transparent.
func (o *Orchestrator) renderedAttempt(ctx context.Context, pageURL string, staticErr *models.ResolveError) Outcome {
	page, err := o.renderer.Fetch(ctx, pageURL)
	if err != nil {
		rerr := asResolveError(err)
		if rerr.Code == models.ErrCodeBrowserCrash {
			o.rendererDown = true
			slog.Error("fetch: browser session lost, rendered path disabled for remainder of run", "error", err)
		} else {
			slog.Warn("fetch: rendered path failed", "url", pageURL, "code", rerr.Code, "error", err)
		}
		return Outcome{Strategy: StrategyRendered, Err: mostSpecific(rerr, staticErr)}
	}

	if img := o.resolver.Resolve(page.HTML, page.FinalURL); img != "" {
		return Outcome{ImageURL: img, FinalURL: page.FinalURL, Strategy: StrategyRendered}
	}

	slog.Info("fetch: no image after rendered fetch", "url", pageURL)
	noImg := models.NewResolveError(models.ErrCodeNoImageRendered, "no image after rendered fetch", nil)
	return Outcome{FinalURL: page.FinalURL, Strategy: StrategyRendered, Err: mostSpecific(noImg, staticErr)}
}

// mostSpecific keeps the rendered-path diagnostic as the primary tag while
// chaining the static-path failure underneath it for logging.
func mostSpecific(renderedErr, staticErr *models.ResolveError) *models.ResolveError {
	if staticErr == nil || renderedErr.Err != nil {
		return renderedErr
	}
	return models.NewResolveError(renderedErr.Code, renderedErr.Message, staticErr)
}

// asResolveError coerces an engine error into a typed ResolveError.
func asResolveError(err error) *models.ResolveError {
	if re, ok := err.(*models.ResolveError); ok {
		return re
	}
	return models.NewResolveError(models.ErrCodeFetchFailed, err.Error(), err)
}

// hostname parses the lowercase host from a URL string.
func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Hostname())
}
