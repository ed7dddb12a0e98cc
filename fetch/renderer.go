package fetch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/hiraku00/scraping-img/config"
	"github.com/hiraku00/scraping-img/models"
)

// Renderer is the rendered-browser fetch path: a single long-lived headless
// Chrome session with one reusable page, navigated sequentially. It is not
// safe for concurrent use; batch processing is strictly one URL at a time.
type Renderer struct {
	browser *rod.Browser
	page    *rod.Page
	router  *rod.HijackRouter
	cfg     config.FetchConfig
}

// blockedResourceTypes are fetched-but-unused resource classes blocked
// during rendered navigation. Image requests stay unblocked only as DOM
// references; their bytes are never read, but some lazy loaders promote
// data-src to src on load events, so the requests themselves go through.
var blockedResourceTypes = map[proto.NetworkResourceType]struct{}{
	proto.NetworkResourceTypeStylesheet: {},
	proto.NetworkResourceTypeFont:       {},
	proto.NetworkResourceTypeMedia:      {},
}

// NewRenderer launches the headless browser and prepares the reusable page.
// The caller owns the session and must call Close on every exit path.
func NewRenderer(cfg config.FetchConfig) (*Renderer, error) {
	start := time.Now()

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("window-size"), "1920,1080")
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewResolveError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewResolveError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		browser.MustClose()
		return nil, models.NewResolveError(models.ErrCodeBrowserCrash, "failed to create page", err)
	}

	// Stealth JS must be installed before any navigation; it only takes
	// effect for documents created after it.
	if cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: proto.NetworkHeaders{
			"User-Agent":      gson.New(cfg.UserAgent),
			"Accept-Language": gson.New("en-US,en;q=0.9,ja;q=0.8"),
		},
	}.Call(page)

	router := mountResourceBlocking(page)

	slog.Info("renderer ready", "elapsed", time.Since(start).Round(time.Millisecond))

	return &Renderer{
		browser: browser,
		page:    page,
		router:  router,
		cfg:     cfg,
	}, nil
}

func (r *Renderer) Name() Strategy { return StrategyRendered }

// Fetch navigates the shared page, waits out the settle delay so client-side
// rendering can finish, and captures the rendered DOM plus the post-redirect
// URL. Navigation fully resets in-page state; nothing carries over between
// URLs.
func (r *Renderer) Fetch(ctx context.Context, pageURL string) (*PageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.RenderTimeout)
	defer cancel()

	// Reset uses the original page reference so cleanup succeeds even when
	// the request context has already expired.
	defer func() {
		if navErr := r.page.Navigate("about:blank"); navErr != nil {
			slog.Warn("renderer cleanup: failed to navigate to about:blank", "error", navErr)
		}
	}()

	p := r.page.Context(ctx)

	if err := p.Navigate(pageURL); err != nil {
		return nil, categorizeRenderError(err, "navigation to target URL failed")
	}

	// Fixed settle delay for client-side rendering, then wait for the DOM
	// to stop mutating (best-effort).
	select {
	case <-ctx.Done():
		return nil, categorizeRenderError(ctx.Err(), "settle wait interrupted")
	case <-time.After(r.cfg.SettleDelay):
	}
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", stableErr)
	}

	rendered, err := p.HTML()
	if err != nil {
		return nil, categorizeRenderError(err, "failed to extract rendered HTML")
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = pageURL
	}
	title := evalStringOrEmpty(p, `() => document.title`)

	return &PageResult{
		HTML:     rendered,
		FinalURL: finalURL,
		Title:    title,
		Strategy: StrategyRendered,
	}, nil
}

// Close stops request interception and kills the browser process. Safe to
// call once on any exit path; prevents zombie Chrome processes.
func (r *Renderer) Close() {
	if r.router != nil {
		_ = r.router.Stop()
	}
	slog.Info("renderer shutting down")
	r.browser.MustClose()
}

// mountResourceBlocking installs a request interceptor that drops resource
// classes the resolver never needs. Returns the running router so Close can
// stop it.
func mountResourceBlocking(page *rod.Page) *rod.HijackRouter {
	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, blocked := blockedResourceTypes[ctx.Request.Type()]; blocked {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	// router.Run() blocks until router.Stop() is called.
	go router.Run()
	return router
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// categorizeRenderError wraps raw rod errors into typed ResolveErrors.
// Session-level failures map to BROWSER_CRASH so the orchestrator can
// disable the rendered path for the rest of the run.
func categorizeRenderError(err error, msg string) *models.ResolveError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewResolveError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewResolveError(models.ErrCodeTimeout, "fetch canceled", err)
	case isSessionError(err):
		return models.NewResolveError(models.ErrCodeBrowserCrash, msg, err)
	default:
		return models.NewResolveError(models.ErrCodeNavigation, msg, err)
	}
}

// isSessionError detects errors that mean the browser session itself is
// gone rather than one navigation having failed.
func isSessionError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "websocket") ||
		strings.Contains(s, "cdp connection") ||
		strings.Contains(s, "browser has been closed")
}
