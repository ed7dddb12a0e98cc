// Command scraping-img-server exposes the image resolution pipeline over an
// HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hiraku00/scraping-img/api"
	"github.com/hiraku00/scraping-img/config"
	"github.com/hiraku00/scraping-img/fetch"
	"github.com/hiraku00/scraping-img/imageprep"
	"github.com/hiraku00/scraping-img/resolver"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("scraping-img-server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"renderer", !cfg.Fetch.DisableRenderer,
	)

	// ── 3. Initialise fetch paths ───────────────────────────────────
	static := fetch.NewStaticEngine(cfg.Fetch)

	var renderer *fetch.Renderer
	if !cfg.Fetch.DisableRenderer {
		var err error
		renderer, err = fetch.NewRenderer(cfg.Fetch)
		if err != nil {
			slog.Warn("browser unavailable, serving with lightweight fetch only", "error", err)
		} else {
			defer renderer.Close()
		}
	}

	var renderEngine fetch.Engine
	if renderer != nil {
		renderEngine = renderer
	}
	orch := fetch.NewOrchestrator(static, renderEngine, fetch.DefaultOverrides(), resolver.New())
	preparer := imageprep.NewPreparer(cfg.Image, cfg.Fetch.UserAgent)

	// ── 4. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(orch, preparer, orch.RendererAvailable, cfg, startTime)

	// ── 5. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// renderer.Close() runs via defer and kills Chrome.
	slog.Info("scraping-img-server stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
