// Command scraping-img resolves a product image for every URL in an Excel
// workbook and embeds the resized images back into the sheet.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/hiraku00/scraping-img/batch"
	"github.com/hiraku00/scraping-img/config"
	"github.com/hiraku00/scraping-img/fetch"
	"github.com/hiraku00/scraping-img/imageprep"
	"github.com/hiraku00/scraping-img/resolver"
)

// CLI defines the command-line interface.
type CLI struct {
	Input string `arg:"" help:"Path to the .xlsx workbook to process." type:"existingfile"`

	Sheet      string        `help:"Sheet name (defaults to the first sheet)." short:"s"`
	ImageWidth int           `help:"Embedded image width in pixels." default:"100" short:"w"`
	Delay      time.Duration `help:"Politeness pause between rows." default:"1s"`
	NoBrowser  bool          `help:"Disable the rendered-browser path entirely."`
	NoEmbed    bool          `help:"Write resolved image URLs only, skip download and embedding."`
	Debug      bool          `help:"Enable debug logging." short:"d"`
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("scraping-img"),
		kong.Description("Resolve and embed product images for page URLs in an Excel workbook."),
	)
	kctx.FatalIfErrorf(run(cli))
}

func run(cli *CLI) error {
	cfg := config.Load()
	cfg.Image.TargetWidth = cli.ImageWidth
	cfg.Batch.RowDelay = cli.Delay
	if cli.NoBrowser {
		cfg.Fetch.DisableRenderer = true
	}
	if cli.Debug {
		cfg.Log.Level = "debug"
	}
	initLogger(cfg.Log)

	slog.Info("scraping-img starting",
		"input", cli.Input,
		"sheet", cli.Sheet,
		"image_width", cfg.Image.TargetWidth,
		"renderer", !cfg.Fetch.DisableRenderer,
	)

	// Ctrl-C cancels the row loop; completed rows are already flushed.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := batch.OpenXLSX(cli.Input, cli.Sheet)
	if err != nil {
		return err
	}
	defer source.Close()

	static := fetch.NewStaticEngine(cfg.Fetch)

	var renderer *fetch.Renderer
	if !cfg.Fetch.DisableRenderer {
		renderer, err = fetch.NewRenderer(cfg.Fetch)
		if err != nil {
			slog.Warn("browser unavailable, continuing with lightweight fetch only", "error", err)
		} else {
			defer renderer.Close()
		}
	}

	var renderEngine fetch.Engine
	if renderer != nil {
		renderEngine = renderer
	}
	orch := fetch.NewOrchestrator(static, renderEngine, fetch.DefaultOverrides(), resolver.New())

	var preparer batch.ImagePreparer
	if !cli.NoEmbed {
		preparer = imageprep.NewPreparer(cfg.Image, cfg.Fetch.UserAgent)
	}

	runner := batch.NewRunner(source, orch, preparer, cfg.Image, cfg.Batch)
	stats, runErr := runner.Run(ctx)

	fmt.Printf("rows: %d  resolved: %d  embedded: %d  failed: %d  skipped: %d  elapsed: %s\n",
		stats.Total, stats.Resolved, stats.Embedded, stats.Failed, stats.Skipped,
		stats.Elapsed.Round(time.Millisecond))

	if runErr != nil {
		if ctx.Err() != nil {
			slog.Warn("run interrupted, completed rows were saved")
			return nil
		}
		return runErr
	}
	return nil
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
