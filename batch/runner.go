package batch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hiraku00/scraping-img/config"
)

// Stats summarizes one batch run.
type Stats struct {
	Total    int
	Resolved int
	Embedded int
	Failed   int
	Skipped  int
	Elapsed  time.Duration
}

// Runner drives the sequential row loop: locate an image for each URL, write
// the result back, download and embed the image, and pause between rows.
type Runner struct {
	source   RowSource
	locator  Locator
	preparer ImagePreparer

	targetWidth int
	limiter     *rate.Limiter
}

// NewRunner wires the pipeline stages together. preparer may be nil to skip
// image download and embedding, leaving only the resolved URL in the sheet.
func NewRunner(source RowSource, locator Locator, preparer ImagePreparer, imgCfg config.ImageConfig, batchCfg config.BatchConfig) *Runner {
	return &Runner{
		source:      source,
		locator:     locator,
		preparer:    preparer,
		targetWidth: imgCfg.TargetWidth,
		limiter:     rate.NewLimiter(rate.Every(batchCfg.RowDelay), 1),
	}
}

// Run processes every row until the sheet is exhausted or ctx is canceled.
// Completed rows are flushed as they finish, so cancellation keeps all work
// done so far. The returned error is non-nil only for cancellation or a
// sheet write failure; per-row resolution failures are recorded in the sheet
// and counted in Stats.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	stats := Stats{}

	rows, err := r.source.Rows()
	if err != nil {
		return stats, err
	}
	stats.Total = len(rows)
	slog.Info("batch run starting", "rows", stats.Total)

	// The limiter starts with a full bucket; drain it so the first inter-row
	// gap honors the delay like every later one.
	r.limiter.Allow()

	for i, row := range rows {
		if i > 0 {
			// Politeness pause between rows. Waits the full interval even
			// when the previous row failed fast.
			if err := r.limiter.Wait(ctx); err != nil {
				stats.Elapsed = time.Since(start)
				return stats, err
			}
		}
		if err := ctx.Err(); err != nil {
			stats.Elapsed = time.Since(start)
			return stats, err
		}

		r.processRow(ctx, row, &stats)

		if err := r.source.Flush(); err != nil {
			stats.Elapsed = time.Since(start)
			return stats, err
		}
	}

	stats.Elapsed = time.Since(start)
	slog.Info("batch run finished",
		"total", stats.Total,
		"resolved", stats.Resolved,
		"embedded", stats.Embedded,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"elapsed", stats.Elapsed.Round(time.Millisecond))
	return stats, nil
}

func (r *Runner) processRow(ctx context.Context, row Row, stats *Stats) {
	log := slog.With("row", row.Index, "url", row.URL)

	if !validPageURL(row.URL) {
		log.Warn("skipping row with invalid URL")
		if err := r.source.SetError(row.Index, "invalid URL"); err != nil {
			log.Error("failed to write error cell", "error", err)
		}
		stats.Skipped++
		return
	}

	outcome := r.locator.Locate(ctx, row.URL)
	if err := r.source.SetMarker(row.Index); err != nil {
		log.Error("failed to write marker cell", "error", err)
	}

	if outcome.ImageURL == "" {
		tag := "no image found"
		if outcome.Err != nil {
			tag = outcome.Err.Code
		}
		log.Warn("no image for row", "tag", tag, "strategy", outcome.Strategy)
		if err := r.source.SetError(row.Index, tag); err != nil {
			log.Error("failed to write error cell", "error", err)
		}
		stats.Failed++
		return
	}

	log.Info("image resolved", "image_url", outcome.ImageURL, "strategy", outcome.Strategy)
	if err := r.source.SetImageURL(row.Index, outcome.ImageURL); err != nil {
		log.Error("failed to write image URL cell", "error", err)
	}
	stats.Resolved++

	if r.preparer == nil {
		return
	}

	referrer := outcome.FinalURL
	if referrer == "" {
		referrer = row.URL
	}
	prepared, err := r.preparer.Prepare(ctx, outcome.ImageURL, r.targetWidth, referrer)
	if err != nil {
		log.Warn("image preparation failed", "error", err)
		return
	}
	if err := r.source.EmbedImage(row.Index, prepared); err != nil {
		log.Warn("image embed failed", "error", err)
		return
	}
	stats.Embedded++
}

// validPageURL accepts only absolute http(s) URLs.
func validPageURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
