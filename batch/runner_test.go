package batch

import (
	"context"
	"testing"
	"time"

	"github.com/hiraku00/scraping-img/config"
	"github.com/hiraku00/scraping-img/fetch"
	"github.com/hiraku00/scraping-img/imageprep"
	"github.com/hiraku00/scraping-img/models"
)

// fakeSource records everything the runner writes back.
type fakeSource struct {
	rows      []Row
	imageURLs map[int]string
	errors    map[int]string
	markers   map[int]bool
	embedded  map[int]*imageprep.Prepared
	flushes   int
}

func newFakeSource(rows ...Row) *fakeSource {
	return &fakeSource{
		rows:      rows,
		imageURLs: make(map[int]string),
		errors:    make(map[int]string),
		markers:   make(map[int]bool),
		embedded:  make(map[int]*imageprep.Prepared),
	}
}

func (f *fakeSource) Rows() ([]Row, error) { return f.rows, nil }

func (f *fakeSource) SetImageURL(row int, imageURL string) error {
	f.imageURLs[row] = imageURL
	return nil
}

func (f *fakeSource) SetError(row int, message string) error {
	f.errors[row] = message
	return nil
}

func (f *fakeSource) SetMarker(row int) error {
	f.markers[row] = true
	return nil
}

func (f *fakeSource) EmbedImage(row int, img *imageprep.Prepared) error {
	f.embedded[row] = img
	return nil
}

func (f *fakeSource) Flush() error {
	f.flushes++
	return nil
}

// fakeLocator returns canned outcomes per URL.
type fakeLocator struct {
	outcomes map[string]fetch.Outcome
	onLocate func(url string)
}

func (f *fakeLocator) Locate(ctx context.Context, pageURL string) fetch.Outcome {
	if f.onLocate != nil {
		f.onLocate(pageURL)
	}
	return f.outcomes[pageURL]
}

// fakePreparer returns a fixed prepared image or an error.
type fakePreparer struct {
	prepared *imageprep.Prepared
	err      error
	calls    int
}

func (f *fakePreparer) Prepare(ctx context.Context, imageURL string, targetWidth int, referrer string) (*imageprep.Prepared, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.prepared, nil
}

func testBatchConfig() (config.ImageConfig, config.BatchConfig) {
	return config.ImageConfig{TargetWidth: 100},
		config.BatchConfig{RowDelay: time.Millisecond}
}

func TestRunWritesResultsPerRow(t *testing.T) {
	source := newFakeSource(
		Row{Index: 2, URL: "https://shop.example/p/1"},
		Row{Index: 3, URL: "https://shop.example/p/2"},
	)
	locator := &fakeLocator{outcomes: map[string]fetch.Outcome{
		"https://shop.example/p/1": {
			ImageURL: "https://cdn.example/a.jpg",
			FinalURL: "https://shop.example/p/1",
			Strategy: fetch.StrategyStatic,
		},
		"https://shop.example/p/2": {
			Strategy: fetch.StrategyRendered,
			Err:      models.NewResolveError(models.ErrCodeNoImageRendered, "no image after rendered fetch", nil),
		},
	}}
	preparer := &fakePreparer{prepared: &imageprep.Prepared{Data: []byte{1}, Width: 100, Height: 75, Format: "jpeg"}}

	imgCfg, batchCfg := testBatchConfig()
	stats, err := NewRunner(source, locator, preparer, imgCfg, batchCfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Total != 2 || stats.Resolved != 1 || stats.Embedded != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if got := source.imageURLs[2]; got != "https://cdn.example/a.jpg" {
		t.Errorf("row 2 image URL = %q", got)
	}
	if got := source.errors[3]; got != models.ErrCodeNoImageRendered {
		t.Errorf("row 3 error tag = %q, want %s", got, models.ErrCodeNoImageRendered)
	}
	if !source.markers[2] || !source.markers[3] {
		t.Error("progress markers missing")
	}
	if source.embedded[2] == nil {
		t.Error("row 2 image not embedded")
	}
	if source.flushes != 2 {
		t.Errorf("flushes = %d, want one per row", source.flushes)
	}
}

func TestRunSkipsInvalidURL(t *testing.T) {
	source := newFakeSource(Row{Index: 2, URL: "not-a-url"})
	locator := &fakeLocator{outcomes: map[string]fetch.Outcome{}}

	imgCfg, batchCfg := testBatchConfig()
	stats, err := NewRunner(source, locator, nil, imgCfg, batchCfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Skipped != 1 || stats.Failed != 0 || stats.Resolved != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if got := source.errors[2]; got != "invalid URL" {
		t.Errorf("row 2 tag = %q, want invalid URL", got)
	}
	if source.markers[2] {
		t.Error("invalid row should not be marked as processed")
	}
}

func TestRunDelaysBeforeSecondRow(t *testing.T) {
	source := newFakeSource(
		Row{Index: 2, URL: "https://shop.example/p/1"},
		Row{Index: 3, URL: "https://shop.example/p/2"},
	)
	locator := &fakeLocator{outcomes: map[string]fetch.Outcome{
		"https://shop.example/p/1": {ImageURL: "https://cdn.example/a.jpg", Strategy: fetch.StrategyStatic},
		"https://shop.example/p/2": {ImageURL: "https://cdn.example/b.jpg", Strategy: fetch.StrategyStatic},
	}}

	delay := 60 * time.Millisecond
	imgCfg := config.ImageConfig{TargetWidth: 100}
	batchCfg := config.BatchConfig{RowDelay: delay}

	start := time.Now()
	if _, err := NewRunner(source, locator, nil, imgCfg, batchCfg).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The very first inter-row gap must honor the delay too.
	if elapsed := time.Since(start); elapsed < delay {
		t.Errorf("two rows finished in %v, want at least %v between them", elapsed, delay)
	}
}

func TestRunStopsOnCancellationKeepingCompletedRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	source := newFakeSource(
		Row{Index: 2, URL: "https://shop.example/p/1"},
		Row{Index: 3, URL: "https://shop.example/p/2"},
	)
	locator := &fakeLocator{
		outcomes: map[string]fetch.Outcome{
			"https://shop.example/p/1": {ImageURL: "https://cdn.example/a.jpg", Strategy: fetch.StrategyStatic},
		},
		onLocate: func(string) { cancel() },
	}

	imgCfg, batchCfg := testBatchConfig()
	stats, err := NewRunner(source, locator, nil, imgCfg, batchCfg).Run(ctx)
	if err == nil {
		t.Fatal("want cancellation error")
	}

	if stats.Resolved != 1 {
		t.Errorf("stats = %+v, want first row resolved before cancellation", stats)
	}
	if source.flushes != 1 {
		t.Errorf("flushes = %d, want completed row flushed", source.flushes)
	}
	if _, processed := source.imageURLs[3]; processed {
		t.Error("second row processed after cancellation")
	}
}

func TestRunWithoutPreparerSkipsEmbedding(t *testing.T) {
	source := newFakeSource(Row{Index: 2, URL: "https://shop.example/p/1"})
	locator := &fakeLocator{outcomes: map[string]fetch.Outcome{
		"https://shop.example/p/1": {ImageURL: "https://cdn.example/a.jpg", Strategy: fetch.StrategyStatic},
	}}

	imgCfg, batchCfg := testBatchConfig()
	stats, err := NewRunner(source, locator, nil, imgCfg, batchCfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Resolved != 1 || stats.Embedded != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(source.embedded) != 0 {
		t.Error("image embedded despite nil preparer")
	}
}

func TestRunPreparationFailureStillCountsResolved(t *testing.T) {
	source := newFakeSource(Row{Index: 2, URL: "https://shop.example/p/1"})
	locator := &fakeLocator{outcomes: map[string]fetch.Outcome{
		"https://shop.example/p/1": {ImageURL: "https://cdn.example/a.jpg", Strategy: fetch.StrategyStatic},
	}}
	preparer := &fakePreparer{err: models.NewResolveError(models.ErrCodeImagePrep, "image prep: decode failed", nil)}

	imgCfg, batchCfg := testBatchConfig()
	stats, err := NewRunner(source, locator, preparer, imgCfg, batchCfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Resolved != 1 || stats.Embedded != 0 {
		t.Errorf("stats = %+v, want resolved without embed", stats)
	}
	if got := source.imageURLs[2]; got != "https://cdn.example/a.jpg" {
		t.Errorf("row 2 image URL = %q, want URL kept despite prep failure", got)
	}
}
