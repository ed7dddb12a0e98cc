// Package batch runs the image resolution pipeline over a spreadsheet of
// product page URLs, one row at a time, writing results back in place.
package batch

import (
	"context"

	"github.com/hiraku00/scraping-img/fetch"
	"github.com/hiraku00/scraping-img/imageprep"
)

// Row is one spreadsheet row selected for processing.
type Row struct {
	// Index is the 1-based spreadsheet row number.
	Index int

	// URL is the trimmed page URL from the URL column. Rows with an empty
	// URL cell are never produced.
	URL string
}

// RowSource abstracts the spreadsheet the runner reads from and writes back
// to. Implementations are not safe for concurrent use; the runner processes
// rows strictly sequentially.
type RowSource interface {
	// Rows returns every row with a non-empty URL cell, in sheet order.
	Rows() ([]Row, error)

	// SetImageURL writes the resolved image URL into the result column as a
	// hyperlink.
	SetImageURL(row int, imageURL string) error

	// SetError writes a short failure tag into the result column.
	SetError(row int, message string) error

	// SetMarker writes the per-row progress marker.
	SetMarker(row int) error

	// EmbedImage places the prepared image into the embed column, adjusting
	// row height and column width to fit.
	EmbedImage(row int, img *imageprep.Prepared) error

	// Flush persists everything written so far. Called after every row so an
	// interrupted run keeps its completed rows.
	Flush() error
}

// Locator resolves one page URL to an image URL. Implemented by
// fetch.Orchestrator.
type Locator interface {
	Locate(ctx context.Context, pageURL string) fetch.Outcome
}

// ImagePreparer downloads and re-encodes a resolved image. Implemented by
// imageprep.Preparer.
type ImagePreparer interface {
	Prepare(ctx context.Context, imageURL string, targetWidth int, referrer string) (*imageprep.Prepared, error)
}
