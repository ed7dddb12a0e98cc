package batch

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hiraku00/scraping-img/imageprep"
	"github.com/hiraku00/scraping-img/models"
)

const (
	// urlHeader is the required header of the column holding page URLs.
	urlHeader = "URL"

	// imageURLHeader is the required header of the column the resolved image
	// URL is written to.
	imageURLHeader = "Image URL"

	headerRow = 1

	// markerCol and embedCol are fixed by sheet layout rather than headers.
	markerCol = 4 // column D
	embedCol  = 5 // column E
)

// XLSXSource is a RowSource backed by an Excel workbook. Results are written
// into the workbook in place and flushed after every row.
type XLSXSource struct {
	file  *excelize.File
	path  string
	sheet string

	urlCol      int
	imageURLCol int
}

// OpenXLSX opens the workbook and locates the required columns on the named
// sheet. An empty sheet name selects the first sheet.
func OpenXLSX(path, sheet string) (*XLSXSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, models.NewResolveError(models.ErrCodeInvalidInput, fmt.Sprintf("open workbook %s", path), err)
	}

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		f.Close()
		return nil, models.NewResolveError(models.ErrCodeInvalidInput, fmt.Sprintf("sheet %q not found", sheet), err)
	}

	s := &XLSXSource{file: f, path: path, sheet: sheet}
	if err := s.locateColumns(); err != nil {
		f.Close()
		return nil, err
	}

	slog.Info("workbook opened",
		"path", path,
		"sheet", sheet,
		"url_col", s.urlCol,
		"image_url_col", s.imageURLCol)
	return s, nil
}

// locateColumns scans the header row for the required column headers.
func (s *XLSXSource) locateColumns() error {
	rows, err := s.file.GetRows(s.sheet)
	if err != nil {
		return models.NewResolveError(models.ErrCodeInvalidInput, "read sheet", err)
	}
	if len(rows) < headerRow {
		return models.NewResolveError(models.ErrCodeInvalidInput, "sheet has no header row", nil)
	}

	for i, h := range rows[headerRow-1] {
		switch strings.TrimSpace(h) {
		case urlHeader:
			s.urlCol = i + 1
		case imageURLHeader:
			s.imageURLCol = i + 1
		}
	}

	var missing []string
	if s.urlCol == 0 {
		missing = append(missing, urlHeader)
	}
	if s.imageURLCol == 0 {
		missing = append(missing, imageURLHeader)
	}
	if len(missing) > 0 {
		return models.NewResolveError(models.ErrCodeInvalidInput,
			fmt.Sprintf("required column headers not found: %s", strings.Join(missing, ", ")), nil)
	}
	return nil
}

// Rows lists every data row with a non-empty URL cell, clearing stale result
// cells as it goes so reruns never mix old and new output.
func (s *XLSXSource) Rows() ([]Row, error) {
	rows, err := s.file.GetRows(s.sheet)
	if err != nil {
		return nil, models.NewResolveError(models.ErrCodeInvalidInput, "read sheet", err)
	}

	var out []Row
	for i := headerRow; i < len(rows); i++ {
		rowNum := i + 1
		var raw string
		if len(rows[i]) >= s.urlCol {
			raw = strings.TrimSpace(rows[i][s.urlCol-1])
		}
		if raw == "" {
			continue
		}

		if err := s.clearResultCells(rowNum); err != nil {
			return nil, err
		}
		out = append(out, Row{Index: rowNum, URL: raw})
	}
	return out, nil
}

// clearResultCells wipes the previous run's output for a row: cell values,
// the hyperlink on the image-URL cell, and any picture embedded at the embed
// cell. Reruns over an already-processed workbook must replace results, not
// stack them.
func (s *XLSXSource) clearResultCells(row int) error {
	for _, col := range []int{s.imageURLCol, markerCol, embedCol} {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		if err := s.file.SetCellValue(s.sheet, cell, nil); err != nil {
			return err
		}
	}

	urlCell, err := excelize.CoordinatesToCellName(s.imageURLCol, row)
	if err != nil {
		return err
	}
	if err := s.file.SetCellHyperLink(s.sheet, urlCell, "", "None"); err != nil {
		return err
	}

	embedCell, err := excelize.CoordinatesToCellName(embedCol, row)
	if err != nil {
		return err
	}
	return s.file.DeletePicture(s.sheet, embedCell)
}

func (s *XLSXSource) SetImageURL(row int, imageURL string) error {
	cell, err := excelize.CoordinatesToCellName(s.imageURLCol, row)
	if err != nil {
		return err
	}
	if err := s.file.SetCellValue(s.sheet, cell, imageURL); err != nil {
		return err
	}
	if err := s.file.SetCellHyperLink(s.sheet, cell, imageURL, "External"); err != nil {
		slog.Warn("failed to set hyperlink", "row", row, "error", err)
	}
	return nil
}

func (s *XLSXSource) SetError(row int, message string) error {
	cell, err := excelize.CoordinatesToCellName(s.imageURLCol, row)
	if err != nil {
		return err
	}
	return s.file.SetCellValue(s.sheet, cell, message)
}

func (s *XLSXSource) SetMarker(row int) error {
	cell, err := excelize.CoordinatesToCellName(markerCol, row)
	if err != nil {
		return err
	}
	return s.file.SetCellValue(s.sheet, cell, "-")
}

// EmbedImage anchors the prepared image at the embed column and grows the row
// and column so the picture is fully visible.
func (s *XLSXSource) EmbedImage(row int, img *imageprep.Prepared) error {
	cell, err := excelize.CoordinatesToCellName(embedCol, row)
	if err != nil {
		return err
	}

	ext := "." + img.Format
	if img.Format == "jpeg" {
		ext = ".jpg"
	}
	if err := s.file.AddPictureFromBytes(s.sheet, cell, &excelize.Picture{
		Extension: ext,
		File:      img.Data,
		Format:    &excelize.GraphicOptions{AltText: "product image"},
	}); err != nil {
		return err
	}

	// Pixel-to-point and pixel-to-character conversions approximate Excel's
	// default rendering.
	wantHeight := float64(img.Height)*0.75 + 2
	if cur, err := s.file.GetRowHeight(s.sheet, row); err == nil && cur < wantHeight {
		if err := s.file.SetRowHeight(s.sheet, row, wantHeight); err != nil {
			return err
		}
	}

	colName, err := excelize.ColumnNumberToName(embedCol)
	if err != nil {
		return err
	}
	wantWidth := float64(img.Width)/7.0 + 2
	if cur, err := s.file.GetColWidth(s.sheet, colName); err == nil && cur < wantWidth {
		if err := s.file.SetColWidth(s.sheet, colName, colName, wantWidth); err != nil {
			return err
		}
	}
	return nil
}

// Flush saves the workbook back to its original path.
func (s *XLSXSource) Flush() error {
	return s.file.Save()
}

// Close releases the workbook handle. Does not save.
func (s *XLSXSource) Close() error {
	return s.file.Close()
}
