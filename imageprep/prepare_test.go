package imageprep

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hiraku00/scraping-img/config"
	"github.com/hiraku00/scraping-img/models"
)

func testConfig() config.ImageConfig {
	return config.ImageConfig{
		TargetWidth:     100,
		DownloadTimeout: 5 * time.Second,
		MaxBytes:        20 << 20,
		JPEGQuality:     85,
	}
}

func newTestPreparer() *Preparer {
	return NewPreparer(testConfig(), "test-agent")
}

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func serveImage(t *testing.T, contentType string, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func resolveErrCode(t *testing.T, err error) string {
	t.Helper()
	var re *models.ResolveError
	if !errors.As(err, &re) {
		t.Fatalf("error %v is not a ResolveError", err)
	}
	return re.Code
}

func TestPrepareResizesPreservingAspect(t *testing.T) {
	body := encodePNG(t, solidImage(400, 200, color.NRGBA{R: 200, G: 10, B: 10, A: 255}))
	srv := serveImage(t, "image/png", body)

	got, err := newTestPreparer().Prepare(context.Background(), srv.URL+"/a.png", 100, "")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if got.Width != 100 || got.Height != 50 {
		t.Errorf("dimensions = %dx%d, want 100x50", got.Width, got.Height)
	}
	if got.Format != "png" {
		t.Errorf("format = %q, want png", got.Format)
	}

	decoded, format, err := image.Decode(bytes.NewReader(got.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "png" {
		t.Errorf("output stream format = %q, want png", format)
	}
	b := decoded.Bounds()
	if b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("output stream dimensions = %dx%d, want 100x50", b.Dx(), b.Dy())
	}
}

func TestPrepareHeightNeverBelowOne(t *testing.T) {
	body := encodePNG(t, solidImage(400, 1, color.NRGBA{R: 1, G: 2, B: 3, A: 255}))
	srv := serveImage(t, "image/png", body)

	got, err := newTestPreparer().Prepare(context.Background(), srv.URL+"/thin.png", 10, "")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if got.Height != 1 {
		t.Errorf("height = %d, want clamp to 1", got.Height)
	}
}

func TestPrepareJPEGStaysJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solidImage(300, 300, color.NRGBA{R: 9, G: 9, B: 9, A: 255}), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	srv := serveImage(t, "image/jpeg", buf.Bytes())

	got, err := newTestPreparer().Prepare(context.Background(), srv.URL+"/a.jpg", 50, "")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if got.Format != "jpeg" {
		t.Errorf("format = %q, want jpeg preserved", got.Format)
	}
	if _, format, err := image.Decode(bytes.NewReader(got.Data)); err != nil || format != "jpeg" {
		t.Errorf("output stream format = %q (err %v), want jpeg", format, err)
	}
}

func TestPrepareGIFBecomesPNG(t *testing.T) {
	var buf bytes.Buffer
	pal := image.NewPaletted(image.Rect(0, 0, 120, 60), color.Palette{
		color.NRGBA{A: 255},
		color.NRGBA{R: 255, A: 255},
	})
	if err := gif.Encode(&buf, pal, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	srv := serveImage(t, "image/gif", buf.Bytes())

	got, err := newTestPreparer().Prepare(context.Background(), srv.URL+"/a.gif", 60, "")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if got.Format != "png" {
		t.Errorf("format = %q, want gif re-encoded as png", got.Format)
	}
	if got.Width != 60 || got.Height != 30 {
		t.Errorf("dimensions = %dx%d, want 60x30", got.Width, got.Height)
	}
}

func TestPrepareTransparencySurvivesPNG(t *testing.T) {
	body := encodePNG(t, solidImage(100, 100, color.NRGBA{R: 50, G: 60, B: 70, A: 128}))
	srv := serveImage(t, "image/png", body)

	got, err := newTestPreparer().Prepare(context.Background(), srv.URL+"/t.png", 50, "")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	decoded, _, err := image.Decode(bytes.NewReader(got.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	_, _, _, a := decoded.At(25, 25).RGBA()
	if a == 0xffff {
		t.Error("alpha channel lost on png round trip")
	}
}

func TestPrepareRejectsNonImageContentType(t *testing.T) {
	srv := serveImage(t, "text/html", []byte("<html>not an image</html>"))

	_, err := newTestPreparer().Prepare(context.Background(), srv.URL+"/page", 100, "")
	if err == nil {
		t.Fatal("want error for non-image content type")
	}
	if code := resolveErrCode(t, err); code != models.ErrCodeImagePrep {
		t.Errorf("code = %s, want %s", code, models.ErrCodeImagePrep)
	}
}

func TestPrepareRejectsEmptyBody(t *testing.T) {
	srv := serveImage(t, "image/png", nil)

	_, err := newTestPreparer().Prepare(context.Background(), srv.URL+"/empty.png", 100, "")
	if err == nil {
		t.Fatal("want error for empty body")
	}
	if code := resolveErrCode(t, err); code != models.ErrCodeImagePrep {
		t.Errorf("code = %s, want %s", code, models.ErrCodeImagePrep)
	}
}

func TestPrepareRejectsCorruptImage(t *testing.T) {
	srv := serveImage(t, "image/png", []byte("definitely not png bytes"))

	_, err := newTestPreparer().Prepare(context.Background(), srv.URL+"/bad.png", 100, "")
	if err == nil {
		t.Fatal("want error for undecodable bytes")
	}
	if code := resolveErrCode(t, err); code != models.ErrCodeImagePrep {
		t.Errorf("code = %s, want %s", code, models.ErrCodeImagePrep)
	}
}

func TestPrepareRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	_, err := newTestPreparer().Prepare(context.Background(), srv.URL+"/missing.png", 100, "")
	if err == nil {
		t.Fatal("want error for 404 response")
	}
	if code := resolveErrCode(t, err); code != models.ErrCodeImagePrep {
		t.Errorf("code = %s, want %s", code, models.ErrCodeImagePrep)
	}
}

func TestPrepareRejectsNonPositiveWidth(t *testing.T) {
	_, err := newTestPreparer().Prepare(context.Background(), "https://cdn.example/a.png", 0, "")
	if err == nil {
		t.Fatal("want error for zero target width")
	}
	if code := resolveErrCode(t, err); code != models.ErrCodeInvalidInput {
		t.Errorf("code = %s, want %s", code, models.ErrCodeInvalidInput)
	}
}

func TestPrepareSendsRefererAndUserAgent(t *testing.T) {
	var gotReferer, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(encodePNG(t, solidImage(20, 20, color.NRGBA{A: 255})))
	}))
	t.Cleanup(srv.Close)

	_, err := newTestPreparer().Prepare(context.Background(), srv.URL+"/a.png", 10, "https://shop.example/p/1")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if gotReferer != "https://shop.example/p/1" {
		t.Errorf("Referer = %q", gotReferer)
	}
	if gotUA != "test-agent" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}
