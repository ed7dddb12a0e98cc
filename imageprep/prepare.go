// Package imageprep turns a resolved image URL into an embeddable asset:
// download, validate, normalize color mode, resize to a target width, and
// re-encode. Every failure degrades to a typed error; nothing panics or
// propagates decoder internals.
package imageprep

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // decode-only; gif output re-encodes as PNG
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"strings"

	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // decode-only; webp output re-encodes as PNG

	"github.com/hiraku00/scraping-img/config"
	"github.com/hiraku00/scraping-img/models"
)

// Prepared is an encoded, resized image ready for embedding.
type Prepared struct {
	// Data is a complete, valid image stream in Format.
	Data []byte

	// Width always equals the requested target width. Height preserves
	// the source aspect ratio and is always at least 1.
	Width  int
	Height int

	// Format is one of "jpeg", "png", "bmp", "tiff".
	Format string
}

// preservedFormats are kept on re-encode; everything else becomes PNG.
var preservedFormats = map[string]struct{}{
	"jpeg": {},
	"png":  {},
	"bmp":  {},
	"tiff": {},
}

// Preparer downloads and re-encodes images.
type Preparer struct {
	client    *http.Client
	cfg       config.ImageConfig
	userAgent string
}

// NewPreparer creates a Preparer bound to the image configuration.
func NewPreparer(cfg config.ImageConfig, userAgent string) *Preparer {
	return &Preparer{
		cfg:       cfg,
		userAgent: userAgent,
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

// Prepare fetches imageURL and produces the embeddable asset. referrer, when
// non-empty, is sent as the Referer header — some image hosts reject
// requests lacking the originating page.
func (p *Preparer) Prepare(ctx context.Context, imageURL string, targetWidth int, referrer string) (*Prepared, error) {
	if targetWidth < 1 {
		return nil, models.NewResolveError(models.ErrCodeInvalidInput, "target width must be positive", nil)
	}

	data, err := p.download(ctx, imageURL, referrer)
	if err != nil {
		return nil, err
	}

	return p.encode(data, targetWidth, imageURL)
}

// download streams the image body subject to the configured size cap.
func (p *Preparer) download(ctx context.Context, imageURL, referrer string) ([]byte, *models.ResolveError) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, models.NewResolveError(models.ErrCodeInvalidInput, "image prep: build request", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	if referrer != "" {
		req.Header.Set("Referer", referrer)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewResolveError(models.ErrCodeTimeout, "image prep: download timed out", err)
		}
		return nil, models.NewResolveError(models.ErrCodeImagePrep, "image prep: download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, models.NewResolveError(models.ErrCodeImagePrep,
			fmt.Sprintf("image prep: HTTP %d", resp.StatusCode), nil)
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "image/") {
		return nil, models.NewResolveError(models.ErrCodeImagePrep,
			fmt.Sprintf("image prep: non-image content-type %q", ct), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxBytes))
	if err != nil {
		return nil, models.NewResolveError(models.ErrCodeImagePrep, "image prep: read body", err)
	}
	if len(data) == 0 {
		return nil, models.NewResolveError(models.ErrCodeImagePrep, "image prep: empty image body", nil)
	}
	return data, nil
}

// encode decodes, normalizes, resizes, and re-encodes the image bytes.
func (p *Preparer) encode(data []byte, targetWidth int, imageURL string) (*Prepared, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, models.NewResolveError(models.ErrCodeImagePrep, "image prep: decode failed", err)
	}

	b := src.Bounds()
	origW, origH := b.Dx(), b.Dy()
	if origW <= 0 || origH <= 0 {
		return nil, models.NewResolveError(models.ErrCodeImagePrep,
			fmt.Sprintf("image prep: invalid dimensions %dx%d for %s", origW, origH, imageURL), nil)
	}

	targetHeight := int(math.Round(float64(targetWidth) * float64(origH) / float64(origW)))
	if targetHeight < 1 {
		targetHeight = 1
	}

	resized := resize(normalize(src), targetWidth, targetHeight)

	outFormat := format
	if _, keep := preservedFormats[outFormat]; !keep {
		// GIF, WebP and anything exotic re-encode as the generic
		// lossless format.
		outFormat = "png"
	}

	var out image.Image = resized
	if outFormat == "jpeg" && !resized.Opaque() {
		out = flattenAlpha(resized)
	}

	buf, encErr := p.encodeAs(out, outFormat)
	if encErr != nil {
		return nil, models.NewResolveError(models.ErrCodeImagePrep, "image prep: encode failed", encErr)
	}

	return &Prepared{
		Data:   buf,
		Width:  targetWidth,
		Height: targetHeight,
		Format: outFormat,
	}, nil
}

func (p *Preparer) encodeAs(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.cfg.JPEGQuality})
	case "bmp":
		err = bmp.Encode(&buf, img)
	case "tiff":
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalize converts decoder-specific color modes into a consistent RGBA
// working representation: palette-indexed and gray-alpha become NRGBA,
// CMYK becomes RGB. Anything already renderable passes through.
func normalize(src image.Image) image.Image {
	switch src.(type) {
	case *image.Paletted:
		return toNRGBA(src)
	case *image.CMYK:
		rgb := image.NewRGBA(src.Bounds())
		draw.Draw(rgb, rgb.Bounds(), src, src.Bounds().Min, draw.Src)
		return rgb
	default:
		return src
	}
}

// resize scales src to exactly dstW×dstH with Catmull-Rom resampling, the
// highest-quality kernel in x/image/draw.
func resize(src image.Image, dstW, dstH int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

// flattenAlpha composites src onto a white background for formats that
// cannot carry transparency.
func flattenAlpha(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, image.White, image.Point{}, draw.Src)
	draw.Draw(dst, b, src, b.Min, draw.Over)
	return dst
}

func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	return dst
}
