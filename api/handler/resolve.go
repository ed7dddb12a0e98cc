package handler

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hiraku00/scraping-img/batch"
	"github.com/hiraku00/scraping-img/models"
)

// Resolve returns a handler for POST /api/v1/resolve.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Locator.Locate → image URL + final URL      (records fetch_ms)
//  3. Preparer.Prepare (unless skip_prepare)      (records prepare_ms)
//  4. Fill Timing, return 200.
//
// The locator owns a single browser session, so requests are serialized; a
// concurrent request waits rather than sharing the page mid-navigation.
func Resolve(locator batch.Locator, preparer batch.ImagePreparer) gin.HandlerFunc {
	var mu sync.Mutex

	return func(c *gin.Context) {
		totalStart := time.Now()

		var req models.ResolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ResolveResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(req.Timeout)*time.Second)
		defer cancel()

		mu.Lock()
		fetchStart := time.Now()
		outcome := locator.Locate(ctx, req.URL)
		fetchMs := time.Since(fetchStart).Milliseconds()
		mu.Unlock()

		if outcome.ImageURL == "" {
			respondError(c, outcome.Err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
				FetchMs: fetchMs,
			})
			return
		}

		resp := models.ResolveResponse{
			Success:  true,
			ImageURL: outcome.ImageURL,
			FinalURL: outcome.FinalURL,
			Strategy: string(outcome.Strategy),
		}

		var prepareMs int64
		if !req.SkipPrepare && preparer != nil {
			prepStart := time.Now()
			prepared, err := preparer.Prepare(ctx, outcome.ImageURL, req.TargetWidth, outcome.FinalURL)
			prepareMs = time.Since(prepStart).Milliseconds()
			if err != nil {
				respondError(c, err, models.TimingInfo{
					TotalMs:   time.Since(totalStart).Milliseconds(),
					FetchMs:   fetchMs,
					PrepareMs: prepareMs,
				})
				return
			}
			resp.Image = &models.PreparedImagePayload{
				Data:   base64.StdEncoding.EncodeToString(prepared.Data),
				Width:  prepared.Width,
				Height: prepared.Height,
				Format: prepared.Format,
			}
		}

		resp.Timing = models.TimingInfo{
			TotalMs:   time.Since(totalStart).Milliseconds(),
			FetchMs:   fetchMs,
			PrepareMs: prepareMs,
		}
		c.JSON(http.StatusOK, resp)
	}
}

// respondError maps a ResolveError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	resolveErr, ok := err.(*models.ResolveError)
	if !ok || resolveErr == nil {
		msg := "resolution failed"
		if err != nil {
			msg = err.Error()
		}
		resolveErr = models.NewResolveError(models.ErrCodeInternal, msg, err)
	}

	c.JSON(mapErrorToStatus(resolveErr), models.ResolveResponse{
		Success: false,
		Error:   resolveErr.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ResolveError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeFetchFailed:
		return http.StatusBadGateway // 502
	case models.ErrCodeNoImageStatic, models.ErrCodeNoImageRendered:
		return http.StatusNotFound // 404
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNoRenderer, models.ErrCodeBrowserCrash:
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}
