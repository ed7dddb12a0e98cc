package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hiraku00/scraping-img/models"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports whether the rendered-browser path is still usable; status degrades
// when the session has crashed and only the lightweight path remains.
func Health(rendererAlive func() bool, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		alive := rendererAlive()

		status := "healthy"
		if !alive {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:        status,
			RendererAlive: alive,
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
		})
	}
}
