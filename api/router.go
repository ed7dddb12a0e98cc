// Package api exposes the resolution pipeline over HTTP.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hiraku00/scraping-img/api/handler"
	"github.com/hiraku00/scraping-img/api/middleware"
	"github.com/hiraku00/scraping-img/batch"
	"github.com/hiraku00/scraping-img/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(locator batch.Locator, preparer batch.ImagePreparer, rendererAlive func() bool, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(rendererAlive, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Resolve
	protected.POST("/resolve", handler.Resolve(locator, preparer))

	return r
}
