package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/iframer/api/handler"
	"github.com/use-agent/iframer/api/middleware"
	"github.com/use-agent/iframer/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → AccessLog
//	Work:    RateLimit (if enabled)
//
// Health sits outside the limiter so probes always get through. done stops
// the limiter's background sweeper.
func NewRouter(ex handler.Extractor, cfg *config.Config, startTime time.Time, done <-chan struct{}) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog())

	api := r.Group("/api")
	api.GET("/health", handler.Health(startTime))

	work := api.Group("")
	if cfg.RateLimit.Enabled {
		work.Use(middleware.RateLimit(cfg.RateLimit, done))
	}
	work.GET("/extract", handler.Extract(ex, cfg.Server.DefaultLimit))
	work.GET("/generate", handler.Generate())

	return r
}
