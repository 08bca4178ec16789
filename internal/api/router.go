// Package api serves the scored protocol and pool rankings over HTTP.
package api

import (
	"context"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/curator/internal/curator"
	"github.com/rewired-gh/curator/internal/datasource"
	"github.com/rewired-gh/curator/internal/metrics"
)

// DatasetSource resolves the raw datasets for one request.
type DatasetSource interface {
	Datasets(ctx context.Context) (datasource.Datasets, error)
}

// Config holds the HTTP layer settings.
type Config struct {
	CORSOrigins []string
}

// Handler holds the dependencies shared by all routes.
type Handler struct {
	source       DatasetSource
	engine       *curator.Engine
	metrics      *metrics.Metrics
	defaultLimit int
	startedAt    time.Time

	mu         sync.RWMutex
	lastOrigin datasource.Origin
	lastFetch  time.Time
}

// NewHandler creates a Handler. m may be nil to disable instrumentation.
func NewHandler(source DatasetSource, engine *curator.Engine, m *metrics.Metrics, defaultLimit int) *Handler {
	if engine == nil {
		engine = curator.New()
	}
	return &Handler{
		source:       source,
		engine:       engine,
		metrics:      m,
		defaultLimit: defaultLimit,
		startedAt:    time.Now(),
	}
}

// SetupRouter builds the gin engine with middleware and all routes.
func SetupRouter(h *Handler, cfg Config) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 || containsWildcard(cfg.CORSOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", RequestIDHeader}
	corsConfig.ExposeHeaders = []string{RequestIDHeader}
	router.Use(cors.New(corsConfig))

	router.Use(RequestID())
	router.Use(AccessLog(h.metrics))
	router.Use(gin.Recovery())

	router.GET("/health", h.Health)
	router.GET("/markets", h.Markets)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/protocols", h.Protocols)
		v1.GET("/pools", h.Pools)
	}

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	return router
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
