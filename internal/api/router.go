// Package api exposes the dashboard sessions and closure workflows over HTTP.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"solana-rent-reclaim/internal/closure"
	"solana-rent-reclaim/internal/dashboard"
	"solana-rent-reclaim/internal/metadata"
	"solana-rent-reclaim/internal/observability"
	"solana-rent-reclaim/internal/storage"
)

// Options contains the services served by the Router.
type Options struct {
	Sessions *dashboard.Manager
	Closures *closure.Service
	Registry *metadata.Registry

	// Receipts backs the closure history endpoint; nil disables it.
	Receipts storage.ClosureReceiptStore

	// ViewDefaults applies when a tokens request leaves a parameter out.
	ViewDefaults dashboard.ViewOptions

	Logger *zap.Logger
}

// Router handles HTTP routing setup.
type Router struct {
	sessions *dashboard.Manager
	closures *closure.Service
	registry *metadata.Registry
	receipts storage.ClosureReceiptStore
	defaults dashboard.ViewOptions
	logger   *zap.Logger
}

// NewRouter creates a Router over opts.
func NewRouter(opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := opts.ViewDefaults
	if defaults.SortKey == "" {
		defaults.SortKey = dashboard.SortByTotal
	}
	if defaults.Order == "" {
		defaults.Order = dashboard.Descending
	}
	if defaults.ZeroValuePolicy == "" {
		defaults.ZeroValuePolicy = dashboard.UnresolvedIsUnknown
	}

	return &Router{
		sessions: opts.Sessions,
		closures: opts.Closures,
		registry: opts.Registry,
		receipts: opts.Receipts,
		defaults: defaults,
		logger:   logger,
	}
}

// Engine returns a gin engine with middleware and every route installed.
func (r *Router) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(RequestLogger(r.logger), Recovery(r.logger))
	r.SetupHealthRoutes(engine)
	r.SetupRoutes(engine)
	return engine
}

// SetupRoutes configures all API routes.
func (r *Router) SetupRoutes(engine *gin.Engine) {
	api := engine.Group("/api")
	{
		api.GET("/token-metadata", r.getTokenMetadata)
		if r.receipts != nil {
			api.GET("/owners/:owner/closures", r.listClosures)
		}
	}

	sessions := api.Group("/sessions")
	{
		sessions.POST("", r.openSession)
		sessions.PUT("/:id/owner", r.changeOwner)
		sessions.DELETE("/:id", r.closeSession)
		sessions.GET("/:id/tokens", r.getTokens)

		sessions.POST("/:id/selection/:account", r.toggleSelection)
		sessions.PUT("/:id/selection/:account", r.selectAccount)
		sessions.DELETE("/:id/selection/:account", r.deselectAccount)

		sessions.POST("/:id/closure", r.startClosure)
		sessions.GET("/:id/closure", r.getClosure)
		sessions.POST("/:id/closure/signature", r.provideSignature)
		sessions.POST("/:id/closure/reject", r.rejectSignature)
		sessions.POST("/:id/closure/dismiss", r.dismissClosure)
	}
}

// SetupHealthRoutes configures health and metrics routes.
func (r *Router) SetupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"sessions": r.sessions.Len(),
		})
	})
	engine.GET("/metrics", gin.WrapH(observability.Handler()))
}
