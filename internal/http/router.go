package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/BabaYagaSystems/aroundly-backend/internal/http/handlers"
	httpMW "github.com/BabaYagaSystems/aroundly-backend/internal/http/middleware"
	"github.com/BabaYagaSystems/aroundly-backend/internal/observability"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	TracingEnabled bool
	CORSOrigins    []string

	AuthMiddleware  *httpMW.AuthMiddleware
	IncidentHandler *httpH.IncidentHandler
	ReactionHandler *httpH.ReactionHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.Tracing("aroundly", cfg.TracingEnabled))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api/v1")

	public := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			public.Use(cfg.AuthMiddleware.OptionalAuth())
		}
		if cfg.IncidentHandler != nil {
			public.GET("/feed", cfg.IncidentHandler.Feed)
			public.GET("/incidents/:id", cfg.IncidentHandler.GetIncident)
		}
		if cfg.ReactionHandler != nil {
			public.GET("/incidents/:id/reactions", cfg.ReactionHandler.Summary())
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Incidents
		if cfg.IncidentHandler != nil {
			protected.POST("/incidents", cfg.IncidentHandler.CreateIncident)
			protected.POST("/incidents/:id/confirm", cfg.IncidentHandler.ConfirmIncident)
			protected.POST("/incidents/:id/deny", cfg.IncidentHandler.DenyIncident)
			protected.DELETE("/incidents/:id", cfg.IncidentHandler.DeleteIfExpired)
		}

		// Reactions
		if cfg.ReactionHandler != nil {
			protected.POST("/incidents/:id/reactions/like", cfg.ReactionHandler.Like())
			protected.DELETE("/incidents/:id/reactions/like", cfg.ReactionHandler.Unlike())
			protected.POST("/incidents/:id/reactions/dislike", cfg.ReactionHandler.Dislike())
			protected.DELETE("/incidents/:id/reactions/dislike", cfg.ReactionHandler.Undislike())
			protected.DELETE("/incidents/:id/reactions", cfg.ReactionHandler.Clear())
		}
	}

	return r
}
