package app

import (
	"github.com/BabaYagaSystems/aroundly-backend/internal/http"
	httpMW "github.com/BabaYagaSystems/aroundly-backend/internal/http/middleware"
	"github.com/BabaYagaSystems/aroundly-backend/internal/observability"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware, metrics *observability.Metrics) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		TracingEnabled:  cfg.Otel.Enabled,
		CORSOrigins:     cfg.CORSOrigins,
		AuthMiddleware:  middleware.Auth,
		IncidentHandler: handlers.Incident,
		ReactionHandler: handlers.Reaction,
		HealthHandler:   handlers.Health,
	})
}
