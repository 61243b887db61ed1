package app

import (
	"strings"
	"time"

	"github.com/BabaYagaSystems/aroundly-backend/internal/jobs/sweeper"
	"github.com/BabaYagaSystems/aroundly-backend/internal/observability"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/envutil"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

type Config struct {
	Port            string
	JWTSecretKey    string
	RedisChannel    string
	CORSOrigins     []string
	SweepInterval   time.Duration
	PurgeBatch      int
	MaxAttempts     int
	ShutdownTimeout time.Duration
	Otel            observability.OtelConfig
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:            envutil.String("PORT", "8080", log),
		JWTSecretKey:    envutil.String("JWT_SECRET_KEY", "defaultsecret", log),
		RedisChannel:    envutil.String("REDIS_CHANNEL", "incidents", log),
		CORSOrigins:     splitList(envutil.String("CORS_ALLOWED_ORIGINS", "", log)),
		SweepInterval:   envutil.Duration("INCIDENT_SWEEP_INTERVAL", sweeper.DefaultInterval, log),
		PurgeBatch:      envutil.Int("INCIDENT_PURGE_BATCH", 200, log),
		MaxAttempts:     envutil.Int("ENGAGEMENT_MAX_ATTEMPTS", 4, log),
		ShutdownTimeout: envutil.Duration("SHUTDOWN_TIMEOUT", 15*time.Second, log),
		Otel:            observability.OtelConfigFromEnv(log),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
