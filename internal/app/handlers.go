package app

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	httpH "github.com/BabaYagaSystems/aroundly-backend/internal/http/handlers"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Incident *httpH.IncidentHandler
	Reaction *httpH.ReactionHandler
}

func wireHandlers(log *logger.Logger, services Services, db *gorm.DB, rdb *goredis.Client) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(map[string]httpH.Check{
			"postgres": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		}),
		Incident: httpH.NewIncidentHandler(services.Incident),
		Reaction: httpH.NewReactionHandler(services.Reaction),
	}
}
