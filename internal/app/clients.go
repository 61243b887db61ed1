package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/BabaYagaSystems/aroundly-backend/internal/clients/redis"
	"github.com/BabaYagaSystems/aroundly-backend/internal/platform/gcp"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

type Clients struct {
	Redis   *goredis.Client
	Counter redis.ReactionCounter
	Bus     redis.Bus
	Media   *gcp.MediaStore
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis
	rdb, err := redis.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}
	out := Clients{
		Redis:   rdb,
		Counter: redis.NewReactionCounter(log, rdb),
		Bus:     redis.NewBus(log, rdb, cfg.RedisChannel),
	}

	// Gcs; incidents without media still work when no bucket is configured.
	mediaCfg, err := gcp.MediaStoreConfigFromEnv()
	switch {
	case errors.Is(err, gcp.ErrMissingBucket) && strings.TrimSpace(mediaCfg.EmulatorHost) == "":
		log.Warn("media store disabled; uploads will be rejected", "reason", err)
	case err != nil:
		out.Close()
		return Clients{}, fmt.Errorf("media store config: %w", err)
	default:
		store, err := gcp.NewMediaStore(ctx, log, mediaCfg)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init media store: %w", err)
		}
		out.Media = store
	}

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Media != nil {
		_ = c.Media.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
