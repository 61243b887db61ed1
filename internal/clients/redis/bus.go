package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

// Event is the envelope broadcast to subscribers of the incident channel.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Bus interface {
	Publish(ctx context.Context, eventType string, payload any) error
	Subscribe(ctx context.Context, onEvent func(Event)) error
}

type bus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewBus(log *logger.Logger, rdb *goredis.Client, channel string) Bus {
	if channel == "" {
		channel = "incidents"
	}
	return &bus{
		log:     log.With("service", "RedisBus"),
		rdb:     rdb,
		channel: channel,
	}
}

func (b *bus) Publish(ctx context.Context, eventType string, payload any) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis bus not initialized")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Subscribe forwards events until ctx is done.
func (b *bus) Subscribe(ctx context.Context, onEvent func(Event)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad redis bus payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()
	return nil
}
