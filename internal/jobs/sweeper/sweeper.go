package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

const DefaultInterval = 60 * time.Second

// Purger deletes one batch of dead incidents.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Sweeper runs Purger on a fixed delay: the next pass starts Interval after the previous one ends.
type Sweeper struct {
	log      *logger.Logger
	purger   Purger
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(baseLog *logger.Logger, purger Purger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		log:      baseLog.With("component", "IncidentSweeper"),
		purger:   purger,
		interval: interval,
	}
}

// Start is a no-op when the sweeper is already running.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.log.Info("Starting incident sweeper", "interval", s.interval)
	go s.runLoop(ctx, s.done)
}

// Stop cancels the loop and waits for an in-flight pass to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Sweeper) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Incident sweeper stopped")
			return
		case <-timer.C:
			s.sweepOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Incident sweep panic", "panic", r)
		}
	}()
	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.log.Warn("Incident sweep failed", "deleted", n, "error", err)
		return
	}
	if n > 0 {
		s.log.Debug("Incident sweep finished", "deleted", n)
	}
}
