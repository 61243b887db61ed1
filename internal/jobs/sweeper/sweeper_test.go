package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
	panic bool
}

func (p *countingPurger) PurgeExpired(context.Context) (int, error) {
	p.calls.Add(1)
	if p.panic {
		panic("boom")
	}
	return 1, p.err
}

func waitCalls(t *testing.T, p *countingPurger, n int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for p.calls.Load() < n {
		if time.Now().After(deadline) {
			t.Fatalf("purge calls: want>=%d got=%d", n, p.calls.Load())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSweeperRunsUntilStopped(t *testing.T) {
	p := &countingPurger{}
	s := New(logger.Nop(), p, 5*time.Millisecond)
	s.Start(context.Background())
	s.Start(context.Background())
	waitCalls(t, p, 3)
	s.Stop()

	after := p.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if p.calls.Load() != after {
		t.Fatalf("sweeper kept running after Stop")
	}
	s.Stop()
}

func TestSweeperSurvivesErrorsAndPanics(t *testing.T) {
	p := &countingPurger{err: errors.New("db down")}
	s := New(logger.Nop(), p, 2*time.Millisecond)
	s.Start(context.Background())
	waitCalls(t, p, 2)
	s.Stop()

	pp := &countingPurger{panic: true}
	s = New(logger.Nop(), pp, 2*time.Millisecond)
	s.Start(context.Background())
	waitCalls(t, pp, 2)
	s.Stop()
}

func TestSweeperStopsWithParentContext(t *testing.T) {
	p := &countingPurger{}
	s := New(logger.Nop(), p, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()
	done := make(chan struct{})
	go func() { s.Stop(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Stop blocked after parent cancellation")
	}
	if p.calls.Load() != 0 {
		t.Fatalf("no sweep expected before the first interval")
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	if s := New(logger.Nop(), &countingPurger{}, 0); s.interval != DefaultInterval {
		t.Fatalf("interval: want=%v got=%v", DefaultInterval, s.interval)
	}
}
