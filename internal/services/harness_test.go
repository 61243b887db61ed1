package services_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/BabaYagaSystems/aroundly-backend/internal/clients/redis"
	"github.com/BabaYagaSystems/aroundly-backend/internal/data/aggregates"
	"github.com/BabaYagaSystems/aroundly-backend/internal/data/aggregates/testutil"
	"github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
	"github.com/BabaYagaSystems/aroundly-backend/internal/services"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type chanBus struct {
	events chan services.IncidentCreated
	err    error
}

func (b *chanBus) Publish(_ context.Context, eventType string, payload any) error {
	if eventType == services.EventIncidentCreated {
		b.events <- payload.(services.IncidentCreated)
	}
	return b.err
}

type fakeObjectStore struct {
	err   error
	calls int
}

func (s *fakeObjectStore) UploadAll(_ context.Context, files []incidents.MediaUpload) ([]incidents.MediaRef, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]incidents.MediaRef, 0, len(files))
	for _, f := range files {
		out = append(out, incidents.MediaRef{Key: "incidents/" + f.Filename, ContentType: f.ContentType, URL: "https://cdn.test/incidents/" + f.Filename})
	}
	return out, nil
}

type stubGeocoder struct{}

func (stubGeocoder) ReverseGeocode(context.Context, float64, float64) (string, error) {
	return " Strada Stefan cel Mare 1 ", nil
}

// flakyCounter fails the first failures calls of the matching action.
type flakyCounter struct {
	redis.ReactionCounter
	mu       sync.Mutex
	action   incidents.ReactionAction
	failures int
	calls    int
}

func (c *flakyCounter) Apply(ctx context.Context, id uuid.UUID, actor string, action incidents.ReactionAction) (redis.CounterResult, error) {
	c.mu.Lock()
	if action == c.action {
		c.calls++
		if c.failures > 0 {
			c.failures--
			c.mu.Unlock()
			return redis.CounterResult{}, errors.New("i/o timeout")
		}
	}
	c.mu.Unlock()
	return c.ReactionCounter.Apply(ctx, id, actor, action)
}

type harness struct {
	store     *testutil.MemStore
	mr        *miniredis.Miniredis
	counter   *flakyCounter
	clock     *clock
	bus       *chanBus
	media     *fakeObjectStore
	incidents services.IncidentService
	reactions services.ReactionService
}

func newHarness(t *testing.T, opts ...func(*services.IncidentServiceDeps)) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		store:   testutil.NewMemStore(),
		mr:      mr,
		counter: &flakyCounter{ReactionCounter: redis.NewReactionCounter(logger.Nop(), rdb)},
		clock:   &clock{now: t0},
		bus:     &chanBus{events: make(chan services.IncidentCreated, 16)},
		media:   &fakeObjectStore{},
	}
	agg := aggregates.NewIncidentAggregate(h.store.Deps(&testutil.InjectedTxRunner{}, &testutil.HooksRecorder{}, h.clock.Now))
	deps := services.IncidentServiceDeps{
		Log:         logger.Nop(),
		Aggregate:   agg,
		Incidents:   h.store.Incidents(),
		Locations:   services.NewLocationResolver(logger.Nop(), stubGeocoder{}),
		Media:       h.media,
		Broadcaster: h.bus,
		Counter:     h.counter,
		Now:         h.clock.Now,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.incidents = services.NewIncidentService(deps)
	h.reactions = services.NewReactionService(services.ReactionServiceDeps{
		Log:          logger.Nop(),
		Incidents:    h.store.Incidents(),
		Mirror:       h.store.Mirror(),
		Counter:      h.counter,
		ReadInterval: time.Millisecond,
		Now:          h.clock.Now,
	})
	return h
}

func (h *harness) create(t *testing.T) *incidents.Incident {
	t.Helper()
	inc, err := h.incidents.CreateIncident(context.Background(), services.CreateIncidentInput{
		ActorID: "reporter",
		Title:   "Fallen tree",
		Lat:     47.0245,
		Lon:     28.8322,
	})
	if err != nil {
		t.Fatalf("CreateIncident: %v", err)
	}
	return inc
}

func (h *harness) waitEvent(t *testing.T) services.IncidentCreated {
	t.Helper()
	select {
	case ev := <-h.bus.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for broadcast")
	}
	return services.IncidentCreated{}
}

func hasPrefixKeys(mr *miniredis.Miniredis, id uuid.UUID) bool {
	for _, k := range mr.Keys() {
		if strings.Contains(k, id.String()) {
			return true
		}
	}
	return false
}
