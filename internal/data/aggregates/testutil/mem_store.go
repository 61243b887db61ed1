package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BabaYagaSystems/aroundly-backend/internal/data/aggregates"
	"github.com/BabaYagaSystems/aroundly-backend/internal/data/repos"
	"github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/dbctx"
)

// MemStore backs every repo the incident aggregate needs with maps guarded by one mutex.
type MemStore struct {
	mu        sync.Mutex
	incidents map[uuid.UUID]incidents.Incident
	ledger    map[string]incidents.EngagementRecord
	reactions map[string]incidents.ReactionMembership
	locations map[uuid.UUID]incidents.Location

	staleReads int
	casCalls   int
}

func NewMemStore() *MemStore {
	return &MemStore{
		incidents: map[uuid.UUID]incidents.Incident{},
		ledger:    map[string]incidents.EngagementRecord{},
		reactions: map[string]incidents.ReactionMembership{},
		locations: map[uuid.UUID]incidents.Location{},
	}
}

// SetStaleReads makes the next n version-checked updates fail as if another writer committed first.
func (s *MemStore) SetStaleReads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staleReads = n
}

func (s *MemStore) CASCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.casCalls
}

func (s *MemStore) LedgerLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger)
}

func (s *MemStore) LocationLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locations)
}

// Reactions returns the mirrored memberships of an incident that still hold a reaction.
func (s *MemStore) Reactions(incidentID uuid.UUID) []*incidents.ReactionMembership {
	rows, _ := MemReactions{s}.ListByIncident(dbctx.Context{}, incidentID)
	out := rows[:0]
	for _, row := range rows {
		if row.Type != "" {
			out = append(out, row)
		}
	}
	return out
}

// Incidents, Ledger, Mirror and Locations expose the store as repos.
func (s *MemStore) Incidents() repos.IncidentRepo { return MemIncidents{s} }
func (s *MemStore) Ledger() repos.EngagementRepo { return MemLedger{s} }
func (s *MemStore) Mirror() repos.ReactionMirrorRepo { return MemReactions{s} }
func (s *MemStore) Locations() repos.LocationRepo { return MemLocations{s} }

func key(id uuid.UUID, actor string) string { return id.String() + "/" + actor }

func (s *MemStore) Put(inc *incidents.Incident) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents[inc.ID] = *inc
}

func (s *MemStore) Get(id uuid.UUID) (incidents.Incident, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[id]
	return inc, ok
}

// Deps wires the store into incident aggregate dependencies.
func (s *MemStore) Deps(runner aggregates.TxRunner, hooks aggregates.Hooks, now func() time.Time) aggregates.IncidentAggregateDeps {
	return aggregates.IncidentAggregateDeps{
		Base: aggregates.BaseDeps{
			Runner:   runner,
			Hooks:    hooks,
			CASGuard: MemGuard{s},
		},
		Incidents:   MemIncidents{s},
		Engagements: MemLedger{s},
		Reactions:   MemReactions{s},
		Locations:   MemLocations{s},
		Retry:       aggregates.RetryPolicy{MaxAttempts: 50, InitialInterval: time.Microsecond, MaxInterval: time.Microsecond},
		Now:         now,
	}
}

type MemGuard struct{ s *MemStore }

func (g MemGuard) UpdateByVersion(_ dbctx.Context, _ string, id uuid.UUID, expectedVersion int, updates map[string]any) (bool, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	g.s.casCalls++
	if g.s.staleReads > 0 {
		g.s.staleReads--
		return false, nil
	}
	inc, ok := g.s.incidents[id]
	if !ok || inc.Version != expectedVersion {
		return false, nil
	}
	inc.Confirms = updates["confirms"].(uint)
	inc.Denies = updates["denies"].(uint)
	inc.ConsecutiveDenies = updates["consecutive_denies"].(uint)
	inc.ExpiresAt = updates["expires_at"].(time.Time)
	inc.Version = expectedVersion + 1
	g.s.incidents[id] = inc
	return true, nil
}

type MemIncidents struct{ s *MemStore }

var _ repos.IncidentRepo = MemIncidents{}

func (r MemIncidents) Create(_ dbctx.Context, rows []*incidents.Incident) ([]*incidents.Incident, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range rows {
		r.s.incidents[row.ID] = *row
	}
	return rows, nil
}

func (r MemIncidents) GetByID(_ dbctx.Context, id uuid.UUID) (*incidents.Incident, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inc, ok := r.s.incidents[id]
	if !ok {
		return nil, nil
	}
	return &inc, nil
}

func (r MemIncidents) Exists(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	inc, err := r.GetByID(dbc, id)
	return inc != nil, err
}

func (r MemIncidents) DeleteByVersion(_ dbctx.Context, id uuid.UUID, version int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inc, ok := r.s.incidents[id]
	if !ok || inc.Version != version {
		return false, nil
	}
	delete(r.s.incidents, id)
	return true, nil
}

func (r MemIncidents) ListDeletable(_ dbctx.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []uuid.UUID
	for id, inc := range r.s.incidents {
		if inc.ShouldDelete(now) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r MemIncidents) FindInRange(_ dbctx.Context, _ repos.RangeQuery) ([]repos.RangeHit, error) {
	return nil, nil
}

type MemLedger struct{ s *MemStore }

func (l MemLedger) Find(_ dbctx.Context, incidentID uuid.UUID, actorID string) (*incidents.EngagementRecord, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	rec, ok := l.s.ledger[key(incidentID, actorID)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (l MemLedger) Upsert(_ dbctx.Context, rec *incidents.EngagementRecord) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.s.ledger[key(rec.IncidentID, rec.ActorID)] = *rec
	return nil
}

func (l MemLedger) DeleteByIncidentIDs(_ dbctx.Context, ids []uuid.UUID) (int64, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	var n int64
	for k, rec := range l.s.ledger {
		for _, id := range ids {
			if rec.IncidentID == id {
				delete(l.s.ledger, k)
				n++
			}
		}
	}
	return n, nil
}

type MemReactions struct{ s *MemStore }

func (r MemReactions) Record(_ dbctx.Context, incidentID uuid.UUID, actorID, reaction string, seq int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := key(incidentID, actorID)
	if row, ok := r.s.reactions[k]; ok && row.Seq >= seq {
		return nil
	}
	r.s.reactions[k] = incidents.ReactionMembership{IncidentID: incidentID, ActorID: actorID, Type: reaction, Seq: seq, ReactedAt: at}
	return nil
}

func (r MemReactions) ListByIncident(_ dbctx.Context, incidentID uuid.UUID) ([]*incidents.ReactionMembership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*incidents.ReactionMembership
	for _, row := range r.s.reactions {
		if row.IncidentID == incidentID {
			row := row
			out = append(out, &row)
		}
	}
	return out, nil
}

func (r MemReactions) DeleteByIncidentIDs(_ dbctx.Context, ids []uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, row := range r.s.reactions {
		for _, id := range ids {
			if row.IncidentID == id {
				delete(r.s.reactions, k)
				n++
			}
		}
	}
	return n, nil
}

type MemLocations struct{ s *MemStore }

func (l MemLocations) Create(_ dbctx.Context, row *incidents.Location) (*incidents.Location, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	l.s.locations[row.ID] = *row
	return row, nil
}

func (l MemLocations) GetByID(_ dbctx.Context, id uuid.UUID) (*incidents.Location, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	row, ok := l.s.locations[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (l MemLocations) DeleteByIDs(_ dbctx.Context, ids []uuid.UUID) (int64, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := l.s.locations[id]; ok {
			delete(l.s.locations, id)
			n++
		}
	}
	return n, nil
}
