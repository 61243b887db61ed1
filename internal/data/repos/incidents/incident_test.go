package incidents

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/BabaYagaSystems/aroundly-backend/internal/data/repos/testutil"
	types "github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/dbctx"
)

func TestIncidentRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewIncidentRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	now := time.Now().UTC().Truncate(time.Second)
	inc := testutil.SeedIncident(t, ctx, tx, -33.5, 151.1, now)

	got, err := repo.GetByID(dbc, inc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.Title != "seeded" || !got.ExpiresAt.Equal(now.Add(types.TTL)) {
		t.Fatalf("GetByID: unexpected row %+v", got)
	}
	missing, err := repo.GetByID(dbc, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("GetByID missing: want=nil,nil got=%v,%v", missing, err)
	}
	ok, err := repo.Exists(dbc, inc.ID)
	if err != nil || !ok {
		t.Fatalf("Exists: want=true got=%v err=%v", ok, err)
	}

	deleted, err := repo.DeleteByVersion(dbc, inc.ID, inc.Version+1)
	if err != nil {
		t.Fatalf("DeleteByVersion stale: %v", err)
	}
	if deleted {
		t.Fatalf("DeleteByVersion stale: want=false")
	}
	deleted, err = repo.DeleteByVersion(dbc, inc.ID, inc.Version)
	if err != nil || !deleted {
		t.Fatalf("DeleteByVersion: want=true got=%v err=%v", deleted, err)
	}
	ok, _ = repo.Exists(dbc, inc.ID)
	if ok {
		t.Fatalf("Exists after delete: want=false")
	}
}

func TestIncidentRepoListDeletable(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewIncidentRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	now := time.Now().UTC()
	live := testutil.SeedIncident(t, ctx, tx, 10, 10, now)
	expired := testutil.SeedIncident(t, ctx, tx, 10, 10, now.Add(-time.Hour))
	denied := testutil.SeedIncident(t, ctx, tx, 10, 10, now)
	if err := tx.Model(denied).Updates(map[string]any{"denies": 3, "consecutive_denies": 3}).Error; err != nil {
		t.Fatalf("update denied: %v", err)
	}

	ids, err := repo.ListDeletable(dbc, now, 0)
	if err != nil {
		t.Fatalf("ListDeletable: %v", err)
	}
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[expired.ID] || !seen[denied.ID] {
		t.Fatalf("ListDeletable: missing expected ids %v", ids)
	}
	if seen[live.ID] {
		t.Fatalf("ListDeletable: live incident listed")
	}
}

func TestIncidentRepoFindInRange(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewIncidentRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	now := time.Now().UTC()
	lat, lon := 63.4305, 10.3951
	far := testutil.SeedIncident(t, ctx, tx, lat+0.009, lon, now)  // ~1 km
	near := testutil.SeedIncident(t, ctx, tx, lat+0.0018, lon, now) // ~200 m
	out := testutil.SeedIncident(t, ctx, tx, lat+0.05, lon, now)    // ~5.5 km
	gone := testutil.SeedIncident(t, ctx, tx, lat, lon, now.Add(-time.Hour))

	hits, err := repo.FindInRange(dbc, RangeQuery{Lat: lat, Lon: lon, RadiusMeters: 2000, Now: now})
	if err != nil {
		t.Fatalf("FindInRange: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("FindInRange: want=2 got=%d", len(hits))
	}
	if hits[0].Incident.ID != near.ID || hits[1].Incident.ID != far.ID {
		t.Fatalf("FindInRange: want order near,far got=%s,%s", hits[0].Incident.ID, hits[1].Incident.ID)
	}
	if hits[0].DistanceMeters > hits[1].DistanceMeters {
		t.Fatalf("FindInRange: distances not ascending")
	}
	for _, h := range hits {
		if h.Incident.ID == out.ID || h.Incident.ID == gone.ID {
			t.Fatalf("FindInRange: unexpected incident %s", h.Incident.ID)
		}
	}
}
