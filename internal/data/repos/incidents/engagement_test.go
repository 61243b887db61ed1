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

func TestEngagementRepoUpsertNeverDuplicates(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewEngagementRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	now := time.Now().UTC()
	inc := testutil.SeedIncident(t, ctx, tx, 1, 1, now)

	if err := repo.Upsert(dbc, types.NewEngagementRecord(inc.ID, "actor-1", types.EngagementConfirm, now)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.Upsert(dbc, types.NewEngagementRecord(inc.ID, "actor-1", types.EngagementDeny, now)); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	rec, err := repo.Find(dbc, inc.ID, "actor-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if rec == nil || rec.Type != types.EngagementDeny {
		t.Fatalf("Find: want deny record got=%+v", rec)
	}
	var rows int64
	if err := tx.Model(&types.EngagementRecord{}).Where("incident_id = ?", inc.ID).Count(&rows).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Fatalf("ledger rows: want=1 got=%d", rows)
	}

	none, err := repo.Find(dbc, inc.ID, "actor-2")
	if err != nil || none != nil {
		t.Fatalf("Find missing: want=nil,nil got=%v,%v", none, err)
	}
	n, err := repo.DeleteByIncidentIDs(dbc, []uuid.UUID{inc.ID})
	if err != nil || n != 1 {
		t.Fatalf("DeleteByIncidentIDs: want=1 got=%d err=%v", n, err)
	}
}

func TestReactionMirrorRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewReactionMirrorRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	now := time.Now().UTC()
	inc := testutil.SeedIncident(t, ctx, tx, 2, 2, now)

	if err := repo.Record(dbc, inc.ID, "a", types.MembershipLike, 1, now); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := repo.Record(dbc, inc.ID, "a", types.MembershipDislike, 3, now); err != nil {
		t.Fatalf("Record newer: %v", err)
	}
	// Lands after seq 3 was stored; must not win.
	if err := repo.Record(dbc, inc.ID, "a", types.MembershipLike, 2, now); err != nil {
		t.Fatalf("Record late: %v", err)
	}
	if err := repo.Record(dbc, inc.ID, "b", types.MembershipLike, 4, now); err != nil {
		t.Fatalf("Record b: %v", err)
	}
	if err := repo.Record(dbc, inc.ID, "b", "", 5, now); err != nil {
		t.Fatalf("Record b cleared: %v", err)
	}

	rows, err := repo.ListByIncident(dbc, inc.ID)
	if err != nil {
		t.Fatalf("ListByIncident: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ListByIncident: want=2 got=%d", len(rows))
	}
	for _, row := range rows {
		switch row.ActorID {
		case "a":
			if row.Type != types.MembershipDislike || row.Seq != 3 {
				t.Fatalf("actor a: want dislike@3 got=%s@%d", row.Type, row.Seq)
			}
		case "b":
			if row.Type != "" || row.Seq != 5 {
				t.Fatalf("actor b: want cleared@5 got=%q@%d", row.Type, row.Seq)
			}
		}
	}
}
