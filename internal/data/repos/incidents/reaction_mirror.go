package incidents

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/dbctx"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

// ReactionMirrorRepo is the durable per-actor copy of the cached reaction sets.
type ReactionMirrorRepo interface {
	// Record stores the actor's reaction as of seq. A row already at seq or later wins,
	// so writes landing out of order keep the newest state. An empty reaction is kept
	// as a row without a type.
	Record(dbc dbctx.Context, incidentID uuid.UUID, actorID, reaction string, seq int64, at time.Time) error
	ListByIncident(dbc dbctx.Context, incidentID uuid.UUID) ([]*types.ReactionMembership, error)
	DeleteByIncidentIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error)
}

type reactionMirrorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReactionMirrorRepo(db *gorm.DB, baseLog *logger.Logger) ReactionMirrorRepo {
	return &reactionMirrorRepo{db: db, log: baseLog.With("repo", "ReactionMirrorRepo")}
}

func (r *reactionMirrorRepo) Record(dbc dbctx.Context, incidentID uuid.UUID, actorID, reaction string, seq int64, at time.Time) error {
	if incidentID == uuid.Nil || actorID == "" {
		return nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	row := &types.ReactionMembership{
		ID:         uuid.New(),
		IncidentID: incidentID,
		ActorID:    actorID,
		Type:       reaction,
		Seq:        seq,
		ReactedAt:  at.UTC(),
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "incident_id"}, {Name: "actor_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "seq", "reacted_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: row.TableName() + ".seq < excluded.seq"},
			}},
		}).
		Create(row).Error
}

func (r *reactionMirrorRepo) ListByIncident(dbc dbctx.Context, incidentID uuid.UUID) ([]*types.ReactionMembership, error) {
	var out []*types.ReactionMembership
	if incidentID == uuid.Nil {
		return out, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if err := t.WithContext(dbc.Ctx).Where("incident_id = ?", incidentID).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reactionMirrorRepo) DeleteByIncidentIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).Where("incident_id IN ?", ids).Delete(&types.ReactionMembership{})
	return res.RowsAffected, res.Error
}
