package incidents

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/dbctx"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

// EngagementRepo is the per-actor engagement ledger.
type EngagementRepo interface {
	Find(dbc dbctx.Context, incidentID uuid.UUID, actorID string) (*types.EngagementRecord, error)
	Upsert(dbc dbctx.Context, rec *types.EngagementRecord) error
	DeleteByIncidentIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error)
}

type engagementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEngagementRepo(db *gorm.DB, baseLog *logger.Logger) EngagementRepo {
	return &engagementRepo{db: db, log: baseLog.With("repo", "EngagementRepo")}
}

func (r *engagementRepo) Find(dbc dbctx.Context, incidentID uuid.UUID, actorID string) (*types.EngagementRecord, error) {
	if incidentID == uuid.Nil || actorID == "" {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.EngagementRecord
	err := t.WithContext(dbc.Ctx).
		Where("incident_id = ? AND actor_id = ?", incidentID, actorID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *engagementRepo) Upsert(dbc dbctx.Context, rec *types.EngagementRecord) error {
	if rec == nil {
		return nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "incident_id"}, {Name: "actor_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "engaged_at"}),
		}).
		Create(rec).Error
}

func (r *engagementRepo) DeleteByIncidentIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).Where("incident_id IN ?", ids).Delete(&types.EngagementRecord{})
	return res.RowsAffected, res.Error
}
