package incidents

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/dbctx"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

// RangeQuery selects live incidents around a point.
type RangeQuery struct {
	Lat          float64
	Lon          float64
	RadiusMeters float64
	Now          time.Time
	Limit        int
}

// RangeHit is an incident together with its distance from the query center.
type RangeHit struct {
	Incident       *types.Incident
	DistanceMeters float64
}

type IncidentRepo interface {
	Create(dbc dbctx.Context, rows []*types.Incident) ([]*types.Incident, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Incident, error)
	Exists(dbc dbctx.Context, id uuid.UUID) (bool, error)

	// DeleteByVersion removes the row only if it was not modified since it was read.
	DeleteByVersion(dbc dbctx.Context, id uuid.UUID, version int) (bool, error)

	// ListDeletable returns ids matching the deletion predicate at now.
	ListDeletable(dbc dbctx.Context, now time.Time, limit int) ([]uuid.UUID, error)

	FindInRange(dbc dbctx.Context, q RangeQuery) ([]RangeHit, error)
}

type incidentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIncidentRepo(db *gorm.DB, baseLog *logger.Logger) IncidentRepo {
	return &incidentRepo{db: db, log: baseLog.With("repo", "IncidentRepo")}
}

func (r *incidentRepo) Create(dbc dbctx.Context, rows []*types.Incident) ([]*types.Incident, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Incident{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *incidentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Incident, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.Incident
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *incidentRepo) Exists(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(dbc.Ctx).Model(&types.Incident{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *incidentRepo) DeleteByVersion(dbc dbctx.Context, id uuid.UUID, version int) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).
		Where("id = ? AND version = ?", id, version).
		Delete(&types.Incident{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *incidentRepo) ListDeletable(dbc dbctx.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var ids []uuid.UUID
	q := t.WithContext(dbc.Ctx).
		Model(&types.Incident{}).
		Where("consecutive_denies >= ? OR expires_at < ?", types.DenyStreakLimit, now.UTC()).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Great-circle distance in meters between (?, ?) and the row's lat/lng.
const distanceSQL = `2 * ? * asin(least(1, sqrt(
	power(sin(radians(lat - ?) / 2), 2) +
	cos(radians(?)) * cos(radians(lat)) * power(sin(radians(lng - ?) / 2), 2)
)))`

type rangeRow struct {
	types.Incident
	DistanceM float64 `gorm:"column:distance_m"`
}

func (r *incidentRepo) FindInRange(dbc dbctx.Context, q RangeQuery) ([]RangeHit, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	limit := q.Limit
	if limit <= 0 || limit > types.MaxRangeResults {
		limit = types.MaxRangeResults
	}
	now := q.Now.UTC()
	box := types.BoundingBox(q.Lat, q.Lon, q.RadiusMeters)

	prefilter := t.WithContext(dbc.Ctx).
		Model(&types.Incident{}).
		Where("lat BETWEEN ? AND ?", box.MinLat, box.MaxLat).
		Where("lng BETWEEN ? AND ?", box.MinLng, box.MaxLng).
		Where("expires_at >= ? AND consecutive_denies < ?", now, types.DenyStreakLimit)

	if t.Dialector.Name() == "postgres" {
		inner := prefilter.Select("incidents.*, "+distanceSQL+" AS distance_m",
			types.EarthRadiusMeters, q.Lat, q.Lat, q.Lon)
		var rows []rangeRow
		err := t.WithContext(dbc.Ctx).
			Table("(?) AS ranked", inner).
			Where("distance_m <= ?", q.RadiusMeters).
			Order("distance_m ASC").
			Limit(limit).
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		out := make([]RangeHit, 0, len(rows))
		for i := range rows {
			inc := rows[i].Incident
			out = append(out, RangeHit{Incident: &inc, DistanceMeters: rows[i].DistanceM})
		}
		return out, nil
	}

	// Dialects without trig functions: prefilter in SQL, rank in Go.
	var candidates []*types.Incident
	if err := prefilter.Find(&candidates).Error; err != nil {
		return nil, err
	}
	out := make([]RangeHit, 0, len(candidates))
	for _, inc := range candidates {
		d := types.HaversineMeters(q.Lat, q.Lon, inc.Lat, inc.Lng)
		if d <= q.RadiusMeters && !math.IsNaN(d) {
			out = append(out, RangeHit{Incident: inc, DistanceMeters: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceMeters < out[j].DistanceMeters })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
