package aggregates

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BabaYagaSystems/aroundly-backend/internal/data/repos"
	domainagg "github.com/BabaYagaSystems/aroundly-backend/internal/domain/aggregates"
	"github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/dbctx"
)

const (
	opIncidentCreate          = "incident.create"
	opIncidentEngage          = "incident.engage"
	opIncidentDeleteIfExpired = "incident.delete_if_expired"
	opIncidentPurgeExpired    = "incident.purge_expired"

	DefaultPurgeBatch = 200
)

type IncidentAggregateDeps struct {
	Base        BaseDeps
	Incidents   repos.IncidentRepo
	Engagements repos.EngagementRepo
	Reactions   repos.ReactionMirrorRepo
	Locations   repos.LocationRepo
	Retry       RetryPolicy
	Now         func() time.Time
}

type incidentAggregate struct {
	deps IncidentAggregateDeps
}

func NewIncidentAggregate(deps IncidentAggregateDeps) domainagg.IncidentAggregate {
	deps.Base = deps.Base.withDefaults()
	deps.Retry = deps.Retry.withDefaults()
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &incidentAggregate{deps: deps}
}

func (a *incidentAggregate) Contract() domainagg.Contract {
	return domainagg.IncidentAggregateContract
}

func (a *incidentAggregate) at(t time.Time) time.Time {
	if t.IsZero() {
		return a.deps.Now()
	}
	return t.UTC()
}

func (a *incidentAggregate) Create(ctx context.Context, in domainagg.CreateIncidentInput) (domainagg.CreateIncidentResult, error) {
	out := domainagg.CreateIncidentResult{}
	inc := in.Incident
	if inc == nil {
		return out, domainagg.NewError(domainagg.CodeValidation, opIncidentCreate, "incident is required", nil)
	}
	if strings.TrimSpace(inc.AuthorID) == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, opIncidentCreate, "author id is required", incidents.ErrActorRequired)
	}
	if strings.TrimSpace(inc.Title) == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, opIncidentCreate, "title is required", nil)
	}
	if err := incidents.ValidatePoint(inc.Lat, inc.Lng); err != nil {
		return out, domainagg.InvalidCoordinates(opIncidentCreate, err)
	}
	loc := in.Location
	if loc == nil {
		loc = &incidents.Location{Lat: inc.Lat, Lng: inc.Lng}
	}
	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = inc.CreatedAt
	}

	err := executeWrite(ctx, a.deps.Base, opIncidentCreate, func(dbc dbctx.Context) error {
		created, err := a.deps.Locations.Create(dbc, loc)
		if err != nil {
			return err
		}
		inc.LocationID = created.ID
		if _, err := a.deps.Incidents.Create(dbc, []*incidents.Incident{inc}); err != nil {
			return err
		}
		out.Location = created
		out.Incident = inc
		return nil
	})
	if err != nil {
		return domainagg.CreateIncidentResult{}, err
	}
	return out, nil
}

func (a *incidentAggregate) Engage(ctx context.Context, in domainagg.EngageInput) (domainagg.EngageResult, error) {
	if in.IncidentID == uuid.Nil {
		return domainagg.EngageResult{}, domainagg.NewError(domainagg.CodeValidation, opIncidentEngage, "incident id is required", nil)
	}
	actorID := strings.TrimSpace(in.ActorID)
	if actorID == "" {
		return domainagg.EngageResult{}, domainagg.NewError(domainagg.CodeValidation, opIncidentEngage, "actor id is required", incidents.ErrActorRequired)
	}
	if !in.Type.Valid() {
		return domainagg.EngageResult{}, domainagg.NewError(domainagg.CodeValidation, opIncidentEngage, "unknown engagement type "+string(in.Type), nil)
	}
	now := a.at(in.At)

	var out domainagg.EngageResult
	removed := false
	attempts, err := executeWriteWithRetry(ctx, a.deps.Base, opIncidentEngage, a.deps.Retry, func(dbc dbctx.Context) error {
		out = domainagg.EngageResult{}
		removed = false

		inc, err := a.deps.Incidents.GetByID(dbc, in.IncidentID)
		if err != nil {
			return err
		}
		if inc == nil {
			return domainagg.IncidentNotFound(opIncidentEngage, in.IncidentID)
		}
		// An incident past its deletion point is removed here instead of being engaged.
		if inc.ShouldDelete(now) {
			if err := a.remove(dbc, inc); err != nil {
				return err
			}
			removed = true
			return nil
		}

		held, err := a.deps.Engagements.Find(dbc, in.IncidentID, actorID)
		if err != nil {
			return err
		}
		if held != nil {
			if held.Type != in.Type {
				return domainagg.EngagementConflict(opIncidentEngage, in.IncidentID, held.Type)
			}
			out.Incident = inc
			out.Transition = incidents.TransitionUnchanged
			out.Repeated = true
			return nil
		}

		version := inc.Version
		transition := inc.Apply(in.Type, now)
		out.Transition = transition
		if transition == incidents.TransitionIgnored {
			out.Incident = inc
			return nil
		}
		if !inc.Stats().Valid() {
			return InvariantError("deny streak exceeds total denies")
		}

		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, inc.TableName(), inc.ID, version, map[string]any{
			"confirms":           inc.Confirms,
			"denies":             inc.Denies,
			"consecutive_denies": inc.ConsecutiveDenies,
			"expires_at":         inc.ExpiresAt,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "incident version changed"); err != nil {
			return err
		}
		inc.Version = version + 1

		if err := a.deps.Engagements.Upsert(dbc, incidents.NewEngagementRecord(inc.ID, actorID, in.Type, now)); err != nil {
			return err
		}
		out.Incident = inc
		return nil
	})
	if err != nil {
		return domainagg.EngageResult{}, surfaceConflict(opIncidentEngage, in.IncidentID, err)
	}
	if removed {
		return domainagg.EngageResult{}, domainagg.IncidentNotFound(opIncidentEngage, in.IncidentID)
	}
	out.Attempts = attempts
	return out, nil
}

func (a *incidentAggregate) DeleteIfExpired(ctx context.Context, in domainagg.DeleteIfExpiredInput) (domainagg.DeleteIfExpiredResult, error) {
	if in.IncidentID == uuid.Nil {
		return domainagg.DeleteIfExpiredResult{}, domainagg.NewError(domainagg.CodeValidation, opIncidentDeleteIfExpired, "incident id is required", nil)
	}
	now := a.at(in.At)

	_, err := executeWriteWithRetry(ctx, a.deps.Base, opIncidentDeleteIfExpired, a.deps.Retry, func(dbc dbctx.Context) error {
		inc, err := a.deps.Incidents.GetByID(dbc, in.IncidentID)
		if err != nil {
			return err
		}
		if inc == nil {
			return domainagg.IncidentNotFound(opIncidentDeleteIfExpired, in.IncidentID)
		}
		if !inc.ShouldDelete(now) {
			return domainagg.IncidentNotExpired(opIncidentDeleteIfExpired, in.IncidentID)
		}
		return a.remove(dbc, inc)
	})
	if err != nil {
		return domainagg.DeleteIfExpiredResult{}, surfaceConflict(opIncidentDeleteIfExpired, in.IncidentID, err)
	}
	return domainagg.DeleteIfExpiredResult{IncidentID: in.IncidentID, DeletedAt: now}, nil
}

// remove deletes the incident at the version it was read and everything hanging off it.
func (a *incidentAggregate) remove(dbc dbctx.Context, inc *incidents.Incident) error {
	ok, err := a.deps.Incidents.DeleteByVersion(dbc, inc.ID, inc.Version)
	if err != nil {
		return err
	}
	if err := RequireCASSuccess(ok, "incident changed before delete"); err != nil {
		return err
	}
	ids := []uuid.UUID{inc.ID}
	if _, err := a.deps.Engagements.DeleteByIncidentIDs(dbc, ids); err != nil {
		return err
	}
	if _, err := a.deps.Reactions.DeleteByIncidentIDs(dbc, ids); err != nil {
		return err
	}
	if inc.LocationID != uuid.Nil {
		if _, err := a.deps.Locations.DeleteByIDs(dbc, []uuid.UUID{inc.LocationID}); err != nil {
			return err
		}
	}
	return nil
}

// PurgeExpired deletes each candidate in its own transaction. Candidates that were
// engaged or removed since listing are skipped.
func (a *incidentAggregate) PurgeExpired(ctx context.Context, in domainagg.PurgeExpiredInput) (domainagg.PurgeExpiredResult, error) {
	now := a.at(in.At)
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultPurgeBatch
	}
	ids, err := a.deps.Incidents.ListDeletable(dbctx.Context{Ctx: ctx}, now, limit)
	if err != nil {
		return domainagg.PurgeExpiredResult{}, MapError(opIncidentPurgeExpired, err)
	}

	out := domainagg.PurgeExpiredResult{Scanned: len(ids), Deleted: make([]uuid.UUID, 0, len(ids))}
	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, MapError(opIncidentPurgeExpired, ctx.Err()))
			break
		}
		_, err := a.DeleteIfExpired(ctx, domainagg.DeleteIfExpiredInput{IncidentID: id, At: now})
		switch {
		case err == nil:
			out.Deleted = append(out.Deleted, id)
		case errors.Is(err, incidents.ErrIncidentNotFound), errors.Is(err, incidents.ErrIncidentNotExpired):
		default:
			errs = append(errs, err)
		}
	}
	return out, errors.Join(errs...)
}

// surfaceConflict turns exhausted version conflicts into ErrConcurrentModification.
func surfaceConflict(op string, id uuid.UUID, err error) error {
	if err == nil {
		return nil
	}
	if domainagg.IsCode(err, domainagg.CodeConflict) && !errors.Is(err, incidents.ErrConcurrentModification) {
		return domainagg.ConcurrentModification(op, id, err)
	}
	return err
}
