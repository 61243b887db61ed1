package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	dataagg "github.com/BabaYagaSystems/aroundly-backend/internal/data/aggregates"
	"github.com/BabaYagaSystems/aroundly-backend/internal/data/repos"
	domainagg "github.com/BabaYagaSystems/aroundly-backend/internal/domain/aggregates"
	"github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
	"github.com/BabaYagaSystems/aroundly-backend/internal/observability"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/ctxutil"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/dbctx"
	pkgerrors "github.com/BabaYagaSystems/aroundly-backend/internal/pkg/errors"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

const (
	opServiceCreate   = "incident.create"
	opServiceFind     = "incident.find_in_range"
	opServiceGet      = "incident.get"
	opServiceDelete   = "incident.delete_if_expired"
	opServicePurge    = "incident.purge_expired"
	broadcastDeadline = 5 * time.Second
)

var tracer = observability.Tracer("services")

type CreateIncidentInput struct {
	ActorID     string
	Title       string
	Description string
	Media       []incidents.MediaUpload
	Lat         float64
	Lon         float64
}

type IncidentService interface {
	CreateIncident(ctx context.Context, in CreateIncidentInput) (*incidents.Incident, error)
	ConfirmIncident(ctx context.Context, incidentID uuid.UUID, actorID string) (*incidents.Incident, error)
	DenyIncident(ctx context.Context, incidentID uuid.UUID, actorID string) (*incidents.Incident, error)
	DeleteIfExpired(ctx context.Context, incidentID uuid.UUID) error
	FindInRange(ctx context.Context, lat, lon, radiusMeters float64) ([]*incidents.Incident, error)
	// GetIncident removes a dead incident on read and reports it as not found.
	GetIncident(ctx context.Context, incidentID uuid.UUID) (*incidents.Incident, error)
	// PurgeExpired deletes one batch of dead incidents and returns how many were removed.
	PurgeExpired(ctx context.Context) (int, error)
}

type IncidentServiceDeps struct {
	Log         *logger.Logger
	Aggregate   domainagg.IncidentAggregate
	Incidents   repos.IncidentRepo
	Locations   LocationResolver
	Media       ObjectStore
	Broadcaster Broadcaster
	Counter     ReactionCounter
	Metrics     *observability.Metrics
	PurgeBatch  int
	Now         func() time.Time
}

type incidentService struct {
	deps IncidentServiceDeps
	log  *logger.Logger
}

func NewIncidentService(deps IncidentServiceDeps) IncidentService {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.PurgeBatch <= 0 {
		deps.PurgeBatch = dataagg.DefaultPurgeBatch
	}
	return &incidentService{deps: deps, log: deps.Log.With("service", "IncidentService")}
}

func (s *incidentService) CreateIncident(ctx context.Context, in CreateIncidentInput) (*incidents.Incident, error) {
	ctx, span := tracer.Start(ctx, "IncidentService.CreateIncident")
	defer span.End()

	actorID := strings.TrimSpace(in.ActorID)
	if actorID == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, opServiceCreate, "actor id is required", incidents.ErrActorRequired)
	}
	if err := incidents.ValidatePoint(in.Lat, in.Lon); err != nil {
		return nil, domainagg.InvalidCoordinates(opServiceCreate, err)
	}

	loc, err := s.deps.Locations.Resolve(ctx, in.Lat, in.Lon)
	if err != nil {
		return nil, dataagg.MapError(opServiceCreate, err)
	}

	var media []incidents.MediaRef
	if len(in.Media) > 0 {
		if s.deps.Media == nil {
			return nil, domainagg.NewError(domainagg.CodeValidation, opServiceCreate, "media uploads are not configured", pkgerrors.ErrUnavailable)
		}
		media, err = s.deps.Media.UploadAll(ctx, in.Media)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrInvalidArgument) {
				return nil, domainagg.NewError(domainagg.CodeValidation, opServiceCreate, err.Error(), err)
			}
			s.log.With(ctxutil.LogFields(ctx)...).Error("Media upload failed", "actor_id", actorID, "files", len(in.Media), "error", err)
			return nil, domainagg.NewError(domainagg.CodeRetryable, opServiceCreate, "media upload failed", err)
		}
	}

	inc := incidents.NewIncident(incidents.NewIncidentParams{
		AuthorID:    actorID,
		LocationID:  loc.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Media:       media,
		Lat:         in.Lat,
		Lng:         in.Lon,
	}, s.deps.Now())

	res, err := s.deps.Aggregate.Create(ctx, domainagg.CreateIncidentInput{Location: loc, Incident: inc})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("incident.id", res.Incident.ID.String()))
	s.broadcastCreated(ctx, res.Incident)
	return res.Incident, nil
}

// broadcastCreated publishes in the background; the request never waits on fan-out.
func (s *incidentService) broadcastCreated(ctx context.Context, inc *incidents.Incident) {
	if s.deps.Broadcaster == nil || inc == nil {
		return
	}
	payload := IncidentCreated{
		IncidentID: inc.ID.String(),
		AuthorID:   inc.AuthorID,
		Title:      inc.Title,
		Lat:        inc.Lat,
		Lng:        inc.Lng,
		ExpiresAt:  inc.ExpiresAt.Format(time.RFC3339),
	}
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), broadcastDeadline)
	go func() {
		defer cancel()
		if err := s.deps.Broadcaster.Publish(bctx, EventIncidentCreated, payload); err != nil {
			s.log.Warn("Incident broadcast failed", "incident_id", payload.IncidentID, "error", err)
		}
	}()
}

func (s *incidentService) ConfirmIncident(ctx context.Context, incidentID uuid.UUID, actorID string) (*incidents.Incident, error) {
	return s.engage(ctx, incidentID, actorID, incidents.EngagementConfirm)
}

func (s *incidentService) DenyIncident(ctx context.Context, incidentID uuid.UUID, actorID string) (*incidents.Incident, error) {
	return s.engage(ctx, incidentID, actorID, incidents.EngagementDeny)
}

func (s *incidentService) engage(ctx context.Context, incidentID uuid.UUID, actorID string, t incidents.EngagementType) (*incidents.Incident, error) {
	ctx, span := tracer.Start(ctx, "IncidentService.Engage")
	defer span.End()
	span.SetAttributes(
		attribute.String("incident.id", incidentID.String()),
		attribute.String("engagement.type", string(t)),
	)

	res, err := s.deps.Aggregate.Engage(ctx, domainagg.EngageInput{
		IncidentID: incidentID,
		ActorID:    actorID,
		Type:       t,
		At:         s.deps.Now(),
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.deps.Metrics.IncEngagement(string(t), "error")
		if errors.Is(err, incidents.ErrIncidentNotFound) {
			// The aggregate may have just removed an incident past its deletion point.
			s.dropReactions(ctx, incidentID)
		}
		return nil, err
	}
	transition := string(res.Transition)
	if res.Repeated {
		transition = "repeated"
	}
	span.SetAttributes(attribute.String("engagement.transition", transition), attribute.Int("engagement.attempts", res.Attempts))
	s.deps.Metrics.IncEngagement(string(t), transition)
	if res.Attempts > 1 {
		s.log.Debug("Engagement applied after retry", "incident_id", incidentID, "attempts", res.Attempts)
	}
	return res.Incident, nil
}

func (s *incidentService) DeleteIfExpired(ctx context.Context, incidentID uuid.UUID) error {
	if _, err := s.deps.Aggregate.DeleteIfExpired(ctx, domainagg.DeleteIfExpiredInput{
		IncidentID: incidentID,
		At:         s.deps.Now(),
	}); err != nil {
		return err
	}
	s.dropReactions(ctx, incidentID)
	return nil
}

// dropReactions discards cached sets of a deleted incident. The mirror rows are already gone.
func (s *incidentService) dropReactions(ctx context.Context, incidentID uuid.UUID) {
	if s.deps.Counter == nil {
		return
	}
	if err := s.deps.Counter.Drop(ctx, incidentID); err != nil {
		s.log.Warn("Dropping reaction sets failed", "incident_id", incidentID, "error", err)
	}
}

func (s *incidentService) FindInRange(ctx context.Context, lat, lon, radiusMeters float64) ([]*incidents.Incident, error) {
	if err := incidents.ValidateRange(lat, lon, radiusMeters); err != nil {
		return nil, domainagg.InvalidCoordinates(opServiceFind, err)
	}
	hits, err := s.deps.Incidents.FindInRange(dbctx.Context{Ctx: ctx}, repos.RangeQuery{
		Lat:          lat,
		Lon:          lon,
		RadiusMeters: radiusMeters,
		Now:          s.deps.Now(),
		Limit:        incidents.MaxRangeResults,
	})
	if err != nil {
		return nil, dataagg.MapError(opServiceFind, err)
	}
	out := make([]*incidents.Incident, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Incident)
	}
	return out, nil
}

func (s *incidentService) GetIncident(ctx context.Context, incidentID uuid.UUID) (*incidents.Incident, error) {
	inc, err := s.deps.Incidents.GetByID(dbctx.Context{Ctx: ctx}, incidentID)
	if err != nil {
		return nil, dataagg.MapError(opServiceGet, err)
	}
	if inc == nil {
		return nil, domainagg.IncidentNotFound(opServiceGet, incidentID)
	}
	if !inc.ShouldDelete(s.deps.Now()) {
		return inc, nil
	}
	if err := s.DeleteIfExpired(ctx, incidentID); err != nil {
		if errors.Is(err, incidents.ErrIncidentNotExpired) {
			// Engaged between the read and the delete; reread the survivor.
			return s.GetIncident(ctx, incidentID)
		}
		if !errors.Is(err, incidents.ErrIncidentNotFound) {
			s.log.Warn("Reactive delete failed", "incident_id", incidentID, "error", err)
			return nil, err
		}
	}
	return nil, domainagg.IncidentNotFound(opServiceGet, incidentID)
}

// PurgeExpired deletes batches until one comes back short or deletes nothing.
func (s *incidentService) PurgeExpired(ctx context.Context) (int, error) {
	start := time.Now()
	now := s.deps.Now()
	deleted, batches := 0, 0
	var err error
	for ctx.Err() == nil {
		var res domainagg.PurgeExpiredResult
		res, err = s.deps.Aggregate.PurgeExpired(ctx, domainagg.PurgeExpiredInput{
			At:    now,
			Limit: s.deps.PurgeBatch,
		})
		batches++
		for _, id := range res.Deleted {
			s.dropReactions(ctx, id)
		}
		deleted += len(res.Deleted)
		if err != nil || res.Scanned < s.deps.PurgeBatch || len(res.Deleted) == 0 {
			break
		}
	}
	status := "success"
	if err != nil {
		status = "error"
		s.log.Warn("Purge finished with errors", "deleted", deleted, "error", err)
	}
	s.deps.Metrics.ObserveSweep(deleted, status)
	if deleted > 0 {
		s.log.Info("Purged expired incidents", "deleted", deleted, "batches", batches, "elapsed", time.Since(start))
	}
	if err != nil {
		return deleted, domainagg.Wrap(domainagg.CodeInternal, opServicePurge, err)
	}
	return deleted, nil
}
