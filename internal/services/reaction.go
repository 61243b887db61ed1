package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/BabaYagaSystems/aroundly-backend/internal/clients/redis"
	dataagg "github.com/BabaYagaSystems/aroundly-backend/internal/data/aggregates"
	"github.com/BabaYagaSystems/aroundly-backend/internal/data/repos"
	domainagg "github.com/BabaYagaSystems/aroundly-backend/internal/domain/aggregates"
	"github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
	"github.com/BabaYagaSystems/aroundly-backend/internal/observability"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/ctxutil"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/dbctx"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

type ReactionService interface {
	ReactLike(ctx context.Context, incidentID uuid.UUID, actorID string) (incidents.ReactionSummary, error)
	ReactDislike(ctx context.Context, incidentID uuid.UUID, actorID string) (incidents.ReactionSummary, error)
	UnreactLike(ctx context.Context, incidentID uuid.UUID, actorID string) (incidents.ReactionSummary, error)
	UnreactDislike(ctx context.Context, incidentID uuid.UUID, actorID string) (incidents.ReactionSummary, error)
	ClearReaction(ctx context.Context, incidentID uuid.UUID, actorID string) (incidents.ReactionSummary, error)
	// GetReactionSummary accepts an empty actorID; CallerReaction is then NONE.
	GetReactionSummary(ctx context.Context, incidentID uuid.UUID, actorID string) (incidents.ReactionSummary, error)
}

type ReactionServiceDeps struct {
	Log       *logger.Logger
	Incidents repos.IncidentRepo
	Mirror    repos.ReactionMirrorRepo
	Counter   ReactionCounter
	Metrics   *observability.Metrics
	// ReadAttempts bounds REFRESH retries against the cache.
	ReadAttempts uint
	ReadInterval time.Duration
	Now          func() time.Time
}

type reactionService struct {
	deps    ReactionServiceDeps
	log     *logger.Logger
	rebuild singleflight.Group
}

func NewReactionService(deps ReactionServiceDeps) ReactionService {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.ReadAttempts == 0 {
		deps.ReadAttempts = 3
	}
	if deps.ReadInterval <= 0 {
		deps.ReadInterval = 20 * time.Millisecond
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &reactionService{deps: deps, log: deps.Log.With("service", "ReactionService")}
}

func (s *reactionService) ReactLike(ctx context.Context, id uuid.UUID, actorID string) (incidents.ReactionSummary, error) {
	return s.apply(ctx, id, actorID, incidents.ActionAddLike)
}

func (s *reactionService) ReactDislike(ctx context.Context, id uuid.UUID, actorID string) (incidents.ReactionSummary, error) {
	return s.apply(ctx, id, actorID, incidents.ActionAddDislike)
}

func (s *reactionService) UnreactLike(ctx context.Context, id uuid.UUID, actorID string) (incidents.ReactionSummary, error) {
	return s.apply(ctx, id, actorID, incidents.ActionRemoveLike)
}

func (s *reactionService) UnreactDislike(ctx context.Context, id uuid.UUID, actorID string) (incidents.ReactionSummary, error) {
	return s.apply(ctx, id, actorID, incidents.ActionRemoveDislike)
}

func (s *reactionService) ClearReaction(ctx context.Context, id uuid.UUID, actorID string) (incidents.ReactionSummary, error) {
	return s.apply(ctx, id, actorID, incidents.ActionClear)
}

func (s *reactionService) GetReactionSummary(ctx context.Context, id uuid.UUID, actorID string) (incidents.ReactionSummary, error) {
	return s.apply(ctx, id, actorID, incidents.ActionRefresh)
}

func reactionOp(action incidents.ReactionAction) string {
	return "reaction." + strings.ToLower(string(action))
}

func (s *reactionService) apply(ctx context.Context, id uuid.UUID, actorID string, action incidents.ReactionAction) (incidents.ReactionSummary, error) {
	op := reactionOp(action)
	ctx, span := tracer.Start(ctx, "ReactionService.Apply")
	defer span.End()
	span.SetAttributes(attribute.String("incident.id", id.String()), attribute.String("reaction.action", string(action)))

	sum, err := s.applyInner(ctx, op, id, strings.TrimSpace(actorID), action)
	status := "success"
	if err != nil {
		status = string(domainagg.CodeOf(err))
		if status == "" {
			status = "error"
		}
		span.SetStatus(codes.Error, err.Error())
	}
	s.deps.Metrics.IncReactionAction(string(action), status)
	return sum, err
}

func (s *reactionService) applyInner(ctx context.Context, op string, id uuid.UUID, actorID string, action incidents.ReactionAction) (incidents.ReactionSummary, error) {
	if id == uuid.Nil {
		return incidents.ReactionSummary{}, domainagg.NewError(domainagg.CodeValidation, op, "incident id is required", nil)
	}
	if action.Mutates() && actorID == "" {
		return incidents.ReactionSummary{}, domainagg.NewError(domainagg.CodeValidation, op, "actor id is required", incidents.ErrActorRequired)
	}

	exists, err := s.deps.Incidents.Exists(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return incidents.ReactionSummary{}, dataagg.MapError(op, err)
	}
	if !exists {
		return incidents.ReactionSummary{}, domainagg.IncidentNotFound(op, id)
	}

	if err := s.ensureWarm(ctx, op, id); err != nil {
		return incidents.ReactionSummary{}, err
	}

	res, err := s.call(ctx, op, id, actorID, action)
	if err != nil {
		var aggErr *domainagg.Error
		if errors.As(err, &aggErr) {
			return incidents.ReactionSummary{}, err
		}
		s.log.Warn("Reaction counter call failed", "incident_id", id, "action", action, "error", err)
		return incidents.ReactionSummary{}, domainagg.NewError(domainagg.CodeRetryable, op, "reaction counter unavailable", err)
	}

	if action.Mutates() {
		if err := s.mirror(ctx, id, actorID, res); err != nil {
			// The cache already holds the change; replaying the same toggle is harmless.
			s.log.With(ctxutil.LogFields(ctx)...).Error("Reaction mirror write failed", "incident_id", id, "actor_id", actorID, "action", action, "error", err)
			return incidents.ReactionSummary{}, dataagg.MapError(op, err)
		}
	}

	return incidents.ReactionSummary{
		IncidentID:     id,
		Likes:          res.Likes,
		Dislikes:       res.Dislikes,
		CallerReaction: incidents.ReactionFromFlag(res.Flag),
	}, nil
}

// call runs the action against the counter. Sets evicted after the warm check are
// rebuilt once before the action is repeated.
func (s *reactionService) call(ctx context.Context, op string, id uuid.UUID, actorID string, action incidents.ReactionAction) (redis.CounterResult, error) {
	run := func() (redis.CounterResult, error) {
		if action.Mutates() {
			return s.deps.Counter.Apply(ctx, id, actorID, action)
		}
		return s.refresh(ctx, id, actorID)
	}
	res, err := run()
	if !errors.Is(err, redis.ErrCold) {
		return res, err
	}
	if err := s.ensureWarm(ctx, op, id); err != nil {
		return redis.CounterResult{}, err
	}
	return run()
}

func (s *reactionService) refresh(ctx context.Context, id uuid.UUID, actorID string) (redis.CounterResult, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.deps.ReadInterval
	return backoff.Retry(ctx, func() (redis.CounterResult, error) {
		res, err := s.deps.Counter.Apply(ctx, id, actorID, incidents.ActionRefresh)
		if err != nil && (ctx.Err() != nil || errors.Is(err, redis.ErrCold)) {
			return res, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.deps.ReadAttempts),
	)
}

// mirror records the actor's membership as the script left it. The seq makes a late
// write from an older toggle lose against a newer one.
func (s *reactionService) mirror(ctx context.Context, id uuid.UUID, actorID string, res redis.CounterResult) error {
	return s.deps.Mirror.Record(dbctx.Context{Ctx: ctx}, id, actorID, incidents.MembershipFromFlag(res.Flag), res.Seq, s.deps.Now())
}

// ensureWarm reloads the sets from the mirror once per cache loss. Concurrent callers in
// this process share one rebuild; across processes the rebuild script skips once warm.
// The counter sequence resumes above the highest mirrored seq.
func (s *reactionService) ensureWarm(ctx context.Context, op string, id uuid.UUID) error {
	warm, err := s.deps.Counter.Warm(ctx, id)
	if err != nil {
		return domainagg.NewError(domainagg.CodeRetryable, op, "reaction counter unavailable", err)
	}
	if warm {
		return nil
	}
	_, err, shared := s.rebuild.Do(id.String(), func() (any, error) {
		rows, err := s.deps.Mirror.ListByIncident(dbctx.Context{Ctx: ctx}, id)
		if err != nil {
			return nil, dataagg.MapError(op, err)
		}
		var likers, dislikers []string
		var seq int64
		for _, r := range rows {
			if r.Seq > seq {
				seq = r.Seq
			}
			switch r.Type {
			case incidents.MembershipLike:
				likers = append(likers, r.ActorID)
			case incidents.MembershipDislike:
				dislikers = append(dislikers, r.ActorID)
			}
		}
		loaded, err := s.deps.Counter.Rebuild(ctx, id, seq, likers, dislikers)
		if err != nil {
			return nil, domainagg.NewError(domainagg.CodeRetryable, op, "reaction counter unavailable", err)
		}
		status := "skipped"
		if loaded {
			status = "loaded"
			s.log.Info("Reaction sets rebuilt from mirror", "incident_id", id, "likes", len(likers), "dislikes", len(dislikers))
		}
		s.deps.Metrics.IncReactionRebuild(status)
		return loaded, nil
	})
	if err != nil {
		if !shared {
			s.deps.Metrics.IncReactionRebuild("error")
		}
		var aggErr *domainagg.Error
		if errors.As(err, &aggErr) {
			return err
		}
		return dataagg.MapError(op, err)
	}
	return nil
}
