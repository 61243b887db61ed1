package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
	"github.com/BabaYagaSystems/aroundly-backend/internal/http/response"
	"github.com/BabaYagaSystems/aroundly-backend/internal/services"
)

type ReactionHandler struct {
	reactions services.ReactionService
}

func NewReactionHandler(reactions services.ReactionService) *ReactionHandler {
	return &ReactionHandler{reactions: reactions}
}

type reactionView struct {
	IncidentID     string                 `json:"incident_id"`
	Likes          int64                  `json:"likes"`
	Dislikes       int64                  `json:"dislikes"`
	Score          int64                  `json:"score"`
	CallerReaction incidents.ReactionType `json:"caller_reaction"`
}

type reactionFunc func(context.Context, uuid.UUID, string) (incidents.ReactionSummary, error)

func (h *ReactionHandler) handle(fn reactionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := incidentIDParam(c)
		if !ok {
			return
		}
		sum, err := fn(c.Request.Context(), id, actorID(c))
		if err != nil {
			response.RespondServiceError(c, err)
			return
		}
		response.RespondOK(c, gin.H{"reactions": reactionView{
			IncidentID:     sum.IncidentID.String(),
			Likes:          sum.Likes,
			Dislikes:       sum.Dislikes,
			Score:          sum.Score(),
			CallerReaction: sum.CallerReaction,
		}})
	}
}

// POST /api/v1/incidents/:id/reactions/like
func (h *ReactionHandler) Like() gin.HandlerFunc { return h.handle(h.reactions.ReactLike) }

// DELETE /api/v1/incidents/:id/reactions/like
func (h *ReactionHandler) Unlike() gin.HandlerFunc { return h.handle(h.reactions.UnreactLike) }

// POST /api/v1/incidents/:id/reactions/dislike
func (h *ReactionHandler) Dislike() gin.HandlerFunc { return h.handle(h.reactions.ReactDislike) }

// DELETE /api/v1/incidents/:id/reactions/dislike
func (h *ReactionHandler) Undislike() gin.HandlerFunc { return h.handle(h.reactions.UnreactDislike) }

// DELETE /api/v1/incidents/:id/reactions
func (h *ReactionHandler) Clear() gin.HandlerFunc { return h.handle(h.reactions.ClearReaction) }

// GET /api/v1/incidents/:id/reactions
func (h *ReactionHandler) Summary() gin.HandlerFunc { return h.handle(h.reactions.GetReactionSummary) }
