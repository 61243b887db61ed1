package incidents

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReactionType is the caller's current reaction to an incident.
type ReactionType string

const (
	ReactionLike    ReactionType = "LIKE"
	ReactionDislike ReactionType = "DISLIKE"
	ReactionNone    ReactionType = "NONE"
)

// ReactionFromFlag maps the counter script flag (1, -1, 0) to a reaction type.
func ReactionFromFlag(flag int64) ReactionType {
	switch {
	case flag > 0:
		return ReactionLike
	case flag < 0:
		return ReactionDislike
	default:
		return ReactionNone
	}
}

// ReactionAction is a single toggle request against the reaction sets.
type ReactionAction string

const (
	ActionAddLike       ReactionAction = "ADD_LIKE"
	ActionAddDislike    ReactionAction = "ADD_DISLIKE"
	ActionRemoveLike    ReactionAction = "REMOVE_LIKE"
	ActionRemoveDislike ReactionAction = "REMOVE_DISLIKE"
	ActionClear         ReactionAction = "CLEAR"
	ActionRefresh       ReactionAction = "REFRESH"
)

func (a ReactionAction) Valid() bool {
	switch a {
	case ActionAddLike, ActionAddDislike, ActionRemoveLike, ActionRemoveDislike, ActionClear, ActionRefresh:
		return true
	}
	return false
}

// Mutates reports whether the action may change set membership.
func (a ReactionAction) Mutates() bool {
	return a.Valid() && a != ActionRefresh
}

// ReactionSummary is a read projection; it is never stored as authoritative state.
type ReactionSummary struct {
	IncidentID     uuid.UUID    `json:"incident_id"`
	Likes          int64        `json:"likes"`
	Dislikes       int64        `json:"dislikes"`
	CallerReaction ReactionType `json:"caller_reaction"`
}

func (s ReactionSummary) Score() int64 {
	return s.Likes - s.Dislikes
}

// ReactionMembership mirrors one actor's reaction for rebuilding the cache. Seq is the
// counter sequence the row was written at. An empty Type marks an actor with no reaction.
type ReactionMembership struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	IncidentID uuid.UUID `gorm:"type:uuid;column:incident_id;not null;uniqueIndex:idx_incident_reaction_actor,priority:1" json:"incident_id"`
	ActorID    string    `gorm:"column:actor_id;not null;uniqueIndex:idx_incident_reaction_actor,priority:2" json:"actor_id"`
	Type       string    `gorm:"column:type;not null;default:''" json:"type"`
	Seq        int64     `gorm:"column:seq;not null;default:0" json:"seq"`
	ReactedAt  time.Time `gorm:"column:reacted_at;not null" json:"reacted_at"`
}

func (ReactionMembership) TableName() string { return "incident_reactions" }

const (
	MembershipLike    = "like"
	MembershipDislike = "dislike"
)

// MembershipFromFlag maps the counter flag to the mirror row type, "" for no reaction.
func MembershipFromFlag(flag int64) string {
	switch ReactionFromFlag(flag) {
	case ReactionLike:
		return MembershipLike
	case ReactionDislike:
		return MembershipDislike
	}
	return ""
}

// ParseReactionType accepts like/dislike in any case.
func ParseReactionType(s string) ReactionType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(ReactionLike):
		return ReactionLike
	case string(ReactionDislike):
		return ReactionDislike
	}
	return ReactionNone
}
