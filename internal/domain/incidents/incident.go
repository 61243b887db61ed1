package incidents

import (
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	// TTL is the base lifespan of an incident and the hard ceiling measured from creation.
	TTL = 30 * time.Minute

	ConfirmThreshold = 5
	ConfirmExtension = 2 * time.Minute

	DenyStreakLimit = 3
	DenyReduction   = 5 * time.Minute
)

// Transition describes what a confirm/deny did to the expiration instant.
type Transition string

const (
	TransitionUnchanged Transition = "unchanged"
	TransitionExtended  Transition = "extended"
	TransitionShortened Transition = "shortened"
	// TransitionIgnored is a confirm that arrived after the incident expired.
	TransitionIgnored Transition = "ignored"
)

type Incident struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID   string    `gorm:"column:author_id;not null;index" json:"author_id"`
	LocationID uuid.UUID `gorm:"type:uuid;column:location_id;not null;index" json:"location_id"`

	Title       string         `gorm:"column:title;not null" json:"title"`
	Description string         `gorm:"column:description" json:"description"`
	Media       datatypes.JSON `gorm:"column:media" json:"media"`

	// Denormalised location coordinates used by range queries.
	Lat float64 `gorm:"column:lat;not null;index:idx_incident_lat_lng,priority:1" json:"lat"`
	Lng float64 `gorm:"column:lng;not null;index:idx_incident_lat_lng,priority:2" json:"lng"`

	Confirms          uint `gorm:"column:confirms;not null;default:0" json:"confirms"`
	Denies            uint `gorm:"column:denies;not null;default:0" json:"denies"`
	ConsecutiveDenies uint `gorm:"column:consecutive_denies;not null;default:0;index" json:"consecutive_denies"`

	// Version guards optimistic updates of the engagement columns.
	Version int `gorm:"column:version;not null;default:0" json:"version"`

	CreatedAt time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index" json:"expires_at"`
}

func (Incident) TableName() string { return "incidents" }

type NewIncidentParams struct {
	ID          uuid.UUID
	AuthorID    string
	LocationID  uuid.UUID
	Title       string
	Description string
	Media       []MediaRef
	Lat         float64
	Lng         float64
}

// NewIncident builds a fresh incident that expires TTL after now.
func NewIncident(p NewIncidentParams, now time.Time) *Incident {
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now = now.UTC()
	return &Incident{
		ID:          id,
		AuthorID:    p.AuthorID,
		LocationID:  p.LocationID,
		Title:       p.Title,
		Description: p.Description,
		Media:       EncodeMedia(p.Media),
		Lat:         p.Lat,
		Lng:         p.Lng,
		CreatedAt:   now,
		ExpiresAt:   now.Add(TTL),
	}
}

func (i *Incident) Stats() EngagementStats {
	return EngagementStats{
		Confirms:          i.Confirms,
		Denies:            i.Denies,
		ConsecutiveDenies: i.ConsecutiveDenies,
	}
}

func (i *Incident) setStats(s EngagementStats) {
	i.Confirms = s.Confirms
	i.Denies = s.Denies
	i.ConsecutiveDenies = s.ConsecutiveDenies
}

// MaxExpiresAt is the latest instant the incident may ever live to.
func (i *Incident) MaxExpiresAt() time.Time {
	return i.CreatedAt.Add(TTL)
}

// Confirm records a confirmation. Every ConfirmThreshold-th confirmation pushes
// the expiration out by ConfirmExtension, capped at MaxExpiresAt.
// Confirms arriving after expiry are ignored.
func (i *Incident) Confirm(now time.Time) Transition {
	if now.After(i.ExpiresAt) {
		return TransitionIgnored
	}
	next := i.Stats().AddConfirm()
	i.setStats(next)
	if next.Confirms%ConfirmThreshold != 0 {
		return TransitionUnchanged
	}
	extended := i.ExpiresAt.Add(ConfirmExtension)
	if limit := i.MaxExpiresAt(); extended.After(limit) {
		extended = limit
	}
	if !extended.After(i.ExpiresAt) {
		return TransitionUnchanged
	}
	i.ExpiresAt = extended
	return TransitionExtended
}

// Deny records a denial. The denial that completes a streak of DenyStreakLimit
// pulls the expiration in by DenyReduction, never earlier than now.
func (i *Incident) Deny(now time.Time) Transition {
	next := i.Stats().AddDeny()
	i.setStats(next)
	if next.ConsecutiveDenies != DenyStreakLimit {
		return TransitionUnchanged
	}
	shortened := i.ExpiresAt.Add(-DenyReduction)
	if shortened.Before(now) {
		shortened = now.UTC()
	}
	if !shortened.Before(i.ExpiresAt) {
		return TransitionUnchanged
	}
	i.ExpiresAt = shortened
	return TransitionShortened
}

func (i *Incident) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// ShouldDelete is the deletion predicate: a full deny streak or a passed expiration.
func (i *Incident) ShouldDelete(now time.Time) bool {
	return i.ConsecutiveDenies >= DenyStreakLimit || i.Expired(now)
}

// Apply runs the transition for the given engagement type.
func (i *Incident) Apply(t EngagementType, now time.Time) Transition {
	if t == EngagementDeny {
		return i.Deny(now)
	}
	return i.Confirm(now)
}

func (i *Incident) MediaRefs() []MediaRef {
	return DecodeMedia(i.Media)
}

// MediaRef points at an uploaded object; the bytes live in the object store.
type MediaRef struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type,omitempty"`
	URL         string `json:"url,omitempty"`
}

func EncodeMedia(refs []MediaRef) datatypes.JSON {
	if len(refs) == 0 {
		return datatypes.JSON([]byte("[]"))
	}
	seen := make(map[string]struct{}, len(refs))
	uniq := make([]MediaRef, 0, len(refs))
	for _, r := range refs {
		if _, ok := seen[r.Key]; ok {
			continue
		}
		seen[r.Key] = struct{}{}
		uniq = append(uniq, r)
	}
	raw, err := json.Marshal(uniq)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}

func DecodeMedia(raw datatypes.JSON) []MediaRef {
	if len(raw) == 0 {
		return nil
	}
	var out []MediaRef
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// MediaUpload is a file attached to a new report before it reaches the object store.
type MediaUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}
