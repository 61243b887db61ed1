package handlers

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
	"github.com/BabaYagaSystems/aroundly-backend/internal/http/response"
	"github.com/BabaYagaSystems/aroundly-backend/internal/services"
)

const (
	maxMediaFiles     = 5
	maxMultipartBytes = 64 << 20

	defaultFeedRadiusMeters = 2000
)

type IncidentHandler struct {
	incidents services.IncidentService
}

func NewIncidentHandler(incidents services.IncidentService) *IncidentHandler {
	return &IncidentHandler{incidents: incidents}
}

// IncidentView is the public shape of an incident.
type IncidentView struct {
	ID                string               `json:"id"`
	AuthorID          string               `json:"author_id"`
	Title             string               `json:"title"`
	Description       string               `json:"description,omitempty"`
	Media             []incidents.MediaRef `json:"media"`
	Lat               float64              `json:"lat"`
	Lng               float64              `json:"lng"`
	Confirms          uint                 `json:"confirms"`
	Denies            uint                 `json:"denies"`
	ConsecutiveDenies uint                 `json:"consecutive_denies"`
	CreatedAt         time.Time            `json:"created_at"`
	ExpiresAt         time.Time            `json:"expires_at"`
}

func NewIncidentView(inc *incidents.Incident) IncidentView {
	media := inc.MediaRefs()
	if media == nil {
		media = []incidents.MediaRef{}
	}
	return IncidentView{
		ID:                inc.ID.String(),
		AuthorID:          inc.AuthorID,
		Title:             inc.Title,
		Description:       inc.Description,
		Media:             media,
		Lat:               inc.Lat,
		Lng:               inc.Lng,
		Confirms:          inc.Confirms,
		Denies:            inc.Denies,
		ConsecutiveDenies: inc.ConsecutiveDenies,
		CreatedAt:         inc.CreatedAt,
		ExpiresAt:         inc.ExpiresAt,
	}
}

type createIncidentRequest struct {
	Title       string   `json:"title" form:"title" binding:"required,max=200"`
	Description string   `json:"description" form:"description" binding:"max=4000"`
	Lat         *float64 `json:"lat" form:"lat" binding:"required"`
	Lon         *float64 `json:"lon" form:"lon" binding:"required"`
}

// POST /api/v1/incidents
// Accepts JSON or multipart/form-data with up to five "media" files.
func (h *IncidentHandler) CreateIncident(c *gin.Context) {
	var req createIncidentRequest
	var media []incidents.MediaUpload

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxMultipartBytes)
		if err := c.ShouldBind(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		form, err := c.MultipartForm()
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_multipart", err)
			return
		}
		files := form.File["media"]
		if len(files) > maxMediaFiles {
			response.RespondError(c, http.StatusBadRequest, "too_many_files", fmt.Errorf("at most %d media files", maxMediaFiles))
			return
		}
		uploads, closeAll, err := openUploads(files)
		defer closeAll()
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_media", err)
			return
		}
		media = uploads
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	inc, err := h.incidents.CreateIncident(c.Request.Context(), services.CreateIncidentInput{
		ActorID:     actorID(c),
		Title:       req.Title,
		Description: req.Description,
		Media:       media,
		Lat:         *req.Lat,
		Lon:         *req.Lon,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"incident": NewIncidentView(inc)})
}

func openUploads(files []*multipart.FileHeader) ([]incidents.MediaUpload, func(), error) {
	var closers []func() error
	closeAll := func() {
		for _, cl := range closers {
			_ = cl()
		}
	}
	out := make([]incidents.MediaUpload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, f.Close)
		out = append(out, incidents.MediaUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return out, closeAll, nil
}

// GET /api/v1/incidents/:id
func (h *IncidentHandler) GetIncident(c *gin.Context) {
	id, ok := incidentIDParam(c)
	if !ok {
		return
	}
	inc, err := h.incidents.GetIncident(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"incident": NewIncidentView(inc)})
}

// POST /api/v1/incidents/:id/confirm
func (h *IncidentHandler) ConfirmIncident(c *gin.Context) {
	h.engage(c, h.incidents.ConfirmIncident)
}

// POST /api/v1/incidents/:id/deny
func (h *IncidentHandler) DenyIncident(c *gin.Context) {
	h.engage(c, h.incidents.DenyIncident)
}

func (h *IncidentHandler) engage(c *gin.Context, fn func(context.Context, uuid.UUID, string) (*incidents.Incident, error)) {
	id, ok := incidentIDParam(c)
	if !ok {
		return
	}
	inc, err := fn(c.Request.Context(), id, actorID(c))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"incident": NewIncidentView(inc)})
}

// DELETE /api/v1/incidents/:id
// Succeeds only when the incident is already dead; live incidents answer 409.
func (h *IncidentHandler) DeleteIfExpired(c *gin.Context) {
	id, ok := incidentIDParam(c)
	if !ok {
		return
	}
	if err := h.incidents.DeleteIfExpired(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/v1/feed?lat=&lon=&radius=
func (h *IncidentHandler) Feed(c *gin.Context) {
	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lon, err2 := strconv.ParseFloat(c.Query("lon"), 64)
	if err1 != nil || err2 != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_coordinates", fmt.Errorf("lat and lon query parameters are required"))
		return
	}
	radius := float64(defaultFeedRadiusMeters)
	if raw := strings.TrimSpace(c.Query("radius")); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_radius", err)
			return
		}
		radius = r
	}
	found, err := h.incidents.FindInRange(c.Request.Context(), lat, lon, radius)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	views := make([]IncidentView, 0, len(found))
	for _, inc := range found {
		views = append(views, NewIncidentView(inc))
	}
	response.RespondOK(c, gin.H{"incidents": views})
}
