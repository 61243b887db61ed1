package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domainagg "github.com/BabaYagaSystems/aroundly-backend/internal/domain/aggregates"
	"github.com/BabaYagaSystems/aroundly-backend/internal/domain/incidents"
	httpH "github.com/BabaYagaSystems/aroundly-backend/internal/http/handlers"
	httpMW "github.com/BabaYagaSystems/aroundly-backend/internal/http/middleware"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
	"github.com/BabaYagaSystems/aroundly-backend/internal/services"
)

const secret = "router-secret"

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type stubIncidents struct {
	created    services.CreateIncidentInput
	engagedBy  string
	err        error
	deleteErr  error
	rangeQuery [3]float64
}

func (s *stubIncidents) incident() *incidents.Incident {
	inc := incidents.NewIncident(incidents.NewIncidentParams{AuthorID: "u1", Title: "Pothole", Lat: 47, Lng: 28}, t0)
	return inc
}

func (s *stubIncidents) CreateIncident(_ context.Context, in services.CreateIncidentInput) (*incidents.Incident, error) {
	s.created = in
	if s.err != nil {
		return nil, s.err
	}
	inc := s.incident()
	inc.AuthorID = in.ActorID
	inc.Title = in.Title
	return inc, nil
}

func (s *stubIncidents) ConfirmIncident(_ context.Context, _ uuid.UUID, actorID string) (*incidents.Incident, error) {
	s.engagedBy = actorID
	if s.err != nil {
		return nil, s.err
	}
	return s.incident(), nil
}

func (s *stubIncidents) DenyIncident(ctx context.Context, id uuid.UUID, actorID string) (*incidents.Incident, error) {
	return s.ConfirmIncident(ctx, id, actorID)
}

func (s *stubIncidents) DeleteIfExpired(context.Context, uuid.UUID) error { return s.deleteErr }

func (s *stubIncidents) FindInRange(_ context.Context, lat, lon, radius float64) ([]*incidents.Incident, error) {
	s.rangeQuery = [3]float64{lat, lon, radius}
	if s.err != nil {
		return nil, s.err
	}
	return []*incidents.Incident{s.incident()}, nil
}

func (s *stubIncidents) GetIncident(_ context.Context, id uuid.UUID) (*incidents.Incident, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.incident(), nil
}

func (s *stubIncidents) PurgeExpired(context.Context) (int, error) { return 0, nil }

type stubReactions struct {
	lastActor string
	err       error
}

func (s *stubReactions) sum(id uuid.UUID, actor string, r incidents.ReactionType) (incidents.ReactionSummary, error) {
	s.lastActor = actor
	if s.err != nil {
		return incidents.ReactionSummary{}, s.err
	}
	return incidents.ReactionSummary{IncidentID: id, Likes: 3, Dislikes: 1, CallerReaction: r}, nil
}

func (s *stubReactions) ReactLike(_ context.Context, id uuid.UUID, a string) (incidents.ReactionSummary, error) {
	return s.sum(id, a, incidents.ReactionLike)
}
func (s *stubReactions) ReactDislike(_ context.Context, id uuid.UUID, a string) (incidents.ReactionSummary, error) {
	return s.sum(id, a, incidents.ReactionDislike)
}
func (s *stubReactions) UnreactLike(_ context.Context, id uuid.UUID, a string) (incidents.ReactionSummary, error) {
	return s.sum(id, a, incidents.ReactionNone)
}
func (s *stubReactions) UnreactDislike(_ context.Context, id uuid.UUID, a string) (incidents.ReactionSummary, error) {
	return s.sum(id, a, incidents.ReactionNone)
}
func (s *stubReactions) ClearReaction(_ context.Context, id uuid.UUID, a string) (incidents.ReactionSummary, error) {
	return s.sum(id, a, incidents.ReactionNone)
}
func (s *stubReactions) GetReactionSummary(_ context.Context, id uuid.UUID, a string) (incidents.ReactionSummary, error) {
	return s.sum(id, a, incidents.ReactionNone)
}

func newTestRouter(inc *stubIncidents, react *stubReactions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterConfig{
		Log:             logger.Nop(),
		AuthMiddleware:  httpMW.NewAuthMiddleware(logger.Nop(), secret),
		IncidentHandler: httpH.NewIncidentHandler(inc),
		ReactionHandler: httpH.NewReactionHandler(react),
		HealthHandler: httpH.NewHealthHandler(map[string]httpH.Check{
			"db": func(context.Context) error { return nil },
		}),
	})
}

func bearer(t *testing.T, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, httpMW.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + tok
}

func do(r nethttp.Handler, method, path, auth, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, bool) {
	t.Helper()
	var env struct {
		Error struct {
			Code  string `json:"code"`
			Retry bool   `json:"retry"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return env.Error.Code, env.Error.Retry
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter(&stubIncidents{}, &stubReactions{})
	id := uuid.New().String()
	routes := []struct{ method, path string }{
		{nethttp.MethodPost, "/api/v1/incidents"},
		{nethttp.MethodPost, "/api/v1/incidents/" + id + "/confirm"},
		{nethttp.MethodPost, "/api/v1/incidents/" + id + "/deny"},
		{nethttp.MethodDelete, "/api/v1/incidents/" + id},
		{nethttp.MethodPost, "/api/v1/incidents/" + id + "/reactions/like"},
		{nethttp.MethodDelete, "/api/v1/incidents/" + id + "/reactions/dislike"},
		{nethttp.MethodDelete, "/api/v1/incidents/" + id + "/reactions"},
	}
	for _, rt := range routes {
		if rec := do(r, rt.method, rt.path, "", "", nil); rec.Code != nethttp.StatusUnauthorized {
			t.Fatalf("%s %s: want=401 got=%d", rt.method, rt.path, rec.Code)
		}
	}
}

func TestCreateIncidentJSON(t *testing.T) {
	inc := &stubIncidents{}
	r := newTestRouter(inc, &stubReactions{})
	body := []byte(`{"title":"Pothole","description":"deep","lat":47.02,"lon":28.83}`)
	rec := do(r, nethttp.MethodPost, "/api/v1/incidents", bearer(t, "u1"), "application/json", body)
	if rec.Code != nethttp.StatusCreated {
		t.Fatalf("status: want=201 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if inc.created.ActorID != "u1" || inc.created.Lat != 47.02 || inc.created.Lon != 28.83 {
		t.Fatalf("service input: got=%+v", inc.created)
	}

	rec = do(r, nethttp.MethodPost, "/api/v1/incidents", bearer(t, "u1"), "application/json", []byte(`{"title":"x"}`))
	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("missing coordinates: want=400 got=%d", rec.Code)
	}
}

func TestCreateIncidentMultipart(t *testing.T) {
	inc := &stubIncidents{}
	r := newTestRouter(inc, &stubReactions{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("title", "Flood")
	_ = mw.WriteField("lat", "47.1")
	_ = mw.WriteField("lon", "28.9")
	fw, _ := mw.CreateFormFile("media", "photo.jpg")
	_, _ = fw.Write([]byte("jpeg"))
	_ = mw.Close()

	rec := do(r, nethttp.MethodPost, "/api/v1/incidents", bearer(t, "u9"), mw.FormDataContentType(), buf.Bytes())
	if rec.Code != nethttp.StatusCreated {
		t.Fatalf("status: want=201 got=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(inc.created.Media) != 1 || inc.created.Media[0].Filename != "photo.jpg" || inc.created.Title != "Flood" {
		t.Fatalf("service input: got=%+v", inc.created)
	}
}

func TestEngagementErrorMapping(t *testing.T) {
	id := uuid.New()
	cases := []struct {
		err    error
		status int
		code   string
		retry  bool
	}{
		{domainagg.IncidentNotFound("op", id), nethttp.StatusNotFound, "incident_not_found", false},
		{domainagg.EngagementConflict("op", id, incidents.EngagementConfirm), nethttp.StatusConflict, "engagement_conflict", false},
		{domainagg.ConcurrentModification("op", id, nil), nethttp.StatusServiceUnavailable, "concurrent_modification", true},
	}
	for _, c := range cases {
		inc := &stubIncidents{err: c.err}
		r := newTestRouter(inc, &stubReactions{})
		rec := do(r, nethttp.MethodPost, "/api/v1/incidents/"+id.String()+"/deny", bearer(t, "u2"), "", nil)
		if rec.Code != c.status {
			t.Fatalf("%v: status want=%d got=%d", c.err, c.status, rec.Code)
		}
		code, retry := decodeError(t, rec)
		if code != c.code || retry != c.retry {
			t.Fatalf("%v: want=%s/%v got=%s/%v", c.err, c.code, c.retry, code, retry)
		}
		if inc.engagedBy != "u2" {
			t.Fatalf("actor: want=u2 got=%q", inc.engagedBy)
		}
	}
}

func TestDeleteIfExpired(t *testing.T) {
	id := uuid.New()
	inc := &stubIncidents{}
	r := newTestRouter(inc, &stubReactions{})
	if rec := do(r, nethttp.MethodDelete, "/api/v1/incidents/"+id.String(), bearer(t, "u1"), "", nil); rec.Code != nethttp.StatusNoContent {
		t.Fatalf("expired: want=204 got=%d", rec.Code)
	}
	inc.deleteErr = domainagg.IncidentNotExpired("op", id)
	rec := do(r, nethttp.MethodDelete, "/api/v1/incidents/"+id.String(), bearer(t, "u1"), "", nil)
	if rec.Code != nethttp.StatusConflict {
		t.Fatalf("live: want=409 got=%d", rec.Code)
	}
	if rec := do(r, nethttp.MethodDelete, "/api/v1/incidents/not-a-uuid", bearer(t, "u1"), "", nil); rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("bad id: want=400 got=%d", rec.Code)
	}
}

func TestReactionRoutes(t *testing.T) {
	react := &stubReactions{}
	r := newTestRouter(&stubIncidents{}, react)
	id := uuid.New().String()

	rec := do(r, nethttp.MethodPost, "/api/v1/incidents/"+id+"/reactions/like", bearer(t, "u3"), "", nil)
	if rec.Code != nethttp.StatusOK || !strings.Contains(rec.Body.String(), `"caller_reaction":"LIKE"`) || !strings.Contains(rec.Body.String(), `"score":2`) {
		t.Fatalf("like: got=%d %s", rec.Code, rec.Body.String())
	}
	if react.lastActor != "u3" {
		t.Fatalf("actor: want=u3 got=%q", react.lastActor)
	}

	rec = do(r, nethttp.MethodGet, "/api/v1/incidents/"+id+"/reactions", "", "", nil)
	if rec.Code != nethttp.StatusOK || react.lastActor != "" {
		t.Fatalf("anonymous summary: got=%d actor=%q", rec.Code, react.lastActor)
	}
	do(r, nethttp.MethodGet, "/api/v1/incidents/"+id+"/reactions", bearer(t, "u4"), "", nil)
	if react.lastActor != "u4" {
		t.Fatalf("authenticated summary actor: want=u4 got=%q", react.lastActor)
	}

	react.err = domainagg.NewError(domainagg.CodeRetryable, "reaction.add_like", "reaction counter unavailable", nil)
	rec = do(r, nethttp.MethodPost, "/api/v1/incidents/"+id+"/reactions/like", bearer(t, "u3"), "", nil)
	if rec.Code != nethttp.StatusServiceUnavailable || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("counter down: got=%d retry-after=%q", rec.Code, rec.Header().Get("Retry-After"))
	}
}

func TestFeed(t *testing.T) {
	inc := &stubIncidents{}
	r := newTestRouter(inc, &stubReactions{})

	rec := do(r, nethttp.MethodGet, "/api/v1/feed?lat=47&lon=28", "", "", nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("feed: want=200 got=%d", rec.Code)
	}
	if inc.rangeQuery != [3]float64{47, 28, 2000} {
		t.Fatalf("default radius: got=%v", inc.rangeQuery)
	}
	if rec := do(r, nethttp.MethodGet, "/api/v1/feed?lat=abc&lon=28", "", "", nil); rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("bad lat: want=400 got=%d", rec.Code)
	}
	inc.err = domainagg.InvalidCoordinates("op", nil)
	rec = do(r, nethttp.MethodGet, "/api/v1/feed?lat=47&lon=28&radius=999999", "", "", nil)
	if code, _ := decodeError(t, rec); rec.Code != nethttp.StatusBadRequest || code != "invalid_coordinates" {
		t.Fatalf("radius too large: got=%d %s", rec.Code, code)
	}
}

func TestHealthRoutes(t *testing.T) {
	r := newTestRouter(&stubIncidents{}, &stubReactions{})
	if rec := do(r, nethttp.MethodGet, "/healthcheck", "", "", nil); rec.Code != nethttp.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: got=%d %q", rec.Code, rec.Body.String())
	}
	if rec := do(r, nethttp.MethodGet, "/readyz", "", "", nil); rec.Code != nethttp.StatusOK {
		t.Fatalf("readyz: got=%d", rec.Code)
	}
}
