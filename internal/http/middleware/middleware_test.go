package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/ctxutil"
	"github.com/BabaYagaSystems/aroundly-backend/internal/pkg/logger"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, sub string, ttl time.Duration) string {
	t.Helper()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func authRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext(), mw)
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": ctxutil.ActorID(c.Request.Context())})
	})
	return r
}

func doGet(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth(t *testing.T) {
	am := NewAuthMiddleware(logger.Nop(), testSecret)
	r := authRouter(am.RequireAuth())

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong secret", signToken(t, "other", "u1", time.Hour), http.StatusUnauthorized},
		{"expired", signToken(t, testSecret, "u1", -time.Minute), http.StatusUnauthorized},
		{"no subject", signToken(t, testSecret, " ", time.Hour), http.StatusUnauthorized},
		{"valid", signToken(t, testSecret, "u1", time.Hour), http.StatusOK},
	}
	for _, c := range cases {
		rec := doGet(r, c.token)
		if rec.Code != c.status {
			t.Fatalf("%s: status want=%d got=%d", c.name, c.status, rec.Code)
		}
	}

	rec := doGet(r, signToken(t, testSecret, "u1", time.Hour))
	var body struct{ Actor string }
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Actor != "u1" {
		t.Fatalf("actor: want=u1 got=%q err=%v", body.Actor, err)
	}
	if rec.Header().Get(headerRequestID) == "" {
		t.Fatalf("request id header missing")
	}
}

func TestOptionalAuth(t *testing.T) {
	am := NewAuthMiddleware(logger.Nop(), testSecret)
	r := authRouter(am.OptionalAuth())

	for _, token := range []string{"", "garbage"} {
		rec := doGet(r, token)
		if rec.Code != http.StatusOK || rec.Body.String() != `{"actor":""}` {
			t.Fatalf("anonymous %q: got=%d %s", token, rec.Code, rec.Body.String())
		}
	}
	rec := doGet(r, signToken(t, testSecret, "u2", time.Hour))
	if rec.Body.String() != `{"actor":"u2"}` {
		t.Fatalf("authenticated: got=%s", rec.Body.String())
	}
}

func TestRequireAuthWithoutSecret(t *testing.T) {
	am := NewAuthMiddleware(logger.Nop(), "")
	rec := doGet(authRouter(am.RequireAuth()), signToken(t, testSecret, "u1", time.Hour))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unconfigured secret: want=401 got=%d", rec.Code)
	}
}
