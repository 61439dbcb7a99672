package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"permit_ingest_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type secretConfig string

func (s secretConfig) GetIngestAPISecret() string { return string(s) }

func TestExtractScopes(t *testing.T) {
	cases := []struct {
		name  string
		value interface{}
		want  int
	}{
		{"string list", []string{"ingest:run", "leads:write"}, 2},
		{"json array", []interface{}{"outbox:consume", 7, "ingest:run"}, 2},
		{"space separated", "ingest:run  outbox:consume", 2},
		{"missing", nil, 0},
	}
	for _, tc := range cases {
		if got := extractScopes(tc.value); len(got) != tc.want {
			t.Fatalf("%s: expected %d scopes, got %v", tc.name, tc.want, got)
		}
	}
}

func TestExtractBearerToken(t *testing.T) {
	if _, ok := extractBearerToken("Basic abc"); ok {
		t.Fatalf("expected non-bearer header to be rejected")
	}
	if _, ok := extractBearerToken("Bearer   "); ok {
		t.Fatalf("expected empty bearer token to be rejected")
	}
	if token, ok := extractBearerToken("Bearer abc.def"); !ok || token != "abc.def" {
		t.Fatalf("expected token abc.def, got %q", token)
	}
}

func newAuthRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ServiceAuthRequired(secretConfig(secret), logger.Discard()))
	r.GET("/run", RequireScope(ScopeIngestRun), func(c *gin.Context) {
		c.String(http.StatusOK, GetCaller(c).Subject())
	})
	return r
}

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func serve(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/run", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestServiceAuthWithoutSecretIsAnonymous(t *testing.T) {
	rec := serve(newAuthRouter(""), "")
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Fatalf("expected anonymous pass-through, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestServiceAuthRejectsBadTokens(t *testing.T) {
	r := newAuthRouter("s3cret")

	if rec := serve(r, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	wrongKey := sign(t, "other", jwt.MapClaims{"sub": "scheduler", "scopes": []string{ScopeIngestRun}})
	if rec := serve(r, wrongKey); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign signature, got %d", rec.Code)
	}

	noSubject := sign(t, "s3cret", jwt.MapClaims{"scopes": []string{ScopeIngestRun}})
	if rec := serve(r, noSubject); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without subject, got %d", rec.Code)
	}

	expired := sign(t, "s3cret", jwt.MapClaims{
		"sub":    "scheduler",
		"scopes": []string{ScopeIngestRun},
		"exp":    time.Now().Add(-time.Hour).Unix(),
	})
	if rec := serve(r, expired); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}
}

func TestRequireScope(t *testing.T) {
	r := newAuthRouter("s3cret")

	reader := sign(t, "s3cret", jwt.MapClaims{"sub": "dashboard", "scopes": "leads:write"})
	if rec := serve(r, reader); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without ingest scope, got %d", rec.Code)
	}

	runner := sign(t, "s3cret", jwt.MapClaims{"sub": "scheduler", "scopes": []string{ScopeIngestRun}})
	rec := serve(r, runner)
	if rec.Code != http.StatusOK || rec.Body.String() != "scheduler" {
		t.Fatalf("expected scheduler to pass, got %d %q", rec.Code, rec.Body.String())
	}

	admin := sign(t, "s3cret", jwt.MapClaims{"sub": "ops", "scopes": []string{ScopeAll}})
	if rec := serve(r, admin); rec.Code != http.StatusOK {
		t.Fatalf("expected wildcard scope to pass, got %d", rec.Code)
	}
}
