package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"character-studio/backend/internal/generation"
	"character-studio/backend/internal/repository"
	"character-studio/backend/pkg/config"
	"character-studio/backend/pkg/di"
	"character-studio/backend/pkg/jwt"
	"character-studio/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

type fixture struct {
	router *Router
	jwt    *jwt.Service
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = "router-secret"
	cfg.JWT.Expiry = time.Hour
	cfg.JWT.AdminRole = "admin"
	cfg.Security.RateLimit = 1000
	cfg.Security.RateLimitBurst = 1000
	cfg.Security.GenerationRateLimit = 1000
	cfg.Security.AllowedOrigins = []string{"https://admin.example.com"}
	cfg.Security.MaxBodySize = 1 << 20
	cfg.Storage.Backend = "memory"
	cfg.Storage.PublicBaseURL = "https://files.test"
	cfg.Cache.FeedTTL = time.Minute
	cfg.Cache.OnboardingTTL = time.Minute
	cfg.Cache.EditorIdleTime = time.Hour
	cfg.Generation.SceneCount = 4
	cfg.Generation.VideoDuration = 5
	for _, fn := range mutate {
		fn(cfg)
	}

	c, err := di.NewWithRepositories(context.Background(), cfg, repository.NewMemory().Repositories(), logger.Discard(), di.Options{
		Generator: &generation.Fake{},
	})
	require.NoError(t, err)

	r, err := New(c)
	require.NoError(t, err)
	r.SetupRoutes()
	t.Cleanup(func() {
		r.Close()
		c.Close()
	})
	return &fixture{router: r, jwt: c.JWTService}
}

func (f *fixture) do(t *testing.T, method, path, body string, role jwt.Role) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		token, err := f.jwt.GenerateToken("user-1", "ops@example.com", role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.Engine.ServeHTTP(w, req)
	return w
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/admin/dashboard", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/admin/dashboard", "", jwt.RoleMember)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/admin/dashboard", "", jwt.RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"characters":0`)
}

func TestPublicRoutes(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/feed", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/v1/onboarding", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMeReturnsClaims(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/me", "", jwt.RoleMember)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"user-1"`)
	assert.Contains(t, w.Body.String(), `"admin":false`)
}

func TestSchemaValidationRunsBeforeHandlers(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/admin/statuses", `{"character_id":"x","mood":"grumpy"}`, jwt.RoleAdmin)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestOperationalEndpoints(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	w = f.do(t, http.MethodGet, "/api/docs/openapi.yaml", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/admin/characters", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	f.router.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://admin.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBodyLimit(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.Security.MaxBodySize = 16 })

	w := f.do(t, http.MethodPost, "/api/v1/admin/prompts", `{"name":"a long prompt","content":"x"}`, jwt.RoleAdmin)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Security.RateLimit = 0.001
		cfg.Security.RateLimitBurst = 1
	})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/feed", "", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodGet, "/api/v1/feed", "", "").Code)
}
