package di

import (
	"context"
	"testing"
	"time"

	"character-studio/backend/internal/generation"
	"character-studio/backend/internal/repository"
	"character-studio/backend/internal/storage"
	"character-studio/backend/pkg/config"
	"character-studio/backend/pkg/health"
	"character-studio/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Expiry = time.Hour
	cfg.Storage.Backend = "memory"
	cfg.Storage.PublicBaseURL = "https://files.test"
	cfg.Cache.FeedTTL = time.Minute
	cfg.Cache.OnboardingTTL = time.Minute
	cfg.Cache.EditorIdleTime = time.Hour
	cfg.Cache.PurgeWindow = time.Minute
	cfg.Generation.SceneCount = 4
	cfg.Generation.VideoDuration = 5
	cfg.Generation.Timeout = time.Second
	return cfg
}

func TestNewWithRepositoriesWiresEverything(t *testing.T) {
	c, err := NewWithRepositories(context.Background(), testConfig(), repository.NewMemory().Repositories(), logger.Discard(), Options{
		Generator: &generation.Fake{},
	})
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.Services.Characters)
	assert.NotNil(t, c.Services.Feed)
	assert.NotNil(t, c.Handler)
	assert.IsType(t, &storage.MemoryStorage{}, c.Files)
	assert.IsType(t, &generation.Protected{}, c.Generator)

	c.Health.RunChecks(context.Background())
	gen, ok := c.Health.GetStatus()["generation"]
	require.True(t, ok)
	assert.Equal(t, health.StatusUp, gen.Status)
	assert.True(t, c.Health.IsSystemHealthy())

	families, err := c.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestOpenAIBackendNeedsKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := testConfig()
	cfg.Generation.TextBackend = "openai"

	_, err := NewWithRepositories(context.Background(), cfg, repository.NewMemory().Repositories(), logger.Discard(), Options{})

	assert.ErrorContains(t, err, "openai")
}

func TestCloseIsIdempotent(t *testing.T) {
	c, err := NewWithRepositories(context.Background(), testConfig(), repository.NewMemory().Repositories(), logger.Discard(), Options{})
	require.NoError(t, err)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
