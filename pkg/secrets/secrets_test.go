package secrets

import (
	"context"
	"testing"

	"character-studio/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledVaultReadsEnvironment(t *testing.T) {
	t.Setenv("GENERATION_API_KEY", "from-env")

	m, err := NewVaultManager(VaultConfig{}, logger.Discard())
	require.NoError(t, err)

	v, err := m.GetSecret(context.Background(), "generation.api-key")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	assert.Equal(t, "fallback", m.GetSecretWithDefault(context.Background(), "missing.key", "fallback"))
}

func TestEnabledVaultRequiresAddress(t *testing.T) {
	_, err := NewVaultManager(VaultConfig{Enabled: true}, logger.Discard())
	assert.ErrorIs(t, err, ErrNoVaultAddress)

	_, err = NewVaultManager(VaultConfig{Enabled: true, Address: "http://vault:8200"}, logger.Discard())
	assert.ErrorIs(t, err, ErrNoVaultToken)
}

func TestAccessorsWithoutManagerReadEnvironment(t *testing.T) {
	SetManager(nil)
	t.Setenv("GENERATION_API_KEY", "gw-key")
	t.Setenv("OPENAI_API_KEY", "")

	ctx := context.Background()
	assert.Equal(t, "gw-key", GenerationAPIKey(ctx, "cfg-key"))
	assert.Empty(t, OpenAIAPIKey(ctx))
	assert.Equal(t, "JWT_SECRET", KeyJWTSecret.Env())
}

func TestAccessorsPreferManager(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("GENERATION_API_KEY", "")
	m, err := NewVaultManager(VaultConfig{}, logger.Discard())
	require.NoError(t, err)
	SetManager(m)
	t.Cleanup(func() { SetManager(nil) })

	ctx := context.Background()
	assert.Equal(t, "from-env", JWTSecret(ctx, "cfg-secret"))
	assert.Equal(t, "cfg-key", GenerationAPIKey(ctx, "cfg-key"))
}
