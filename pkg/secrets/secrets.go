// Package secrets resolves provider credentials from Vault, falling back to
// the process environment.
package secrets

import (
	"context"
	"os"
	"strings"
	"sync"

	"character-studio/backend/pkg/logger"
)

// Key names a secret in the Vault KV entry. Key.Env is its environment
// fallback.
type Key string

const (
	KeyJWTSecret        Key = "jwt.secret"
	KeyGenerationAPIKey Key = "generation.api-key"
	KeyOpenAIAPIKey     Key = "openai.api-key"
)

var envReplacer = strings.NewReplacer("-", "_", ".", "_")

// Env maps generation.api-key to GENERATION_API_KEY
func (k Key) Env() string {
	return strings.ToUpper(envReplacer.Replace(string(k)))
}

type Manager interface {
	GetSecret(ctx context.Context, key string) (string, error)
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

var (
	mu             sync.RWMutex
	defaultManager Manager
)

// Init builds the Vault manager from VAULT_* variables and makes it the default
func Init(log *logger.Logger) error {
	manager, err := NewVaultManager(VaultConfigFromEnv(), log)
	if err != nil {
		return err
	}
	SetManager(manager)
	return nil
}

// SetManager replaces the default manager. Nil restores plain environment lookups.
func SetManager(manager Manager) {
	mu.Lock()
	defer mu.Unlock()
	defaultManager = manager
}

func current() Manager {
	mu.RLock()
	defer mu.RUnlock()
	return defaultManager
}

// lookup resolves key through the default manager, or straight from the
// environment when there is none. fallback is used when both come up empty.
func lookup(ctx context.Context, key Key, fallback string) string {
	if m := current(); m != nil {
		return m.GetSecretWithDefault(ctx, string(key), fallback)
	}
	if v := os.Getenv(key.Env()); v != "" {
		return v
	}
	return fallback
}

// JWTSecret returns the HS256 signing key for admin tokens
func JWTSecret(ctx context.Context, fallback string) string {
	return lookup(ctx, KeyJWTSecret, fallback)
}

// GenerationAPIKey returns the bearer key of the generation gateway
func GenerationAPIKey(ctx context.Context, fallback string) string {
	return lookup(ctx, KeyGenerationAPIKey, fallback)
}

// OpenAIAPIKey returns the key of the OpenAI text backend. Empty means unset.
func OpenAIAPIKey(ctx context.Context) string {
	return lookup(ctx, KeyOpenAIAPIKey, "")
}
