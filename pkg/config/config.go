package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port     string
		GRPCPort string
		Env      string
		Timeout  time.Duration
		BaseURL  string
	}

	// Database configuration
	Database struct {
		Host        string
		Port        string
		User        string
		Password    string
		Name        string
		SSLMode     string
		MaxConns    int
		Timeout     time.Duration
		AutoMigrate bool
	}

	// JWT configuration. Tokens are issued by the external auth provider and
	// only validated here.
	JWT struct {
		Secret    string
		Expiry    time.Duration
		AdminRole string
	}

	// Security configuration
	Security struct {
		RateLimit           float64
		RateLimitBurst      int
		GenerationRateLimit float64
		AllowedOrigins      []string
		TrustedProxies      []string
		MaxBodySize         int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Generation gateway settings
	Generation struct {
		BaseURL                   string
		APIKey                    string
		TextBackend               string
		OpenAIModel               string
		OpenAIBaseURL             string
		Timeout                   time.Duration
		SceneCount                int
		VideoDuration             int
		AllowDuplicateSceneVideos bool
	}

	// Object storage settings
	Storage struct {
		Backend         string
		Bucket          string
		CredentialsFile string
		PublicBaseURL   string
		LocalDir        string
	}

	// Cache settings
	Cache struct {
		Enabled        bool
		TTL            time.Duration
		MaxSize        int
		PurgeWindow    time.Duration
		RedisURL       string
		FeedTTL        time.Duration
		OnboardingTTL  time.Duration
		EditorIdleTime time.Duration
	}

	// Observability settings
	Observability struct {
		Tracing     bool
		ServiceName string
	}

	// OpenAPI request validation
	OpenAPI struct {
		SchemaPath string
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// load reads every setting from the environment. It is separate from New so
// tests can build a fresh Config after changing the environment.
func load() *Config {
	cfg := &Config{}

	// Server config
	cfg.Server.Port = getEnvString("PORT", "8081")
	cfg.Server.GRPCPort = getEnvString("GRPC_PORT", "9091")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
	cfg.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.Server.Port)

	// Database config
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "character_studio")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)
	cfg.Database.AutoMigrate = getEnvBool("DB_AUTO_MIGRATE", true)

	// JWT config
	cfg.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
	cfg.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)
	cfg.JWT.AdminRole = getEnvString("JWT_ADMIN_ROLE", "admin")

	// Security config
	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 20)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 40)
	cfg.Security.GenerationRateLimit = getEnvFloat("GENERATION_RATE_LIMIT", 1)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	cfg.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 100<<20) // videos can be large

	// Logging config
	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	// Generation gateway
	cfg.Generation.BaseURL = getEnvString("GENERATION_BASE_URL", "http://localhost:54321/functions/v1")
	cfg.Generation.APIKey = getEnvString("GENERATION_API_KEY", "")
	cfg.Generation.TextBackend = getEnvString("GENERATION_TEXT_BACKEND", "functions")
	cfg.Generation.OpenAIModel = getEnvString("OPENAI_MODEL", "gpt-4o-mini")
	cfg.Generation.OpenAIBaseURL = getEnvString("OPENAI_BASE_URL", "")
	cfg.Generation.Timeout = getEnvDuration("GENERATION_TIMEOUT", 5*time.Minute)
	cfg.Generation.SceneCount = getEnvInt("GENERATION_SCENE_COUNT", 4)
	cfg.Generation.VideoDuration = getEnvInt("GENERATION_VIDEO_DURATION", 5)
	cfg.Generation.AllowDuplicateSceneVideos = getEnvBool("GENERATION_ALLOW_DUPLICATE_SCENE_VIDEOS", false)

	// Object storage
	cfg.Storage.Backend = getEnvString("STORAGE_BACKEND", "local")
	cfg.Storage.Bucket = getEnvString("STORAGE_BUCKET", "")
	cfg.Storage.CredentialsFile = getEnvString("STORAGE_CREDENTIALS_FILE", "")
	cfg.Storage.PublicBaseURL = getEnvString("STORAGE_PUBLIC_BASE_URL", cfg.Server.BaseURL+"/uploads")
	cfg.Storage.LocalDir = getEnvString("STORAGE_LOCAL_DIR", "uploads")

	// Cache settings
	cfg.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
	cfg.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)
	cfg.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)
	cfg.Cache.RedisURL = getEnvString("REDIS_URL", "")
	cfg.Cache.FeedTTL = getEnvDuration("FEED_CACHE_TTL", time.Minute)
	cfg.Cache.OnboardingTTL = getEnvDuration("ONBOARDING_CACHE_TTL", 10*time.Minute)
	cfg.Cache.EditorIdleTime = getEnvDuration("EDITOR_IDLE_TIME", 2*time.Hour)

	// Observability
	cfg.Observability.Tracing = getEnvBool("OTEL_TRACING", false)
	cfg.Observability.ServiceName = getEnvString("OTEL_SERVICE_NAME", "character-studio")

	cfg.OpenAPI.SchemaPath = getEnvString("OPENAPI_SCHEMA_PATH", "")

	return cfg
}

// IsProduction reports whether the server runs with APP_ENV=production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
