// Package di wires configuration into repositories, services and transports.
package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"character-studio/backend/internal/api"
	"character-studio/backend/internal/generation"
	"character-studio/backend/internal/models"
	"character-studio/backend/internal/repository"
	"character-studio/backend/internal/service"
	"character-studio/backend/internal/storage"
	"character-studio/backend/internal/workflow"
	"character-studio/backend/internal/ws"
	"character-studio/backend/pkg/cache"
	"character-studio/backend/pkg/config"
	"character-studio/backend/pkg/health"
	"character-studio/backend/pkg/jwt"
	"character-studio/backend/pkg/logger"
	"character-studio/backend/pkg/resilience"
	"character-studio/backend/pkg/secrets"
	"character-studio/backend/shared/redis"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

const healthCheckPeriod = 30 * time.Second

// Container holds all the dependencies for the application
type Container struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           *gorm.DB
	JWTService   *jwt.Service
	Registry     *prometheus.Registry
	Repositories *repository.Repositories
	Generator    generation.Generator
	Files        storage.Uploader
	Store        cache.Store
	Sessions     *workflow.Sessions
	Hub          *ws.Hub
	Services     *service.Services
	Health       *health.Checker
	Handler      *api.Handler

	closers []func() error
}

// Options replaces individual backends, mostly for tests
type Options struct {
	Generator generation.Generator
	Files     storage.Uploader
	Store     cache.Store
}

// New builds the container on top of a database connection
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, log *logger.Logger) (*Container, error) {
	c, err := NewWithRepositories(ctx, cfg, repository.NewGormRepositories(db), log, Options{})
	if err != nil {
		return nil, err
	}
	c.DB = db
	c.Health.RegisterDatabaseCheck(func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	return c, nil
}

// NewWithRepositories builds the container over an existing repository set
func NewWithRepositories(ctx context.Context, cfg *config.Config, repos *repository.Repositories, log *logger.Logger, opts Options) (*Container, error) {
	c := &Container{
		Config:       cfg,
		Logger:       log,
		Repositories: repos,
		Registry:     prometheus.NewRegistry(),
		Health:       health.NewChecker(log, healthCheckPeriod),
	}
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c.JWTService = jwt.NewService(secrets.JWTSecret(ctx, cfg.JWT.Secret), cfg.JWT.Expiry)

	files, err := c.files(ctx, opts.Files)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Files = files

	store, err := c.store(opts.Store)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Store = store

	gen, err := c.generator(ctx, opts.Generator)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Generator = gen

	c.Hub = ws.NewHub(cfg.Security.AllowedOrigins, log)
	feed := service.NewFeedService(repos.Characters, repos.Statuses, store, cfg.Cache.FeedTTL, log)
	c.Sessions = workflow.NewSessions(workflow.Deps{
		Store:      feed.StatusStore(),
		Characters: repos.Characters,
		Generator:  gen,
		Uploader:   files,
		Notifier:   c.Hub,
		Options: workflow.Options{
			SceneCount:                cfg.Generation.SceneCount,
			VideoDuration:             cfg.Generation.VideoDuration,
			AllowDuplicateSceneVideos: cfg.Generation.AllowDuplicateSceneVideos,
		},
		Logger: log,
	}, cfg.Cache.EditorIdleTime)
	c.closers = append(c.closers, func() error {
		c.Sessions.Close()
		return nil
	})

	c.Services = &service.Services{
		Characters:      service.NewCharacterService(repos.Characters, repos.Statuses, c.Sessions, files, feed, log),
		Statuses:        service.NewStatusService(repos.Statuses, repos.Characters, c.Sessions, feed, log),
		Prompts:         service.NewPromptService(repos.Prompts),
		Assets:          service.NewAssetService(repos.Assets, files, log),
		Templates:       service.NewLookService(models.LookTemplate, repos.LookItems, files),
		Transformations: service.NewLookService(models.LookTransformation, repos.LookItems, files),
		Dashboard:       service.NewDashboardService(repos),
		Feed:            feed,
		Onboarding:      service.NewOnboardingService(repos.Onboarding, store, cfg.Cache.OnboardingTTL, log),
	}
	c.Handler = api.NewHandler(c.Services, c.Hub)
	return c, nil
}

func (c *Container) files(ctx context.Context, override storage.Uploader) (storage.Uploader, error) {
	if override != nil {
		return override, nil
	}
	cfg := c.Config.Storage
	switch cfg.Backend {
	case "gcs":
		gcs, err := storage.NewGCSStorage(ctx, cfg.Bucket, cfg.CredentialsFile, cfg.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("gcs storage: %w", err)
		}
		c.closers = append(c.closers, gcs.Close)
		return gcs, nil
	case "memory":
		return storage.NewMemoryStorage(cfg.PublicBaseURL), nil
	default:
		local, err := storage.NewLocalStorage(cfg.LocalDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("local storage: %w", err)
		}
		return local, nil
	}
}

func (c *Container) store(override cache.Store) (cache.Store, error) {
	if override != nil {
		return override, nil
	}
	if url := c.Config.Cache.RedisURL; url != "" {
		client, err := redis.NewRedisClient(url, "studio:")
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		c.closers = append(c.closers, client.Close)
		c.Health.RegisterCacheCheck(client.Ping)
		return client, nil
	}

	mem := cache.NewCache(cache.Options{CleanupInterval: c.Config.Cache.PurgeWindow, MaxItems: c.Config.Cache.MaxSize})
	c.closers = append(c.closers, func() error {
		mem.Close()
		return nil
	})
	return cache.NewMemoryStore(mem), nil
}

func (c *Container) generator(ctx context.Context, override generation.Generator) (generation.Generator, error) {
	var next generation.Generator = override
	if next == nil {
		cfg := c.Config.Generation
		apiKey := secrets.GenerationAPIKey(ctx, cfg.APIKey)
		next = generation.NewFunctionsClient(cfg.BaseURL, apiKey, cfg.Timeout, c.Logger)

		if cfg.TextBackend == "openai" {
			text, err := generation.NewOpenAIText(
				secrets.OpenAIAPIKey(ctx),
				cfg.OpenAIBaseURL,
				cfg.OpenAIModel,
			)
			if err != nil {
				return nil, fmt.Errorf("openai text backend: %w", err)
			}
			next = generation.WithText(next, text)
		}
	}

	protected := generation.NewProtected(next, generation.NewMetrics(c.Registry), c.Logger)
	c.Health.RegisterCheck("generation", false, func(context.Context) (health.Status, string, error) {
		if protected.BreakerState() == resilience.StateOpen {
			return health.StatusDegraded, "Generation calls are short-circuited", nil
		}
		return health.StatusUp, "Generation gateway is accepting calls", nil
	})
	return protected, nil
}

// Close releases every backend in reverse construction order
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
