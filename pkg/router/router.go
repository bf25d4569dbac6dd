// Package router assembles the gin engine: middleware chain, operational
// endpoints and the versioned API.
package router

import (
	"net/http"
	"slices"
	"time"

	"character-studio/backend/internal/storage"
	"character-studio/backend/pkg/di"
	"character-studio/backend/pkg/errors"
	"character-studio/backend/pkg/jwt"
	"character-studio/backend/pkg/logger"
	"character-studio/backend/pkg/middleware"
	"character-studio/backend/pkg/validator"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger

	limiters []*middleware.RateLimiter
}

// New creates the engine and its middleware chain. Call SetupRoutes next.
func New(container *di.Container) (*Router, error) {
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		return nil, err
	}

	r := &Router{Engine: engine, Container: container, Logger: container.Logger}

	// the logger must run first so later middleware can use the request logger
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(middleware.RequestContext())
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))
	if cfg.Security.MaxBodySize > 0 {
		engine.Use(middleware.MaxBodySize(cfg.Security.MaxBodySize))
	}

	global := r.limiter(rate.Limit(cfg.Security.RateLimit), cfg.Security.RateLimitBurst, nil)
	engine.Use(global.Middleware())

	v, err := validator.NewOpenAPIValidator(cfg.OpenAPI.SchemaPath)
	if err != nil {
		return nil, err
	}
	engine.Use(v.Middleware())

	return r, nil
}

func (r *Router) limiter(limit rate.Limit, burst int, key func(*gin.Context) string) *middleware.RateLimiter {
	opts := middleware.DefaultRateLimiterOptions()
	if limit > 0 {
		opts.Limit = limit
	}
	if burst > 0 {
		opts.Burst = burst
	}
	if key != nil {
		opts.KeyFunc = key
	}
	l := middleware.NewRateLimiter(r.Logger, opts)
	r.limiters = append(r.limiters, l)
	return l
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container
	cfg := c.Config

	r.Engine.GET("/health", gin.WrapF(c.Health.HTTPHandler()))
	r.Engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})))
	r.Engine.GET("/api/docs/openapi.yaml", func(ctx *gin.Context) {
		ctx.Data(http.StatusOK, "application/yaml", validator.Schema())
	})
	if local, ok := c.Files.(*storage.LocalStorage); ok {
		r.Engine.Static("/uploads", local.Dir())
	}

	jwtAuth := middleware.JWTAuthMiddleware(c.JWTService, r.Logger)
	adminRole := jwt.Role(cfg.JWT.AdminRole)
	if adminRole == "" {
		adminRole = jwt.RoleAdmin
	}

	v1 := r.Engine.Group("/api/v1")
	c.Handler.RegisterPublicRoutes(v1)

	authenticated := v1.Group("")
	authenticated.Use(jwtAuth)
	c.Handler.RegisterUserRoutes(authenticated)

	admin := v1.Group("/admin")
	admin.Use(jwtAuth, middleware.RequireRole(adminRole))

	// generation calls are slow and billed, so they get their own per-user budget
	generation := r.limiter(rate.Limit(cfg.Security.GenerationRateLimit), 3, middleware.UserKey)
	c.Handler.RegisterAdminRoutes(admin, generation.Middleware())
}

// Close stops the rate limiter janitors
func (r *Router) Close() {
	for _, l := range r.limiters {
		l.Stop()
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Retry-After"},
		AllowWebSockets:  true,
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
