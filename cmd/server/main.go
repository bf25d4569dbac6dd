package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"character-studio/backend/internal/database"
	"character-studio/backend/pkg/config"
	"character-studio/backend/pkg/di"
	"character-studio/backend/pkg/health"
	"character-studio/backend/pkg/logger"
	"character-studio/backend/pkg/router"
	"character-studio/backend/pkg/secrets"
	"character-studio/backend/shared/observability"
)

func main() {
	cfg := config.New()

	log := logger.New(logger.Config{
		Level: cfg.Logging.Level,
		JSON:  cfg.Logging.Format != "text",
	})
	logger.SetGlobal(log)

	log.Info("Starting application", "version", os.Getenv("APP_VERSION"), "env", cfg.Server.Env)

	if err := run(cfg, log); err != nil {
		log.LogError(err, "Server stopped with error")
		os.Exit(1)
	}
	log.Info("Server exited gracefully")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := secrets.Init(log); err != nil {
		log.Warn("Secrets manager unavailable, reading secrets from the environment", "error", err.Error())
	}

	var shutdowns []observability.Shutdown
	if cfg.Observability.Tracing {
		shutdownTracing, err := observability.SetupTracing(cfg.Observability.ServiceName, os.Stdout)
		if err != nil {
			return err
		}
		shutdowns = append(shutdowns, shutdownTracing)
	}

	db, err := config.NewDB(cfg)
	if err != nil {
		return err
	}

	if cfg.Database.AutoMigrate {
		m, err := database.NewMigrator(cfg.DatabaseURL(), log)
		if err != nil {
			return err
		}
		err = m.Up()
		m.Close()
		if err != nil {
			return err
		}
	}

	container, err := di.New(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer container.Close()

	shutdownMetrics, err := observability.SetupMetrics(cfg.Observability.ServiceName, container.Registry)
	if err != nil {
		return err
	}
	shutdowns = append(shutdowns, shutdownMetrics)

	r, err := router.New(container)
	if err != nil {
		return err
	}
	defer r.Close()
	r.SetupRoutes()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go container.Hub.Run(hubCtx)
	container.Health.Start(ctx)

	grpcServer := health.NewGRPCServer(container.Health, cfg.Observability.ServiceName)
	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		return err
	}
	go func() {
		log.Info("gRPC health server starting", "port", cfg.Server.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.LogError(err, "gRPC health server stopped")
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}
	grpcServer.GracefulStop()
	stopHub()

	if err := observability.Combine(shutdowns...)(shutdownCtx); err != nil {
		log.LogError(err, "Telemetry shutdown failed")
	}
	return nil
}
