package main

import (
	"context"
	"fmt"
	"sync"

	"character-studio/backend/pkg/config"
	"character-studio/backend/pkg/di"
	"character-studio/backend/pkg/logger"
	"character-studio/backend/pkg/secrets"
)

// commandContext lazily builds what subcommands need. Commands that only
// read files never touch the database.
type commandContext struct {
	logLevel *string

	logOnce sync.Once
	log     *logger.Logger

	containerOnce sync.Once
	container     *di.Container
	containerErr  error
}

func newCommandContext(logLevel *string) *commandContext {
	return &commandContext{logLevel: logLevel}
}

func (c *commandContext) config() *config.Config {
	return config.Get()
}

func (c *commandContext) logger() *logger.Logger {
	c.logOnce.Do(func() {
		level := "warn"
		if c.logLevel != nil && *c.logLevel != "" {
			level = *c.logLevel
		}
		c.log = logger.New(logger.Config{Level: level, JSON: false})
		logger.SetGlobal(c.log)
	})
	return c.log
}

// services connects to the database and builds the full container
func (c *commandContext) services(ctx context.Context) (*di.Container, error) {
	c.containerOnce.Do(func() {
		cfg := c.config()
		log := c.logger()
		if err := secrets.Init(log); err != nil {
			log.Warn("Secrets manager unavailable, reading secrets from the environment", "error", err.Error())
		}
		db, err := config.NewDB(cfg)
		if err != nil {
			c.containerErr = fmt.Errorf("connect database: %w", err)
			return
		}
		c.container, c.containerErr = di.New(ctx, cfg, db, log)
	})
	return c.container, c.containerErr
}

func (c *commandContext) close() {
	if c.container != nil {
		c.container.Close()
	}
}
