package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/vxgrid/internal/config"
	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/engine"
	"github.com/specialistvlad/vxgrid/internal/target"
)

// App holds the host's dependencies and the engine context it created.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	config  *Config
	runtime *config.Runtime
	engine  *engine.Context
}

// NewApp loads the configuration and creates an engine context with the
// given target modules registered, or the built-in ones when none are given.
// The caller must Close the returned App.
func NewApp(outW io.Writer, cfg *Config, targets ...func(*target.Catalog)) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	rt, err := loadRuntime(ctx, cfg)
	if err != nil {
		return nil, err
	}

	catalog := newCatalog(targets...)
	logger.Debug("Target modules registered.", "modules", catalog.Names())

	eng, err := engine.New(ctx, engineOptions(rt, catalog)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	logger.Debug("Engine context created.", "context", eng.ID().String())

	return &App{
		outW:    outW,
		logger:  logger,
		config:  cfg,
		runtime: rt,
		engine:  eng,
	}, nil
}

// Engine returns the application's context. This is primarily for testing.
func (a *App) Engine() *engine.Context {
	return a.engine
}

// Close releases the engine context.
func (a *App) Close(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	if err := a.engine.Release(ctx); err != nil {
		return fmt.Errorf("failed to release context: %w", err)
	}
	return nil
}
