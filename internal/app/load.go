package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/vxgrid/internal/config"
	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/engine"
	"github.com/specialistvlad/vxgrid/internal/target"
)

// loadRuntime reads the configuration files and applies command-line
// overrides on top.
func loadRuntime(ctx context.Context, cfg *Config) (*config.Runtime, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading runtime configuration...", "paths", cfg.ConfigPaths)

	rt, err := config.Load(ctx, cfg.ConfigPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Workers > 0 {
		logger.Debug("Worker count overridden from command line.", "configured", rt.Workers, "workers", cfg.Workers)
		rt.Workers = cfg.Workers
	}
	logger.Info("Runtime configuration loaded.", "workers", rt.Workers, "targets", len(rt.Targets), "perf", rt.Perf)
	return rt, nil
}

// engineOptions translates the runtime configuration into context options.
func engineOptions(rt *config.Runtime, catalog *target.Catalog) []engine.Option {
	specs := make([]engine.TargetSpec, 0, len(rt.Targets))
	for _, t := range rt.Targets {
		specs = append(specs, engine.TargetSpec{
			Name:     t.Name,
			Priority: t.Priority,
			Enabled:  t.Enabled,
			Options:  target.Options(t.Options),
		})
	}
	return []engine.Option{
		engine.WithCatalog(catalog),
		engine.WithWorkers(rt.Workers),
		engine.WithQueueDepth(rt.QueueDepth),
		engine.WithMaxReferences(rt.MaxReferences),
		engine.WithMaxKernels(rt.MaxKernels),
		engine.WithMaxMaps(rt.MaxMaps),
		engine.WithMaxAccessors(rt.MaxAccessors),
		engine.WithPerf(rt.Perf),
		engine.WithTargets(specs...),
		engine.WithKernelModules(rt.KernelModules...),
	}
}
