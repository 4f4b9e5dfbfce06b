package config

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
)

// TOMLLoader reads .toml files, the alternate format:
//
//	[runtime]
//	workers = 8
//
//	[[target]]
//	name = "khronos.device"
//	priority = 2
//	[target.options]
//	transfers = 2
type TOMLLoader struct{}

type tomlFile struct {
	Runtime tomlRuntime  `toml:"runtime"`
	Targets []tomlTarget `toml:"target"`
}

type tomlRuntime struct {
	Workers       int      `toml:"workers"`
	QueueDepth    int      `toml:"queue_depth"`
	MaxReferences int      `toml:"max_references"`
	MaxKernels    int      `toml:"max_kernels"`
	MaxMaps       int      `toml:"max_maps"`
	MaxAccessors  int      `toml:"max_accessors"`
	Perf          bool     `toml:"perf"`
	KernelModules []string `toml:"kernel_modules"`
}

type tomlTarget struct {
	Name     string         `toml:"name"`
	Priority *int           `toml:"priority"`
	Enabled  *bool          `toml:"enabled"`
	Options  map[string]any `toml:"options"`
}

func (TOMLLoader) Extension() string { return ".toml" }

func (TOMLLoader) Load(ctx context.Context, path string) (*File, error) {
	var raw tomlFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in %s: %v", path, undecoded)
	}

	f := &File{Path: path}
	ints := []struct {
		key string
		src *int
		dst **int
	}{
		{"workers", &raw.Runtime.Workers, &f.Workers},
		{"queue_depth", &raw.Runtime.QueueDepth, &f.QueueDepth},
		{"max_references", &raw.Runtime.MaxReferences, &f.MaxReferences},
		{"max_kernels", &raw.Runtime.MaxKernels, &f.MaxKernels},
		{"max_maps", &raw.Runtime.MaxMaps, &f.MaxMaps},
		{"max_accessors", &raw.Runtime.MaxAccessors, &f.MaxAccessors},
	}
	for _, i := range ints {
		if meta.IsDefined("runtime", i.key) {
			*i.dst = i.src
		}
	}
	if meta.IsDefined("runtime", "perf") {
		f.Perf = &raw.Runtime.Perf
	}
	f.KernelModules = raw.Runtime.KernelModules

	for _, rt := range raw.Targets {
		opts, err := toCtyOptions(rt.Options)
		if err != nil {
			return nil, fmt.Errorf("target %q in %s: %w", rt.Name, path, err)
		}
		f.Targets = append(f.Targets, FileTarget{Name: rt.Name, Priority: rt.Priority, Enabled: rt.Enabled, Options: opts})
	}
	ctxlog.FromContext(ctx).Debug("TOML config decoded.", "path", path, "targets", len(f.Targets))
	return f, nil
}

func toCtyOptions(raw map[string]any) (map[string]cty.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	opts := make(map[string]cty.Value, len(raw))
	for name, v := range raw {
		ty, err := gocty.ImpliedType(v)
		if err != nil {
			return nil, fmt.Errorf("option %s: %w", name, err)
		}
		cv, err := gocty.ToCtyValue(v, ty)
		if err != nil {
			return nil, fmt.Errorf("option %s: %w", name, err)
		}
		opts[name] = cv
	}
	return opts, nil
}
