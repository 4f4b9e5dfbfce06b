package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Runtime is the complete runtime configuration.
type Runtime struct {
	Workers       int
	QueueDepth    int
	MaxReferences int
	MaxKernels    int
	MaxMaps       int
	MaxAccessors  int
	Perf          bool
	Targets       []Target
	KernelModules []string
}

// Target selects a target module to load.
type Target struct {
	Name     string
	Priority int
	Enabled  bool
	Options  map[string]cty.Value
}

// DefaultTarget is the target loaded when no configuration names one.
const DefaultTarget = "khronos.c_model"

// Default returns the built-in configuration.
func Default() *Runtime {
	return &Runtime{
		Workers:       4,
		QueueDepth:    16,
		MaxReferences: 4096,
		MaxKernels:    64,
		MaxMaps:       128,
		MaxAccessors:  128,
		Targets:       []Target{{Name: DefaultTarget, Priority: 1, Enabled: true}},
	}
}

// File is what one configuration file sets. Nil fields are left alone.
type File struct {
	Path          string
	Workers       *int
	QueueDepth    *int
	MaxReferences *int
	MaxKernels    *int
	MaxMaps       *int
	MaxAccessors  *int
	Perf          *bool
	Targets       []FileTarget
	KernelModules []string
}

// FileTarget is one target declaration in a file.
type FileTarget struct {
	Name     string
	Priority *int
	Enabled  *bool
	Options  map[string]cty.Value
}

// apply overlays f onto r. The first file that declares targets replaces
// the default target list; later declarations of the same name update it.
func (r *Runtime) apply(f *File, replaceTargets bool) {
	set := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	set(&r.Workers, f.Workers)
	set(&r.QueueDepth, f.QueueDepth)
	set(&r.MaxReferences, f.MaxReferences)
	set(&r.MaxKernels, f.MaxKernels)
	set(&r.MaxMaps, f.MaxMaps)
	set(&r.MaxAccessors, f.MaxAccessors)
	if f.Perf != nil {
		r.Perf = *f.Perf
	}
	for _, m := range f.KernelModules {
		if !slices.Contains(r.KernelModules, m) {
			r.KernelModules = append(r.KernelModules, m)
		}
	}

	if len(f.Targets) == 0 {
		return
	}
	if replaceTargets {
		r.Targets = nil
	}
	for _, ft := range f.Targets {
		idx := -1
		for i := range r.Targets {
			if r.Targets[i].Name == ft.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			r.Targets = append(r.Targets, Target{Name: ft.Name, Priority: len(r.Targets) + 1, Enabled: true})
			idx = len(r.Targets) - 1
		}
		t := &r.Targets[idx]
		set(&t.Priority, ft.Priority)
		if ft.Enabled != nil {
			t.Enabled = *ft.Enabled
		}
		if len(ft.Options) > 0 {
			if t.Options == nil {
				t.Options = make(map[string]cty.Value, len(ft.Options))
			}
			for k, v := range ft.Options {
				t.Options[k] = v
			}
		}
	}
}

// Validate reports the first invalid setting.
func (r *Runtime) Validate() error {
	limits := []struct {
		name  string
		value int
	}{
		{"workers", r.Workers},
		{"queue_depth", r.QueueDepth},
		{"max_references", r.MaxReferences},
		{"max_kernels", r.MaxKernels},
		{"max_maps", r.MaxMaps},
		{"max_accessors", r.MaxAccessors},
	}
	for _, l := range limits {
		if l.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", l.name, l.value)
		}
	}

	if len(r.Targets) == 0 {
		return fmt.Errorf("no targets configured")
	}
	enabled := 0
	seen := make(map[string]struct{}, len(r.Targets))
	for _, t := range r.Targets {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("target with empty name")
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("target %q declared twice", t.Name)
		}
		seen[t.Name] = struct{}{}
		if t.Priority <= 0 {
			return fmt.Errorf("target %q: priority must be positive, got %d", t.Name, t.Priority)
		}
		if t.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("every configured target is disabled")
	}
	for _, m := range r.KernelModules {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("kernel module with empty name")
		}
	}
	return nil
}

// EnabledTargets returns the enabled targets.
func (r *Runtime) EnabledTargets() []Target {
	var out []Target
	for _, t := range r.Targets {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}
