package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
)

// HCLLoader reads .hcl files.
type HCLLoader struct{}

// fileRoot decodes the top-level blocks of one file.
type fileRoot struct {
	Runtime *runtimeBlock  `hcl:"runtime,block"`
	Targets []*targetBlock `hcl:"target,block"`
}

type runtimeBlock struct {
	Workers       *int     `hcl:"workers,optional"`
	QueueDepth    *int     `hcl:"queue_depth,optional"`
	MaxReferences *int     `hcl:"max_references,optional"`
	MaxKernels    *int     `hcl:"max_kernels,optional"`
	MaxMaps       *int     `hcl:"max_maps,optional"`
	MaxAccessors  *int     `hcl:"max_accessors,optional"`
	Perf          *bool    `hcl:"perf,optional"`
	KernelModules []string `hcl:"kernel_modules,optional"`
}

type targetBlock struct {
	Name     string   `hcl:"name,label"`
	Priority *int     `hcl:"priority,optional"`
	Enabled  *bool    `hcl:"enabled,optional"`
	Options  hcl.Body `hcl:",remain"`
}

func (HCLLoader) Extension() string { return ".hcl" }

func (HCLLoader) Load(ctx context.Context, path string) (*File, error) {
	logger := ctxlog.FromContext(ctx)
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	f := &File{Path: path}
	if rb := root.Runtime; rb != nil {
		f.Workers, f.QueueDepth = rb.Workers, rb.QueueDepth
		f.MaxReferences, f.MaxKernels = rb.MaxReferences, rb.MaxKernels
		f.MaxMaps, f.MaxAccessors = rb.MaxMaps, rb.MaxAccessors
		f.Perf = rb.Perf
		f.KernelModules = rb.KernelModules
	}
	for _, tb := range root.Targets {
		opts, err := decodeOptions(tb.Options)
		if err != nil {
			return nil, fmt.Errorf("target %q in %s: %w", tb.Name, path, err)
		}
		f.Targets = append(f.Targets, FileTarget{Name: tb.Name, Priority: tb.Priority, Enabled: tb.Enabled, Options: opts})
	}
	logger.Debug("HCL config decoded.", "path", path, "targets", len(f.Targets))
	return f, nil
}

// decodeOptions evaluates the remaining attributes of a target block. Option
// values must be constants.
func decodeOptions(body hcl.Body) (map[string]cty.Value, error) {
	if body == nil {
		return nil, nil
	}
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	opts := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("option %s: %w", name, diags)
		}
		opts[name] = v
	}
	return opts, nil
}
