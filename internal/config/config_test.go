package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFiles(t *testing.T) {
	t.Parallel()

	cfg, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing"))

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_HCL(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	path := writeFile(t, dir, "runtime.hcl", `
runtime {
  workers     = 2
  queue_depth = 8
  perf        = true
  kernel_modules = ["vxgrid.ext"]
}

target "khronos.device" {
  priority  = 1
  transfers = 3
}

target "khronos.c_model" {
  priority = 2
  enabled  = false
}
`)

	// --- Act ---
	cfg, err := Load(context.Background(), path)

	// --- Assert ---
	require.NoError(t, err)
	want := &Runtime{
		Workers:       2,
		QueueDepth:    8,
		MaxReferences: 4096,
		MaxKernels:    64,
		MaxMaps:       128,
		MaxAccessors:  128,
		Perf:          true,
		Targets: []Target{
			{Name: "khronos.device", Priority: 1, Enabled: true, Options: map[string]cty.Value{"transfers": cty.NumberIntVal(3)}},
			{Name: "khronos.c_model", Priority: 2, Enabled: false},
		},
		KernelModules: []string{"vxgrid.ext"},
	}
	if diff := cmp.Diff(want, cfg, cmp.Comparer(func(a, b cty.Value) bool { return a.RawEquals(b) })); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, cfg.EnabledTargets(), 1)
}

func TestLoad_TOML(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	path := writeFile(t, dir, "runtime.toml", `
[runtime]
workers = 6
max_maps = 4
kernel_modules = ["vxgrid.ext", "vxgrid.ext"]

[[target]]
name = "khronos.device"

[target.options]
transfers = 2
`)

	// --- Act ---
	cfg, err := Load(context.Background(), path)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, 4, cfg.MaxMaps)
	assert.Equal(t, 16, cfg.QueueDepth, "unset keys keep their default")
	require.Len(t, cfg.Targets, 1)
	assert.Equal(t, "khronos.device", cfg.Targets[0].Name)
	assert.Equal(t, 1, cfg.Targets[0].Priority)
	assert.True(t, cfg.Targets[0].Options["transfers"].RawEquals(cty.NumberIntVal(2)))
	assert.Equal(t, []string{"vxgrid.ext"}, cfg.KernelModules, "repeated modules load once")
}

func TestLoad_DirectoryMergesInPathOrder(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	writeFile(t, dir, "a.hcl", `
runtime {
  workers = 2
}
target "khronos.c_model" {
  priority = 1
}
`)
	writeFile(t, dir, "b.toml", `
[runtime]
workers = 3

[[target]]
name = "khronos.device"
priority = 5
`)
	writeFile(t, dir, "nested/c.hcl", `
target "khronos.c_model" {
  priority = 9
}
`)
	writeFile(t, dir, "notes.txt", "ignored")

	// --- Act ---
	cfg, err := Load(context.Background(), dir)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
	got := map[string]int{}
	for _, tg := range cfg.Targets {
		got[tg.Name] = tg.Priority
	}
	assert.Equal(t, map[string]int{"khronos.c_model": 9, "khronos.device": 5}, got)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{name: "hcl syntax", file: "bad.hcl", content: "runtime {", want: "failed to parse HCL file"},
		{name: "hcl unknown attribute", file: "bad.hcl", content: "runtime {\n  threads = 2\n}\n", want: "failed to decode HCL file"},
		{name: "hcl non-constant option", file: "bad.hcl", content: "target \"x\" {\n  transfers = var.n\n}\n", want: "option transfers"},
		{name: "toml unknown key", file: "bad.toml", content: "[runtime]\nthreads = 2\n", want: "unknown keys"},
		{name: "zero workers", file: "zero.hcl", content: "runtime {\n  workers = 0\n}\n", want: "workers must be positive"},
		{name: "all disabled", file: "off.hcl", content: "target \"khronos.c_model\" {\n  enabled = false\n}\n", want: "every configured target is disabled"},
		{name: "unsupported file", file: "conf.yaml", content: "a: 1", want: "unsupported config file"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := writeFile(t, t.TempDir(), tc.file, tc.content)

			_, err := Load(context.Background(), path)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Targets = append(cfg.Targets, Target{Name: DefaultTarget, Priority: 2, Enabled: true})
	assert.ErrorContains(t, cfg.Validate(), "declared twice")

	cfg = Default()
	cfg.Targets[0].Priority = 0
	assert.ErrorContains(t, cfg.Validate(), "priority must be positive")

	cfg = Default()
	cfg.Targets = nil
	assert.ErrorContains(t, cfg.Validate(), "no targets configured")

	cfg = Default()
	cfg.KernelModules = []string{" "}
	assert.ErrorContains(t, cfg.Validate(), "kernel module with empty name")

	assert.NoError(t, Default().Validate())
}
