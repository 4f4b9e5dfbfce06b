package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/fsutil"
)

// Loaders are the supported file formats.
var Loaders = []Loader{HCLLoader{}, TOMLLoader{}}

// Load applies every configuration file found under paths to the defaults
// and validates the result. A path may be a file or a directory; paths that
// do not exist are skipped.
func Load(ctx context.Context, paths ...string) (*Runtime, error) {
	logger := ctxlog.FromContext(ctx)
	files, err := discover(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered config files.", "count", len(files))

	cfg := Default()
	replaceTargets := true
	for _, path := range files {
		loader := loaderFor(path)
		f, err := loader.Load(ctx, path)
		if err != nil {
			return nil, err
		}
		cfg.apply(f, replaceTargets)
		if len(f.Targets) > 0 {
			replaceTargets = false
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loaderFor(path string) Loader {
	for _, l := range Loaders {
		if strings.HasSuffix(path, l.Extension()) {
			return l
		}
	}
	return nil
}

// discover expands directories into their config files, sorted, and keeps
// files with a known extension.
func discover(paths []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, dup := seen[p]; !dup && loaderFor(p) != nil {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			if loaderFor(path) == nil {
				return nil, fmt.Errorf("unsupported config file %s", path)
			}
			add(path)
			continue
		}
		exts := make([]string, 0, len(Loaders))
		for _, l := range Loaders {
			exts = append(exts, l.Extension())
		}
		found, err := fsutil.FindFilesByExtension(path, exts...)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", path, err)
		}
		for _, p := range found {
			add(p)
		}
	}
	return out, nil
}
