package engine

import (
	"github.com/specialistvlad/vxgrid/internal/kernels/ext"
	"github.com/specialistvlad/vxgrid/internal/target"
	"github.com/specialistvlad/vxgrid/internal/targets/cmodel"
	"github.com/specialistvlad/vxgrid/internal/targets/device"
)

// Defaults applied when an option is not given.
const (
	DefaultWorkers       = 4
	DefaultQueueDepth    = 16
	DefaultMaxReferences = 4096
	DefaultMaxKernels    = target.DefaultKernelCapacity
	DefaultMaxMaps       = 128
	DefaultMaxAccessors  = 128
)

// TargetSpec names one target to load. Lower Priority values are tried first
// during kernel lookup; ties keep configuration order.
type TargetSpec struct {
	Name     string
	Priority int
	Enabled  bool
	Options  target.Options
}

// Option configures a Context.
type Option func(*settings)

type settings struct {
	workers       int
	queueDepth    int
	maxReferences int
	maxKernels    int
	maxMaps       int
	maxAccessors  int
	perf          bool
	catalog       *target.Catalog
	targets       []TargetSpec
	kernelModules []string
}

func defaults() settings {
	return settings{
		workers:       DefaultWorkers,
		queueDepth:    DefaultQueueDepth,
		maxReferences: DefaultMaxReferences,
		maxKernels:    DefaultMaxKernels,
		maxMaps:       DefaultMaxMaps,
		maxAccessors:  DefaultMaxAccessors,
		targets:       []TargetSpec{{Name: cmodel.Name, Priority: 1, Enabled: true}},
	}
}

func WithWorkers(n int) Option       { return func(s *settings) { s.workers = n } }
func WithQueueDepth(n int) Option    { return func(s *settings) { s.queueDepth = n } }
func WithMaxReferences(n int) Option { return func(s *settings) { s.maxReferences = n } }
func WithMaxKernels(n int) Option    { return func(s *settings) { s.maxKernels = n } }
func WithMaxMaps(n int) Option       { return func(s *settings) { s.maxMaps = n } }
func WithMaxAccessors(n int) Option  { return func(s *settings) { s.maxAccessors = n } }

// WithPerf turns on perf capture for every node and graph.
func WithPerf(on bool) Option { return func(s *settings) { s.perf = on } }

// WithCatalog replaces the module catalog targets are instantiated from.
func WithCatalog(c *target.Catalog) Option { return func(s *settings) { s.catalog = c } }

// WithTargets replaces the list of targets to load.
func WithTargets(specs ...TargetSpec) Option {
	return func(s *settings) { s.targets = append([]TargetSpec(nil), specs...) }
}

// WithKernelModules names kernel modules to load once the targets are up.
func WithKernelModules(names ...string) Option {
	return func(s *settings) { s.kernelModules = append([]string(nil), names...) }
}

// DefaultCatalog returns a catalog holding the built-in target and kernel
// modules.
func DefaultCatalog() *target.Catalog {
	c := target.NewCatalog()
	cmodel.Register(c)
	device.Register(c)
	ext.Register(c)
	return c
}
