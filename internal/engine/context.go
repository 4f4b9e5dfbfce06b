package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/memmap"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
	"github.com/specialistvlad/vxgrid/internal/stream"
	"github.com/specialistvlad/vxgrid/internal/target"
	"github.com/specialistvlad/vxgrid/internal/workerpool"
)

// lifecycle serializes singleton creation and destruction, and with them
// target loading and unloading.
var (
	lifecycle sync.Mutex
	single    *Context
)

// Context owns every object created through it.
type Context struct {
	reference.Reference

	id        uuid.UUID
	objects   *reference.Table
	maps      *memmap.Maps
	accessors *memmap.Accessors
	perf      atomic.Bool

	borderMu        sync.Mutex
	immediateBorder graph.Border

	tmu      sync.RWMutex
	targets  []*target.Target
	priority []int

	errors map[status.Status]*ErrorObject
	pool   *workerpool.Pool
	stream *stream.Streamer

	catalog *target.Catalog
	// modMu serializes kernel module loading and unloading. It is separate
	// from lifecycle because composite kernels load modules from the stream
	// goroutine, which teardown joins while holding lifecycle.
	modMu   sync.Mutex
	modules map[string]*loadedModule
	tearing atomic.Bool
}

// Create returns the process-wide context, initializing it on first use.
// Every successful Create must be paired with a Release. Options only apply
// to the call that initializes.
func Create(ctx context.Context, opts ...Option) (*Context, error) {
	lifecycle.Lock()
	defer lifecycle.Unlock()
	if single != nil && single.Valid() {
		single.Increment(reference.External)
		ctxlog.FromContext(ctx).Debug("Reusing context.", "context", single.id.String())
		return single, nil
	}
	c, err := newContext(ctx, opts...)
	if err != nil {
		return nil, err
	}
	single = c
	return c, nil
}

// New builds a context that is not shared through Create.
func New(ctx context.Context, opts ...Option) (*Context, error) {
	lifecycle.Lock()
	defer lifecycle.Unlock()
	return newContext(ctx, opts...)
}

func newContext(ctx context.Context, opts ...Option) (*Context, error) {
	s := defaults()
	for _, opt := range opts {
		opt(&s)
	}
	if s.catalog == nil {
		s.catalog = DefaultCatalog()
	}
	for name, n := range map[string]int{
		"workers":        s.workers,
		"queue depth":    s.queueDepth,
		"max references": s.maxReferences,
		"max kernels":    s.maxKernels,
		"max maps":       s.maxMaps,
		"max accessors":  s.maxAccessors,
	} {
		if n <= 0 {
			return nil, status.Errorf(status.InvalidValue, "%s must be positive, got %d", name, n)
		}
	}

	c := &Context{
		id:      uuid.New(),
		objects: reference.NewTable(s.maxReferences),
		errors:  make(map[status.Status]*ErrorObject),
		catalog: s.catalog,
		modules: make(map[string]*loadedModule),
	}
	c.perf.Store(s.perf)
	c.Init(reference.TypeContext, nil, nil)
	c.Increment(reference.External)
	c.SetName(c.id.String())

	logger := ctxlog.FromContext(ctx).With("context", c.id.String())
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Creating context.", "targets", len(s.targets), "workers", s.workers)

	if err := c.createErrorObjects(); err != nil {
		c.teardown(ctx)
		return nil, err
	}
	c.loadTargets(ctx, s)
	if len(c.priority) == 0 {
		c.teardown(ctx)
		return nil, status.Errorf(status.NoResources, "no targets loaded")
	}

	var err error
	if c.pool, err = workerpool.New(ctx, s.workers, s.queueDepth); err != nil {
		c.teardown(ctx)
		return nil, err
	}
	if c.stream, err = stream.Start(ctx, s.queueDepth); err != nil {
		c.teardown(ctx)
		return nil, err
	}
	c.accessors = memmap.NewAccessors(s.maxAccessors)
	c.maps = memmap.NewMaps(s.maxMaps)
	if err := c.loadInitialModules(ctx, s.kernelModules); err != nil {
		c.teardown(ctx)
		return nil, err
	}

	logger.Info("Context created.", "targets", len(c.priority), "references", c.objects.Len())
	return c, nil
}

// loadTargets instantiates and initializes every enabled target. A target that
// fails to initialize stays in the target array, unloaded, and is left out
// of the priority list.
func (c *Context) loadTargets(ctx context.Context, s settings) {
	logger := ctxlog.FromContext(ctx)
	for _, ts := range s.targets {
		if !ts.Enabled {
			logger.Debug("Target disabled by configuration.", "target", ts.Name)
			continue
		}
		factory, ok := s.catalog.Lookup(ts.Name)
		if !ok {
			logger.Warn("Unknown target.", "target", ts.Name, "known", s.catalog.Names())
			continue
		}
		module, err := factory(ts.Options)
		if err != nil {
			logger.Warn("Target module rejected its options.", "target", ts.Name, "error", err)
			continue
		}

		c.tmu.Lock()
		index := len(c.targets)
		c.tmu.Unlock()
		t, err := target.New(c, module, index, ts.Priority,
			target.WithKernelCapacity(s.maxKernels),
			target.WithEnumGuard(c.enumGuard))
		if err != nil {
			logger.Warn("Target could not be registered.", "target", ts.Name, "error", err)
			continue
		}
		loadErr := t.Load(ctx)
		if loadErr != nil {
			if err := t.Unload(ctx); err != nil {
				logger.Warn("Target unload after failed init.", "target", ts.Name, "error", err)
			}
		}

		c.tmu.Lock()
		c.targets = append(c.targets, t)
		if loadErr == nil {
			c.priority = append(c.priority, index)
		}
		c.tmu.Unlock()
	}

	c.tmu.Lock()
	sort.SliceStable(c.priority, func(i, j int) bool {
		return c.targets[c.priority[i]].Priority() < c.targets[c.priority[j]].Priority()
	})
	for rank, index := range c.priority {
		t := c.targets[index]
		logger.Info("Target ready.", "rank", rank, "target", t.Name(), "priority", t.Priority(), "kernels", t.NumKernels())
	}
	c.tmu.Unlock()
}

// enumGuard rejects a kernel enumeration already held by a loaded target,
// including user kernels not yet finalized.
func (c *Context) enumGuard(enum int) error {
	c.tmu.RLock()
	defer c.tmu.RUnlock()
	for _, t := range c.targets {
		if t.HasEnum(enum) {
			return status.Errorf(status.InvalidParameters, "kernel enum %#x already registered by target %s", enum, t.Name())
		}
	}
	return nil
}

// Release drops one external hold. The last Release tears the context down.
func (c *Context) Release(ctx context.Context) error {
	lifecycle.Lock()
	defer lifecycle.Unlock()
	if !c.ValidAs(reference.TypeContext) {
		return status.Errorf(status.InvalidReference, "release of destroyed context")
	}
	total, err := c.Decrement(reference.External)
	if err != nil {
		return err
	}
	if total > 0 {
		return nil
	}
	c.teardown(ctxlog.WithLogger(ctx, ctxlog.FromContext(ctx).With("context", c.id.String())))
	return nil
}

// teardown stops the background loops and destroys everything the context
// still holds. It runs to completion whatever state init reached.
func (c *Context) teardown(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Tearing down context.")
	c.tearing.Store(true)

	if c.stream != nil {
		c.stream.Close()
	}
	if c.pool != nil {
		c.pool.Close()
	}
	c.unloadModules(ctx)

	for _, s := range status.All() {
		if e, ok := c.errors[s]; ok {
			_ = reference.Release(e, reference.Internal)
		}
	}
	c.errors = nil
	c.drainStale(ctx, true)

	c.tmu.Lock()
	targets := c.targets
	c.targets, c.priority = nil, nil
	c.tmu.Unlock()
	for _, t := range targets {
		if err := t.Unload(ctx); err != nil {
			logger.Warn("Target failed to deinitialize.", "target", t.Name(), "error", err)
		}
		_ = t.Release()
	}
	c.drainStale(ctx, false)

	if c.accessors != nil {
		c.accessors.ForceClose(ctx)
	}
	if c.maps != nil {
		c.maps.ForceClose(ctx)
	}

	reference.ForceRelease(c)
	if single == c {
		single = nil
	}
	logger.Info("Context released.")
}

// drainStale force-releases leftover objects. With externalOnly set it takes
// only objects the caller still holds; otherwise everything left.
func (c *Context) drainStale(ctx context.Context, externalOnly bool) {
	logger := ctxlog.FromContext(ctx)
	for _, obj := range c.objects.Objects() {
		r := obj.Base()
		if !r.Valid() {
			continue
		}
		external, internal := r.Counts()
		if externalOnly && external == 0 {
			continue
		}
		logger.Warn("Stale reference.", "object", r.String(), "external", external, "internal", internal)
		reference.ForceRelease(obj)
	}
}

// ID returns the context's instance id.
func (c *Context) ID() uuid.UUID { return c.id }

// Objects, Maps, Accessors and PerfEnabled make the context a graph.Runtime.
func (c *Context) Objects() *reference.Table      { return c.objects }
func (c *Context) Maps() *memmap.Maps             { return c.maps }
func (c *Context) Accessors() *memmap.Accessors   { return c.accessors }
func (c *Context) PerfEnabled() bool              { return c.perf.Load() }
func (c *Context) References() []reference.Object { return c.objects.Objects() }

// Backend returns the loaded target at index affinity.
func (c *Context) Backend(affinity int) (graph.Backend, error) {
	c.tmu.RLock()
	defer c.tmu.RUnlock()
	if affinity < 0 || affinity >= len(c.targets) {
		return nil, status.Errorf(status.InvalidParameters, "no target at index %d", affinity)
	}
	t := c.targets[affinity]
	if !t.Enabled() {
		return nil, status.Errorf(status.NotSupported, "target %s is disabled", t.Name())
	}
	return t, nil
}

// Targets returns every registered target in index order, including ones
// that failed to load.
func (c *Context) Targets() []*target.Target {
	c.tmu.RLock()
	defer c.tmu.RUnlock()
	return append([]*target.Target(nil), c.targets...)
}

// Priority returns the loaded targets in lookup order.
func (c *Context) Priority() []*target.Target {
	c.tmu.RLock()
	defer c.tmu.RUnlock()
	out := make([]*target.Target, 0, len(c.priority))
	for _, i := range c.priority {
		out = append(out, c.targets[i])
	}
	return out
}

func (c *Context) String() string {
	return fmt.Sprintf("context %s", c.id)
}
