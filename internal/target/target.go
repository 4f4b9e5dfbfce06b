package target

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/slots"
	"github.com/specialistvlad/vxgrid/internal/status"
)

// DefaultKernelCapacity is the number of kernel slots a target gets unless
// WithKernelCapacity says otherwise.
const DefaultKernelCapacity = 64

// Owner is the part of a context a target needs to register objects.
type Owner interface {
	Base() *reference.Reference
	Objects() *reference.Table
}

// Option configures a Target.
type Option func(*Target)

// WithKernelCapacity sets the number of kernel slots.
func WithKernelCapacity(n int) Option {
	return func(t *Target) { t.capacity = n }
}

// WithEnumGuard installs a check run before every AddKernel. The context uses
// it to keep kernel enumerations unique across targets.
func WithEnumGuard(guard func(enum int) error) Option {
	return func(t *Target) { t.guard = guard }
}

// Target is one execution backend and its kernel table.
type Target struct {
	reference.Reference

	owner    Owner
	module   Module
	name     string
	index    int
	priority int
	capacity int
	guard    func(enum int) error

	enabled atomic.Bool
	loaded  atomic.Bool

	// addMu serializes AddKernel so the duplicate check and insert agree.
	addMu   sync.Mutex
	kernels *slots.Table[*graph.Kernel]
}

// New registers a target for module at position index of the owner's target
// array. The target starts disabled; Load enables it.
func New(owner Owner, module Module, index, priority int, opts ...Option) (*Target, error) {
	t := &Target{
		owner:    owner,
		module:   module,
		name:     module.Name(),
		index:    index,
		priority: priority,
		capacity: DefaultKernelCapacity,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.capacity <= 0 {
		return nil, status.Errorf(status.InvalidValue, "target %s: kernel capacity %d", t.name, t.capacity)
	}
	t.kernels = slots.New[*graph.Kernel](t.capacity)
	if err := owner.Objects().Add(t, reference.TypeTarget, owner.Base(), nil, reference.Internal); err != nil {
		return nil, err
	}
	t.SetName(t.name)
	return t, nil
}

func (t *Target) Name() string      { return t.name }
func (t *Target) Index() int        { return t.index }
func (t *Target) Priority() int     { return t.priority }
func (t *Target) Module() Module    { return t.module }
func (t *Target) Enabled() bool     { return t.enabled.Load() }
func (t *Target) Loaded() bool      { return t.loaded.Load() }
func (t *Target) NumKernels() int   { return t.kernels.Len() }
func (t *Target) SetEnabled(b bool) { t.enabled.Store(b) }

// Load initializes the module. On failure every kernel it added is removed
// and the target stays disabled.
func (t *Target) Load(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("target", t.name)
	if err := t.module.Init(ctx, t); err != nil {
		logger.Warn("Target failed to initialize.", "error", err)
		t.dropKernels()
		t.enabled.Store(false)
		return fmt.Errorf("target %s: init: %w", t.name, err)
	}
	t.loaded.Store(true)
	t.enabled.Store(true)
	logger.Debug("Target loaded.", "kernels", t.NumKernels(), "priority", t.priority)
	return nil
}

// Unload deinitializes the module, if it was loaded, and drops all kernels.
func (t *Target) Unload(ctx context.Context) error {
	t.enabled.Store(false)
	var err error
	if t.loaded.CompareAndSwap(true, false) {
		if derr := t.module.Deinit(ctx, t); derr != nil {
			err = fmt.Errorf("target %s: deinit: %w", t.name, derr)
		}
	}
	t.dropKernels()
	return err
}

// Release drops the owner's hold on the target object.
func (t *Target) Release() error {
	return reference.Release(t, reference.Internal)
}

// AddKernel reserves the first free kernel slot for def.
func (t *Target) AddKernel(def graph.KernelDef) (*graph.Kernel, error) {
	k, err := graph.NewKernel(def)
	if err != nil {
		return nil, err
	}

	t.addMu.Lock()
	defer t.addMu.Unlock()
	if _, dup := t.kernelByEnum(def.Enum); dup {
		return nil, status.Errorf(status.InvalidParameters, "target %s already has kernel %d", t.name, def.Enum)
	}
	if t.guard != nil {
		if err := t.guard(def.Enum); err != nil {
			return nil, err
		}
	}
	h, err := t.kernels.Insert(k)
	if err != nil {
		return nil, status.Wrap(status.NoResources, err, fmt.Sprintf("target %s kernel table full", t.name))
	}
	if err := t.owner.Objects().Add(k, reference.TypeKernel, t.owner.Base(), &t.Reference, reference.Internal); err != nil {
		_, _ = t.kernels.Remove(h)
		return nil, err
	}
	k.SetName(def.Name)
	k.SetAffinity(t.index)
	return k, nil
}

// Kernels returns the registered kernels in slot order.
func (t *Target) Kernels() []*graph.Kernel {
	var out []*graph.Kernel
	t.kernels.Range(func(_ slots.Handle, k *graph.Kernel) bool {
		out = append(out, k)
		return true
	})
	return out
}

// KernelByEnum finds the enabled kernel registered for enum.
func (t *Target) KernelByEnum(enum int) (*graph.Kernel, bool) {
	k, ok := t.kernelByEnum(enum)
	if !ok || !k.Enabled() {
		return nil, false
	}
	return k, true
}

// HasEnum reports whether any slot, enabled or not, holds enum.
func (t *Target) HasEnum(enum int) bool {
	_, ok := t.kernelByEnum(enum)
	return ok
}

func (t *Target) kernelByEnum(enum int) (*graph.Kernel, bool) {
	var found *graph.Kernel
	t.kernels.Range(func(_ slots.Handle, k *graph.Kernel) bool {
		if k.Enum() == enum {
			found = k
			return false
		}
		return true
	})
	return found, found != nil
}

// Supports finds the kernel called kernelName when targetName names this
// target or is one of the wildcard aliases. Registered names are compared
// without their ":variant" suffix.
func (t *Target) Supports(targetName, kernelName string) (*graph.Kernel, bool) {
	if targetName != t.name && !IsAlias(targetName) {
		return nil, false
	}
	var found *graph.Kernel
	t.kernels.Range(func(_ slots.Handle, k *graph.Kernel) bool {
		if k.Enabled() && k.BaseName() == kernelName {
			found = k
			return false
		}
		return true
	})
	return found, found != nil
}

// Process implements graph.Backend.
func (t *Target) Process(ctx context.Context, nodes []*graph.Node) graph.Action {
	return t.module.Process(ctx, t, nodes)
}

// Verify implements graph.Backend.
func (t *Target) Verify(ctx context.Context, n *graph.Node) error {
	if !t.Enabled() {
		return status.Errorf(status.NotSupported, "target %s is disabled", t.name)
	}
	return t.module.Verify(ctx, t, n)
}

// RemoveKernel frees the slot of user kernel k and drops the target's hold
// on it. Built-in kernels stay until the target unloads.
func (t *Target) RemoveKernel(k *graph.Kernel) error {
	if !k.IsUser() {
		return status.Errorf(status.InvalidParameters, "%s is not a user kernel", k.Name())
	}
	t.addMu.Lock()
	defer t.addMu.Unlock()
	var handle slots.Handle
	found := false
	t.kernels.Range(func(h slots.Handle, cur *graph.Kernel) bool {
		if cur == k {
			handle, found = h, true
			return false
		}
		return true
	})
	if !found {
		return status.Errorf(status.InvalidParameters, "%s is not registered on target %s", k.Name(), t.name)
	}
	if _, err := t.kernels.Remove(handle); err != nil {
		return err
	}
	k.Disable()
	return reference.Release(k, reference.Internal)
}

func (t *Target) dropKernels() {
	t.kernels.Range(func(h slots.Handle, k *graph.Kernel) bool {
		if _, err := t.kernels.Remove(h); err == nil {
			_ = reference.Release(k, reference.Internal)
		}
		return true
	})
}
