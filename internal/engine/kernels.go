package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/vxgrid/internal/ctxlog"
	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
	"github.com/specialistvlad/vxgrid/internal/target"
)

type loadedModule struct {
	module target.KernelModule
	holds  int
}

// LoadKernels publishes the kernel module called name from the catalog.
// Loading a module that is already loaded only counts another hold.
func (c *Context) LoadKernels(ctx context.Context, name string) error {
	if c.tearing.Load() {
		return status.Errorf(status.InvalidReference, "load kernels into a context being released")
	}
	c.modMu.Lock()
	defer c.modMu.Unlock()
	if !c.ValidAs(reference.TypeContext) {
		return status.Errorf(status.InvalidReference, "load kernels into destroyed context")
	}
	return c.loadModule(ctx, name)
}

// loadModule is LoadKernels for a caller holding modMu.
func (c *Context) loadModule(ctx context.Context, name string) error {
	logger := ctxlog.FromContext(ctx).With("module", name)
	if m, ok := c.modules[name]; ok {
		m.holds++
		logger.Debug("Kernel module already loaded.", "holds", m.holds)
		return nil
	}
	factory, ok := c.catalog.LookupKernels(name)
	if !ok {
		return status.Errorf(status.Failure, "no kernel module %q (known %v)", name, c.catalog.KernelModuleNames())
	}
	module := factory()
	if err := module.Publish(ctx, c); err != nil {
		if uerr := module.Unpublish(ctx, c); uerr != nil {
			logger.Warn("Kernel module cleanup after failed publish.", "error", uerr)
		}
		return fmt.Errorf("kernel module %s: publish: %w", name, err)
	}
	c.modules[name] = &loadedModule{module: module, holds: 1}
	logger.Info("Kernel module loaded.")
	return nil
}

// UnloadKernels drops one hold on the module called name and unpublishes it
// with the last one.
func (c *Context) UnloadKernels(ctx context.Context, name string) error {
	// Teardown unloads every module itself before it frees the nodes whose
	// deinitializers land here.
	if c.tearing.Load() {
		return nil
	}
	c.modMu.Lock()
	defer c.modMu.Unlock()
	if !c.ValidAs(reference.TypeContext) {
		return status.Errorf(status.InvalidReference, "unload kernels from destroyed context")
	}
	m, ok := c.modules[name]
	if !ok {
		return status.Errorf(status.Failure, "kernel module %q is not loaded", name)
	}
	m.holds--
	if m.holds > 0 {
		return nil
	}
	delete(c.modules, name)
	if err := m.module.Unpublish(ctx, c); err != nil {
		return fmt.Errorf("kernel module %s: unpublish: %w", name, err)
	}
	ctxlog.FromContext(ctx).Info("Kernel module unloaded.", "module", name)
	return nil
}

func (c *Context) loadInitialModules(ctx context.Context, names []string) error {
	c.modMu.Lock()
	defer c.modMu.Unlock()
	for _, name := range names {
		if err := c.loadModule(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// KernelModules returns the names of the loaded kernel modules, sorted.
func (c *Context) KernelModules() []string {
	c.modMu.Lock()
	defer c.modMu.Unlock()
	names := make([]string, 0, len(c.modules))
	for n := range c.modules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// unloadModules unpublishes every module still loaded.
func (c *Context) unloadModules(ctx context.Context) {
	c.modMu.Lock()
	defer c.modMu.Unlock()
	logger := ctxlog.FromContext(ctx)
	names := make([]string, 0, len(c.modules))
	for n := range c.modules {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		m := c.modules[n]
		logger.Warn("Kernel module still loaded at teardown.", "module", n, "holds", m.holds)
		if err := m.module.Unpublish(ctx, c); err != nil {
			logger.Warn("Kernel module failed to unpublish.", "module", n, "error", err)
		}
	}
	c.modules = nil
}

// AddUserKernel registers def as a user kernel on the named target. An empty
// name or a wildcard alias picks the first loaded target. The kernel starts
// disabled until FinalizeKernel, and the caller owns one external reference
// that RemoveKernel gives back.
func (c *Context) AddUserKernel(ctx context.Context, targetName string, def graph.KernelDef) (*graph.Kernel, error) {
	if !c.ValidAs(reference.TypeContext) {
		return nil, status.Errorf(status.InvalidReference, "add kernel to destroyed context")
	}
	var t *target.Target
	for _, cand := range c.Priority() {
		if !cand.Enabled() {
			continue
		}
		if targetName == "" || target.IsAlias(targetName) || target.MatchName(cand.Name(), targetName) {
			t = cand
			break
		}
	}
	if t == nil {
		return nil, status.Errorf(status.NoResources, "no target named %q exists", targetName)
	}
	def.User = true
	k, err := t.AddKernel(def)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("User kernel added.", "kernel", k.Name(), "enum", k.Enum(), "target", t.Name())
	return c.hand(k, t), nil
}

// FinalizeKernel enables a kernel added by AddUserKernel.
func (c *Context) FinalizeKernel(k *graph.Kernel) error {
	if k == nil {
		return status.Errorf(status.InvalidReference, "finalize of nil kernel")
	}
	return k.Finalize()
}

// RemoveKernel takes a user kernel off its target and releases the
// reference AddUserKernel handed out.
func (c *Context) RemoveKernel(ctx context.Context, k *graph.Kernel) error {
	if k == nil || !k.ValidAs(reference.TypeKernel) {
		return status.Errorf(status.InvalidReference, "remove of invalid kernel")
	}
	if !k.IsUser() {
		return status.Errorf(status.InvalidParameters, "%s is not a user kernel", k.Name())
	}
	var owner *target.Target
	for _, t := range c.Targets() {
		if t.Index() == k.Affinity() {
			owner = t
			break
		}
	}
	if owner == nil {
		return status.Errorf(status.InvalidParameters, "%s has no target", k.Name())
	}
	if err := owner.RemoveKernel(k); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("User kernel removed.", "kernel", k.Name(), "target", owner.Name())
	return reference.Release(k, reference.External)
}
