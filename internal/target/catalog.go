package target

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory creates a fresh Module instance for one context from its
// configured options.
type Factory func(opts Options) (Module, error)

// Catalog maps target names to module factories, and kernel module names
// to kernel module factories.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
	kernels   map[string]KernelModuleFactory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		factories: make(map[string]Factory),
		kernels:   make(map[string]KernelModuleFactory),
	}
}

// Register adds a module factory. Registering a name twice is a programming
// error and panics.
func (c *Catalog) Register(name string, f Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.factories[name]; exists {
		panic(fmt.Sprintf("target module with name '%s' already registered", name))
	}
	slog.Debug("Registering target module.", "name", name)
	c.factories[name] = f
}

// Lookup returns the factory registered under name.
func (c *Catalog) Lookup(name string) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.factories[name]
	return f, ok
}

// Names returns the registered names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.factories))
	for n := range c.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RegisterKernels adds a kernel module factory. Like Register, a duplicate
// name panics.
func (c *Catalog) RegisterKernels(name string, f KernelModuleFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.kernels[name]; exists {
		panic(fmt.Sprintf("kernel module with name '%s' already registered", name))
	}
	slog.Debug("Registering kernel module.", "name", name)
	c.kernels[name] = f
}

// LookupKernels returns the kernel module factory registered under name.
func (c *Catalog) LookupKernels(name string) (KernelModuleFactory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.kernels[name]
	return f, ok
}

// KernelModuleNames returns the registered kernel module names, sorted.
func (c *Catalog) KernelModuleNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.kernels))
	for n := range c.kernels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
