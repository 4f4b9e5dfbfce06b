// Package target implements execution targets: named backends that own a
// table of kernel implementations and run nodes bound to them.
//
// A target's behavior comes from a Module. Modules are registered by name in
// a Catalog; the context loads the configured ones at start-up, calling
// Module.Init, which adds the module's static kernel table via AddKernel.
package target
