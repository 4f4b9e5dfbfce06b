// Package engine is the runtime context: it owns the object table, loads the
// configured targets, resolves kernels to targets, and runs graphs through the
// worker pool and the streaming loop.
//
// A process normally holds one context through Create/Release. New builds an
// independent context for hosts and tests that need more than one.
package engine
