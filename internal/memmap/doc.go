// Package memmap keeps the context-wide ledgers of in-flight memory maps and
// accessors. Every entry is owned by the call that opened it until the
// matching close; closing an id twice fails instead of freeing twice.
package memmap
