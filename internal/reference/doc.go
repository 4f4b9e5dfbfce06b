// Package reference implements the lifetime record embedded by every runtime
// object: a type tag, a validity magic, external and internal counts, the
// owning context, a non-owning scope back-reference, and a per-object lock.
//
// Objects register in a context-wide Table when created. When both counts
// reach zero the object is removed from the table and its destructor runs.
package reference
