// Package status defines the runtime's status taxonomy and the error type
// that carries a status across API boundaries.
package status
