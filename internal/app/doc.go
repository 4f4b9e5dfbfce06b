// Package app wires the runtime for the command-line host: it builds the
// logger, loads the runtime configuration, creates the engine context and
// reports what was loaded. It is independent of flag parsing.
package app
