// Package cli parses command-line arguments, validates user input, and
// handles process-level concerns like exit codes. It translates flags into
// the host's app.Config.
package cli
