package config

import "context"

// Loader decodes one configuration file format.
type Loader interface {
	// Extension is the file suffix the loader handles, such as ".hcl".
	Extension() string
	// Load decodes the file at path.
	Load(ctx context.Context, path string) (*File, error)
}
