package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFilesByExtension(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	root := t.TempDir()
	for _, name := range []string{"b.toml", "a.hcl", "notes.txt", "sub/c.hcl", "sub/deeper/d.toml"} {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o600))
	}

	// --- Act ---
	got, err := FindFilesByExtension(root, ".hcl", ".toml")

	// --- Assert ---
	require.NoError(t, err)
	want := []string{
		filepath.Join(root, "a.hcl"),
		filepath.Join(root, "b.toml"),
		filepath.Join(root, "sub", "c.hcl"),
		filepath.Join(root, "sub", "deeper", "d.toml"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FindFilesByExtension() mismatch (-want +got):\n%s", diff)
	}
}

func TestFindFilesByExtension_MissingRoot(t *testing.T) {
	t.Parallel()

	_, err := FindFilesByExtension(filepath.Join(t.TempDir(), "nope"), ".hcl")

	assert.Error(t, err)
}
