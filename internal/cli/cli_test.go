package cli

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/vxgrid/internal/app"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want *app.Config
	}{
		{
			name: "defaults",
			want: &app.Config{LogFormat: "text", LogLevel: "info"},
		},
		{
			name: "flags and positional paths",
			args: []string{"-config", "a.hcl", "-config", "conf.d", "-workers", "8", "-log-level", "DEBUG", "-log-format", "json", "-selftest", "b.toml"},
			want: &app.Config{
				ConfigPaths: []string{"a.hcl", "conf.d", "b.toml"},
				LogFormat:   "json",
				LogLevel:    "debug",
				Workers:     8,
				SelfTest:    true,
			},
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, exit, err := Parse(tc.args, &bytes.Buffer{})

			require.NoError(t, err)
			assert.False(t, exit)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{
		{"-log-format", "xml"},
		{"-log-level", "loud"},
		{"-workers", "-1"},
		{"-unknown"},
	} {
		_, exit, err := Parse(args, &bytes.Buffer{})

		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr, "%v", args)
		assert.Equal(t, 2, exitErr.Code)
		assert.False(t, exit)
	}
}

func TestParse_Help(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, exit, err := Parse([]string{"-h"}, out)

	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}
