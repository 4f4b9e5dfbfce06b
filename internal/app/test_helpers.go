package app

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/vxgrid/internal/target"
	"github.com/specialistvlad/vxgrid/internal/testutil"
)

// SetupAppTest creates an App logging at debug level into a buffer and
// closes it when the test ends.
func SetupAppTest(t *testing.T, cfg *Config, targets ...func(*target.Catalog)) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp, err := NewApp(logBuffer, cfg, targets...)
	require.NoError(t, err)

	t.Cleanup(func() {
		if testApp.Engine().Valid() {
			require.NoError(t, testApp.Close(context.Background()))
		}
		if os.Getenv("VXGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
