package ext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/vxgrid/internal/graph"
	"github.com/specialistvlad/vxgrid/internal/kernels"
	"github.com/specialistvlad/vxgrid/internal/status"
	"github.com/specialistvlad/vxgrid/internal/target"
	"github.com/specialistvlad/vxgrid/internal/targets/cmodel"
)

// recorder is a Publisher that keeps kernels in memory.
type recorder struct {
	failOn  string
	targets []string
	added   []*graph.Kernel
	removed []string
}

func (r *recorder) AddUserKernel(_ context.Context, targetName string, def graph.KernelDef) (*graph.Kernel, error) {
	if def.Name == r.failOn {
		return nil, status.Errorf(status.NoResources, "kernel table full")
	}
	def.User = true
	k, err := graph.NewKernel(def)
	if err != nil {
		return nil, err
	}
	r.targets = append(r.targets, targetName)
	r.added = append(r.added, k)
	return k, nil
}

func (r *recorder) FinalizeKernel(k *graph.Kernel) error { return k.Finalize() }

func (r *recorder) RemoveKernel(_ context.Context, k *graph.Kernel) error {
	r.removed = append(r.removed, k.Name())
	return nil
}

func TestModule_PublishThenUnpublish(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := context.Background()
	rec := &recorder{}
	m := &Module{}

	// --- Act ---
	require.NoError(t, m.Publish(ctx, rec))
	require.NoError(t, m.Unpublish(ctx, rec))

	// --- Assert ---
	require.Len(t, rec.added, 2)
	assert.Equal(t, []string{cmodel.Name, cmodel.Name}, rec.targets)
	assert.Equal(t, EnumInvert, rec.added[0].Enum())
	assert.Equal(t, EnumThreshold, rec.added[1].Enum())
	for _, k := range rec.added {
		assert.True(t, k.Enabled(), k.Name())
		assert.True(t, k.IsUser(), k.Name())
	}
	assert.Equal(t, []string{kernels.NameThreshold, kernels.NameInvert}, rec.removed)
}

func TestModule_PartialPublishUnpublishesWhatItAdded(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := context.Background()
	rec := &recorder{failOn: kernels.NameThreshold}
	m := &Module{}

	// --- Act ---
	err := m.Publish(ctx, rec)
	unpubErr := m.Unpublish(ctx, rec)

	// --- Assert ---
	assert.ErrorIs(t, err, status.ErrNoResources)
	require.NoError(t, unpubErr)
	assert.Equal(t, []string{kernels.NameInvert}, rec.removed)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	c := target.NewCatalog()
	Register(c)

	factory, ok := c.LookupKernels(Name)
	require.True(t, ok)
	assert.IsType(t, &Module{}, factory())
}
