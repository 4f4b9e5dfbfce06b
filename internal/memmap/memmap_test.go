package memmap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/vxgrid/internal/reference"
	"github.com/specialistvlad/vxgrid/internal/status"
	"github.com/specialistvlad/vxgrid/internal/testutil"
)

func liveRef(typ reference.Type) *reference.Reference {
	r := &reference.Reference{}
	r.Init(typ, nil, nil)
	return r
}

func TestMaps_MapUnmapSymmetry(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	maps := NewMaps(4)
	ref := liveRef(reference.TypeImage)

	// --- Act ---
	id1, err := maps.Map(ref, ReadOnly, make([]byte, 4), nil)
	require.NoError(t, err)
	afterFirst := maps.Open()
	id2, err := maps.Map(ref, WriteOnly, make([]byte, 4), nil)
	require.NoError(t, err)
	afterSecond := maps.Open()

	_, err = maps.Unmap(id1)
	require.NoError(t, err)
	afterUnmap := maps.Open()
	_, again := maps.Unmap(id1)

	// --- Assert ---
	assert.Equal(t, 1, afterFirst)
	assert.Equal(t, 2, afterSecond)
	assert.Equal(t, 1, afterUnmap)
	assert.ErrorIs(t, again, status.ErrInvalidParameters)
	assert.Equal(t, 1, maps.Open(), "failed unmap must not change the count")
	_, ok := maps.Lookup(id2)
	assert.True(t, ok)
}

func TestMaps_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	maps := NewMaps(1)
	_, err := maps.Map(&reference.Reference{}, ReadOnly, nil, nil)
	assert.ErrorIs(t, err, status.ErrInvalidReference)

	_, err = maps.Map(liveRef(reference.TypeArray), Usage(0), nil, nil)
	assert.ErrorIs(t, err, status.ErrInvalidParameters)
}

func TestMaps_FullTable(t *testing.T) {
	t.Parallel()

	maps := NewMaps(1)
	ref := liveRef(reference.TypeArray)
	_, err := maps.Map(ref, ReadWrite, nil, nil)
	require.NoError(t, err)

	_, err = maps.Map(ref, ReadWrite, nil, nil)

	assert.ErrorIs(t, err, status.ErrNoResources)
	assert.Equal(t, 1, maps.Open())
}

func TestAccessors_AllocatesWhenNoBuffer(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	acc := NewAccessors(2)
	ref := liveRef(reference.TypeImage)
	user := make([]byte, 8)

	// --- Act ---
	id1, buf1, err1 := acc.Add(ref, ReadOnly, nil, 16, nil)
	id2, buf2, err2 := acc.Add(ref, WriteOnly, user, 0, nil)

	// --- Assert ---
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Len(t, buf1, 16)
	assert.Same(t, &user[0], &buf2[0])

	e1, ok := acc.Find(id1)
	require.True(t, ok)
	assert.True(t, e1.Allocated)
	e2, ok := acc.Find(id2)
	require.True(t, ok)
	assert.False(t, e2.Allocated)

	_, err := acc.Remove(id1)
	require.NoError(t, err)
	_, err = acc.Remove(id1)
	assert.ErrorIs(t, err, status.ErrInvalidParameters)
	assert.Equal(t, 1, acc.Open())
}

func TestForceClose_LogsEachEntry(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, buf := testutil.LogContext()
	maps := NewMaps(4)
	acc := NewAccessors(4)
	ref := liveRef(reference.TypeMatrix)
	for i := 0; i < 2; i++ {
		_, err := maps.Map(ref, ReadOnly, nil, nil)
		require.NoError(t, err)
	}
	_, _, err := acc.Add(ref, ReadWrite, nil, 4, nil)
	require.NoError(t, err)

	// --- Act ---
	closedMaps := maps.ForceClose(ctx)
	closedAcc := acc.ForceClose(ctx)

	// --- Assert ---
	assert.Equal(t, 2, closedMaps)
	assert.Equal(t, 1, closedAcc)
	assert.Zero(t, maps.Open())
	assert.Zero(t, acc.Open())
	testutil.AssertLogged(t, buf, "Memory map still open at teardown.", 2)
	testutil.AssertLogged(t, buf, "Accessor still open at teardown.", 1)
	assert.Equal(t, 3, strings.Count(buf.String(), "level=ERROR"))
}

func TestUsage(t *testing.T) {
	t.Parallel()

	assert.True(t, ReadWrite.Reads())
	assert.True(t, ReadWrite.Writes())
	assert.False(t, WriteOnly.Reads())
	assert.False(t, ReadOnly.Writes())
	assert.Equal(t, "usage(9)", Usage(9).String())
}
