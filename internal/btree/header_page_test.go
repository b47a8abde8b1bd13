package btree

import (
	"testing"

	"github.com/novasql/corestore/internal/bufferpool"
	"github.com/novasql/corestore/internal/diskmgr"
	"github.com/stretchr/testify/require"
)

func TestHeaderPageInsertAndLookup(t *testing.T) {
	bpm := bufferpool.NewManager(4, diskmgr.NewMemManager())

	_, ok, err := getRootPageID(bpm, "idx-a")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, updateRootPageID(bpm, "idx-a", 7, true))
	got, ok, err := getRootPageID(bpm, "idx-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(7), got)

	require.NoError(t, updateRootPageID(bpm, "idx-a", 42, false))
	got, ok, err = getRootPageID(bpm, "idx-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(42), got)
}

func TestHeaderPageMultipleIndexes(t *testing.T) {
	bpm := bufferpool.NewManager(4, diskmgr.NewMemManager())

	require.NoError(t, updateRootPageID(bpm, "idx-a", 1, true))
	require.NoError(t, updateRootPageID(bpm, "idx-b", 2, true))

	a, ok, err := getRootPageID(bpm, "idx-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(1), a)

	b, ok, err := getRootPageID(bpm, "idx-b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(2), b)
}
