package bufferpool

import (
	"testing"

	"github.com/novasql/corestore/internal/diskmgr"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, poolSize int) *Manager {
	t.Helper()
	return NewManager(poolSize, diskmgr.NewMemManager())
}

func TestBufferEvictionScenario(t *testing.T) {
	m := newTestManager(t, 2)

	f1, p1, err := m.NewPage()
	require.NoError(t, err)
	_, p2, err := m.NewPage()
	require.NoError(t, err)
	require.NotEqual(t, p1, p2)

	_, _, err = m.NewPage()
	require.ErrorIs(t, err, ErrNoFreeFrame)

	f1.Data[0] = 0x42
	require.True(t, m.UnpinPage(p1, true))

	f3, p3, err := m.NewPage()
	require.NoError(t, err)
	require.NotEqual(t, p1, p3)
	require.NotEqual(t, p2, p3)
	_ = f3
	require.True(t, m.UnpinPage(p3, false))

	fetched, err := m.FetchPage(p1)
	require.NoError(t, err)
	require.Equal(t, byte(0x42), fetched.Data[0], "dirty victim must be written back before reuse")
}

func TestFetchPageIncrementsPinAndReplacerPin(t *testing.T) {
	m := newTestManager(t, 3)

	_, p1, err := m.NewPage()
	require.NoError(t, err)
	require.True(t, m.UnpinPage(p1, false))
	require.Equal(t, 1, m.replacer.Size())

	f, err := m.FetchPage(p1)
	require.NoError(t, err)
	require.Equal(t, int32(1), f.PinCount())
	require.Equal(t, 0, m.replacer.Size())
}

func TestUnpinUnknownPageReturnsFalse(t *testing.T) {
	m := newTestManager(t, 2)
	require.False(t, m.UnpinPage(999, false))
}

func TestDeletePagePinnedFails(t *testing.T) {
	m := newTestManager(t, 2)
	_, p1, err := m.NewPage()
	require.NoError(t, err)

	ok, err := m.DeletePage(p1)
	require.False(t, ok)
	require.ErrorIs(t, err, ErrPagePinned)
}

func TestDeletePageFreesFrameForReuse(t *testing.T) {
	m := newTestManager(t, 1)
	_, p1, err := m.NewPage()
	require.NoError(t, err)
	require.True(t, m.UnpinPage(p1, false))

	ok, err := m.DeletePage(p1)
	require.NoError(t, err)
	require.True(t, ok)

	_, p2, err := m.NewPage()
	require.NoError(t, err)
	require.Equal(t, p1, p2, "the disk manager reuses the deallocated page id")
}

func TestDeleteAbsentPageIsNoop(t *testing.T) {
	m := newTestManager(t, 2)
	ok, err := m.DeletePage(123)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFlushAllPagesClearsDirtyBits(t *testing.T) {
	m := newTestManager(t, 4)

	var pages []int32
	for i := 0; i < 3; i++ {
		f, p, err := m.NewPage()
		require.NoError(t, err)
		f.Data[0] = byte(i + 1)
		require.True(t, m.UnpinPage(p, true))
		pages = append(pages, p)
	}

	require.NoError(t, m.FlushAllPages())

	for _, p := range pages {
		f, err := m.FetchPage(p)
		require.NoError(t, err)
		require.False(t, f.IsDirty())
		require.True(t, m.UnpinPage(p, false))
	}
}

func TestFetchInvalidPageID(t *testing.T) {
	m := newTestManager(t, 2)
	_, err := m.FetchPage(InvalidPageID)
	require.ErrorIs(t, err, ErrInvalidPageID)
}
