package btree

import (
	"testing"

	"github.com/novasql/corestore/internal/bufferpool"
	"github.com/novasql/corestore/internal/diskmgr"
	"github.com/stretchr/testify/require"
)

func newTestTree(t *testing.T, leafMax, internalMax int32) (*Tree, *bufferpool.Manager) {
	t.Helper()
	bpm := bufferpool.NewManager(64, diskmgr.NewMemManager())
	tree, err := New("test-index", bpm, DefaultComparator, leafMax, internalMax)
	require.NoError(t, err)
	return tree, bpm
}

func k(v int64) KeyType { return KeyType{Value: v} }
func v(id int64) RID    { return RID{PageID: uint32(id)} }

func TestTreeInsertSplitScenario(t *testing.T) {
	tree, _ := newTestTree(t, 3, 3)

	for i := int64(1); i <= 10; i++ {
		ok, err := tree.Insert(k(i), v(i))
		require.NoError(t, err)
		require.True(t, ok)
	}

	for i := int64(1); i <= 10; i++ {
		got, ok, err := tree.GetValue(k(i))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, v(i), got)
	}

	it, err := tree.Begin()
	require.NoError(t, err)
	defer it.Close()
	for i := int64(1); i <= 10; i++ {
		require.True(t, it.Valid())
		require.Equal(t, k(i), it.Key())
		require.NoError(t, it.Next())
	}
	require.False(t, it.Valid())
}

func TestTreeDeleteCoalesceScenario(t *testing.T) {
	tree, _ := newTestTree(t, 3, 3)
	for i := int64(1); i <= 10; i++ {
		_, err := tree.Insert(k(i), v(i))
		require.NoError(t, err)
	}

	for _, key := range []int64{1, 2, 3, 4, 5} {
		require.NoError(t, tree.Remove(k(key)))
	}

	for i := int64(6); i <= 10; i++ {
		got, ok, err := tree.GetValue(k(i))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, v(i), got)
	}

	for _, key := range []int64{6, 7, 8, 9, 10} {
		require.NoError(t, tree.Remove(k(key)))
	}

	require.True(t, tree.IsEmpty())
}

func TestTreeUniqueKeyScenario(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4)

	ok, err := tree.Insert(k(5), v(5))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tree.Insert(k(5), v(99))
	require.NoError(t, err)
	require.False(t, ok)

	got, found, err := tree.GetValue(k(5))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, v(5), got)
}

func TestTreeIteratorAcrossLeavesScenario(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4)
	for i := int64(1); i <= 12; i++ {
		_, err := tree.Insert(k(i), v(i))
		require.NoError(t, err)
	}

	it, err := tree.BeginKey(k(5))
	require.NoError(t, err)
	defer it.Close()

	for i := int64(5); i <= 12; i++ {
		require.True(t, it.Valid())
		require.Equal(t, k(i), it.Key())
		require.NoError(t, it.Next())
	}
	require.False(t, it.Valid())
}

func TestGetValueMissingKey(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4)
	_, err := tree.Insert(k(1), v(1))
	require.NoError(t, err)

	_, ok, err := tree.GetValue(k(42))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRemoveMissingKeyIsNoop(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4)
	_, err := tree.Insert(k(1), v(1))
	require.NoError(t, err)
	require.NoError(t, tree.Remove(k(999)))

	_, ok, err := tree.GetValue(k(1))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRemoveFromEmptyTreeIsNoop(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4)
	require.True(t, tree.IsEmpty())
	require.NoError(t, tree.Remove(k(1)))
}

func TestGetValueLeavesNoPinsBehind(t *testing.T) {
	tree, bpm := newTestTree(t, 3, 3)
	for i := int64(1); i <= 20; i++ {
		_, err := tree.Insert(k(i), v(i))
		require.NoError(t, err)
	}

	_, _, err := tree.GetValue(k(15))
	require.NoError(t, err)

	// Every frame should now be fully evictable: drain the pool via NewPage
	// and confirm it never reports out-of-frames.
	for i := 0; i < bpm.PoolSize(); i++ {
		_, _, err := bpm.NewPage()
		require.NoError(t, err, "a leaked pin would starve the pool of free frames")
	}
}

func TestDescendingInsertOrder(t *testing.T) {
	tree, _ := newTestTree(t, 3, 3)
	for i := int64(20); i >= 1; i-- {
		_, err := tree.Insert(k(i), v(i))
		require.NoError(t, err)
	}
	for i := int64(1); i <= 20; i++ {
		got, ok, err := tree.GetValue(k(i))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, v(i), got)
	}
}

func TestRootPersistsAcrossReopen(t *testing.T) {
	bpm := bufferpool.NewManager(64, diskmgr.NewMemManager())
	tree, err := New("persisted", bpm, DefaultComparator, 4, 4)
	require.NoError(t, err)
	for i := int64(1); i <= 5; i++ {
		_, err := tree.Insert(k(i), v(i))
		require.NoError(t, err)
	}

	reopened, err := New("persisted", bpm, DefaultComparator, 4, 4)
	require.NoError(t, err)
	for i := int64(1); i <= 5; i++ {
		got, ok, err := reopened.GetValue(k(i))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, v(i), got)
	}
}
