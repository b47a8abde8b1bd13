package btpage

import (
	"testing"

	"github.com/novasql/corestore/internal/rid"
	"github.com/stretchr/testify/require"
)

func k(v int64) KeyType { return KeyType{Value: v} }

func TestLeafInsertLookupRemove(t *testing.T) {
	buf := make([]byte, 4096)
	leaf := NewLeafPage(buf, 1, InvalidPageID, 4)

	for i := int64(1); i <= 3; i++ {
		_, ok := leaf.Insert(k(i), rid.RID{PageID: uint32(i)}, DefaultComparator)
		require.True(t, ok)
	}
	require.Equal(t, int32(3), leaf.Size())

	v, ok := leaf.Lookup(k(2), DefaultComparator)
	require.True(t, ok)
	require.Equal(t, uint32(2), v.PageID)

	_, ok = leaf.Insert(k(2), rid.RID{PageID: 99}, DefaultComparator)
	require.False(t, ok, "duplicate insert must fail")

	leaf.RemoveAndDeleteRecord(k(2), DefaultComparator)
	require.Equal(t, int32(2), leaf.Size())
	_, ok = leaf.Lookup(k(2), DefaultComparator)
	require.False(t, ok)

	require.Equal(t, k(1), leaf.KeyAt(0))
	require.Equal(t, k(3), leaf.KeyAt(1))
}

func TestLeafMoveHalfTo(t *testing.T) {
	left := NewLeafPage(make([]byte, 4096), 1, InvalidPageID, 4)
	for i := int64(1); i <= 4; i++ {
		left.Insert(k(i), rid.RID{PageID: uint32(i)}, DefaultComparator)
	}
	right := NewLeafPage(make([]byte, 4096), 2, InvalidPageID, 4)

	left.MoveHalfTo(right)

	require.Equal(t, int32(2), left.Size())
	require.Equal(t, int32(2), right.Size())
	require.Equal(t, k(1), left.KeyAt(0))
	require.Equal(t, k(3), right.KeyAt(0))
	require.Equal(t, int32(2), left.NextPageID())
}

func TestLeafMoveAllTo(t *testing.T) {
	left := NewLeafPage(make([]byte, 4096), 1, InvalidPageID, 4)
	left.Insert(k(1), rid.RID{PageID: 1}, DefaultComparator)
	right := NewLeafPage(make([]byte, 4096), 2, InvalidPageID, 4)
	right.Insert(k(2), rid.RID{PageID: 2}, DefaultComparator)
	right.Insert(k(3), rid.RID{PageID: 3}, DefaultComparator)
	right.SetNextPageId(7)

	right.MoveAllTo(left)

	require.Equal(t, int32(3), left.Size())
	require.Equal(t, int32(0), right.Size())
	require.Equal(t, int32(7), left.NextPageID())
	require.Equal(t, k(3), left.KeyAt(2))
}

func TestInternalPopulateAndLookup(t *testing.T) {
	root := NewInternalPage(make([]byte, 4096), 1, InvalidPageID, 4)
	root.PopulateNewRoot(10, k(5), 20)

	require.Equal(t, int32(2), root.Size())
	require.Equal(t, int32(10), root.Lookup(k(1), DefaultComparator))
	require.Equal(t, int32(20), root.Lookup(k(5), DefaultComparator))
	require.Equal(t, int32(20), root.Lookup(k(99), DefaultComparator))
}

func TestInternalInsertNodeAfterAndRemove(t *testing.T) {
	root := NewInternalPage(make([]byte, 4096), 1, InvalidPageID, 5)
	root.PopulateNewRoot(10, k(5), 20)

	root.InsertNodeAfter(20, k(15), 30)
	require.Equal(t, int32(3), root.Size())
	require.Equal(t, int32(30), root.Lookup(k(20), DefaultComparator))

	idx := root.ValueIndex(20)
	root.Remove(idx)
	require.Equal(t, int32(2), root.Size())
	require.Equal(t, int32(30), root.Lookup(k(15), DefaultComparator))
}

func TestInternalMoveHalfToReparents(t *testing.T) {
	left := NewInternalPage(make([]byte, 4096), 1, InvalidPageID, 4)
	left.PopulateNewRoot(10, k(5), 20)
	left.InsertNodeAfter(20, k(15), 30)
	left.InsertNodeAfter(30, k(25), 40)
	right := NewInternalPage(make([]byte, 4096), 2, InvalidPageID, 4)

	var reparented []int32
	err := left.MoveHalfTo(right, func(child, newParent int32) error {
		reparented = append(reparented, child)
		require.Equal(t, int32(2), newParent)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, reparented)
	require.Equal(t, int32(2), left.Size())
	require.Equal(t, int32(2), right.Size())
}
