package btree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBeginOnEmptyTreeIsEnd(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4)
	it, err := tree.Begin()
	require.NoError(t, err)
	require.False(t, it.Valid())
}

func TestBeginKeyPastEndIsEnd(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4)
	for i := int64(1); i <= 3; i++ {
		_, err := tree.Insert(k(i), v(i))
		require.NoError(t, err)
	}
	it, err := tree.BeginKey(k(100))
	require.NoError(t, err)
	require.False(t, it.Valid())
}

func TestIteratorCloseIsIdempotent(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4)
	_, err := tree.Insert(k(1), v(1))
	require.NoError(t, err)

	it, err := tree.Begin()
	require.NoError(t, err)
	it.Close()
	it.Close()
}

func TestEndSentinelIsInvalid(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4)
	require.False(t, tree.End().Valid())
}
