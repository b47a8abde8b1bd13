package lru

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplacerLiteralScenario(t *testing.T) {
	r := New(7)

	for _, f := range []int{1, 2, 3, 4, 5, 6} {
		r.Unpin(f)
	}
	require.Equal(t, 6, r.Size())

	for _, want := range []int{1, 2, 3} {
		got, ok := r.Victim()
		require.True(t, ok)
		require.Equal(t, want, got)
	}

	r.Pin(3)
	r.Pin(4)
	r.Unpin(4)

	for _, want := range []int{5, 6, 4} {
		got, ok := r.Victim()
		require.True(t, ok)
		require.Equal(t, want, got)
	}

	require.Equal(t, 0, r.Size())
	_, ok := r.Victim()
	require.False(t, ok)
}

func TestReplacerUnpinIdempotent(t *testing.T) {
	r := New(4)
	r.Unpin(1)
	r.Unpin(1)
	require.Equal(t, 1, r.Size())
}

func TestReplacerPinMissingIsNoop(t *testing.T) {
	r := New(4)
	r.Pin(42)
	require.Equal(t, 0, r.Size())
}

func TestReplacerRemove(t *testing.T) {
	r := New(4)
	r.Unpin(1)
	r.Unpin(2)
	r.Remove(1)
	require.Equal(t, 1, r.Size())
	got, ok := r.Victim()
	require.True(t, ok)
	require.Equal(t, 2, got)
}
