package walshim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testPageSize = 4096

type memWriter struct {
	pages map[int32][]byte
}

func newMemWriter() *memWriter { return &memWriter{pages: make(map[int32][]byte)} }

func (m *memWriter) WritePage(pageID int32, pageBytes []byte) error {
	buf := make([]byte, len(pageBytes))
	copy(buf, pageBytes)
	m.pages[pageID] = buf
	return nil
}

func TestAppendThenRecoverReproducesBytes(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, testPageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	want := make(map[int32][]byte)
	for i := int32(0); i < 5; i++ {
		page := make([]byte, testPageSize)
		page[0] = byte(i)
		page[testPageSize-1] = byte(i * 2)
		_, err := w.AppendPageImage(i, page)
		require.NoError(t, err)
		want[i] = page
	}
	require.NoError(t, w.Flush(5))

	mw := newMemWriter()
	require.NoError(t, w.Recover(mw))

	require.Len(t, mw.pages, len(want))
	for id, page := range want {
		require.Equal(t, page, mw.pages[id])
	}
}

func TestRecoverEmptyLogIsNoop(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, testPageSize)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w2, err := Open(dir, testPageSize)
	require.NoError(t, err)
	mw := newMemWriter()
	require.NoError(t, w2.Recover(mw))
	require.Empty(t, mw.pages)
}
