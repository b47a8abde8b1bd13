package bufferpool

import "go.uber.org/atomic"

// Frame is an in-memory slot that may host a resident page. PinCount and
// Dirty are kept in atomic fields. The pool reads and changes them under its
// latch; FlushAllPages writes byte snapshots back outside the latch and
// re-takes it per frame to clear the dirty bit.
type Frame struct {
	PageID   int32
	Data     []byte
	pinCount atomic.Int32
	dirty    atomic.Bool
}

func newFrame(pageSize int) *Frame {
	return &Frame{
		PageID: InvalidPageID,
		Data:   make([]byte, pageSize),
	}
}

func (f *Frame) PinCount() int32  { return f.pinCount.Load() }
func (f *Frame) IsDirty() bool    { return f.dirty.Load() }
func (f *Frame) SetDirty(d bool)  { f.dirty.Store(d) }
func (f *Frame) incPin() int32    { return f.pinCount.Inc() }
func (f *Frame) decPin() int32    { return f.pinCount.Dec() }

func (f *Frame) reset(pageID int32) {
	f.PageID = pageID
	f.pinCount.Store(0)
	f.dirty.Store(false)
	for i := range f.Data {
		f.Data[i] = 0
	}
}
