// Package bufferpool mediates all access to fixed-size pages on a backing
// disk manager: a page table, a pin/unpin protocol, and a pluggable
// replacement policy.
package bufferpool

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/novasql/corestore/internal/diskmgr"
	"github.com/novasql/corestore/internal/lru"
	"github.com/novasql/corestore/internal/walshim"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
)

// InvalidPageID is the sentinel meaning "no page".
const InvalidPageID int32 = -1

// HeaderPageID is the reserved page holding root-id records. It mirrors
// diskmgr.HeaderPageID, the id every DiskManager implementation reserves by
// never handing it out from AllocatePage.
const HeaderPageID int32 = diskmgr.HeaderPageID

// Replacer is the capability the pool needs from a replacement policy:
// internal/lru.Replacer and pkg/clockx.Adapter both implement it, so either
// can back a Manager without the Manager knowing which.
type Replacer interface {
	Pin(frameID int)
	Unpin(frameID int)
	Victim() (int, bool)
	Remove(frameID int)
	Size() int
}

// Manager is the BufferPoolManager: a fixed array of frames, a free list, a
// page_id->frame_id table, and an embedded replacer, all guarded by a
// single latch.
type Manager struct {
	latch sync.Mutex

	frames    []*Frame
	freeList  []int
	pageTable map[int32]int
	replacer  Replacer

	disk diskmgr.DiskManager
	wal  *walshim.Writer

	pageSize int
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithReplacer swaps the default LRU replacer for another policy (e.g.
// clockx.NewAdapter).
func WithReplacer(r Replacer) Option {
	return func(m *Manager) { m.replacer = r }
}

// WithWAL enables redo logging of dirty victims before they're written back.
func WithWAL(w *walshim.Writer) Option {
	return func(m *Manager) { m.wal = w }
}

// WithPageSize overrides the default page size (diskmgr.PageSize).
func WithPageSize(n int) Option {
	return func(m *Manager) { m.pageSize = n }
}

// NewManager constructs a pool of poolSize frames backed by disk.
func NewManager(poolSize int, disk diskmgr.DiskManager, opts ...Option) *Manager {
	m := &Manager{
		pageTable: make(map[int32]int, poolSize),
		disk:      disk,
		pageSize:  diskmgr.PageSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.replacer == nil {
		m.replacer = lru.New(poolSize)
	}

	m.frames = make([]*Frame, poolSize)
	m.freeList = make([]int, 0, poolSize)
	for i := 0; i < poolSize; i++ {
		m.frames[i] = newFrame(m.pageSize)
		m.freeList = append(m.freeList, i)
	}
	return m
}

// PoolSize returns the number of frames the pool manages.
func (m *Manager) PoolSize() int { return len(m.frames) }

// victimFrame picks a frame to (re)use: free list first, then the
// replacer's LRU victim. If the chosen frame is dirty, it is written back
// (and, if WAL is enabled, logged first) before its old mapping is erased.
func (m *Manager) victimFrame() (int, bool, error) {
	if n := len(m.freeList); n > 0 {
		idx := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		return idx, true, nil
	}

	frameID, ok := m.replacer.Victim()
	if !ok {
		return 0, false, nil
	}

	f := m.frames[frameID]
	if f.IsDirty() {
		if err := m.writeBack(f); err != nil {
			return 0, false, err
		}
	}
	if f.PageID != InvalidPageID {
		delete(m.pageTable, f.PageID)
	}
	return frameID, true, nil
}

func (m *Manager) writeBack(f *Frame) error {
	if m.wal != nil {
		if _, err := m.wal.AppendPageImage(f.PageID, f.Data); err != nil {
			return fmt.Errorf("bufferpool: wal append: %w", err)
		}
	}
	if err := m.disk.WritePage(f.PageID, f.Data); err != nil {
		return fmt.Errorf("bufferpool: write back page %d: %w", f.PageID, err)
	}
	f.SetDirty(false)
	return nil
}

// FetchPage returns the frame holding pageID, fetching it from disk if it
// is not already resident.
func (m *Manager) FetchPage(pageID int32) (*Frame, error) {
	if pageID == InvalidPageID {
		return nil, ErrInvalidPageID
	}

	m.latch.Lock()
	defer m.latch.Unlock()

	if frameID, ok := m.pageTable[pageID]; ok {
		f := m.frames[frameID]
		f.incPin()
		m.replacer.Pin(frameID)
		slog.Debug("bufferpool: fetch hit", "page", pageID, "frame", frameID, "pins", f.PinCount())
		return f, nil
	}

	frameID, ok, err := m.victimFrame()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoFreeFrame
	}

	f := m.frames[frameID]
	f.reset(pageID)
	if err := m.disk.ReadPage(pageID, f.Data); err != nil {
		return nil, fmt.Errorf("bufferpool: read page %d: %w", pageID, err)
	}
	m.pageTable[pageID] = frameID
	f.incPin()
	m.replacer.Pin(frameID)
	slog.Debug("bufferpool: fetch miss", "page", pageID, "frame", frameID)
	return f, nil
}

// NewPage allocates a fresh page id from the disk manager and installs it
// in a frame, pinned and zeroed.
func (m *Manager) NewPage() (*Frame, int32, error) {
	m.latch.Lock()
	defer m.latch.Unlock()

	frameID, ok, err := m.victimFrame()
	if err != nil {
		return nil, InvalidPageID, err
	}
	if !ok {
		return nil, InvalidPageID, ErrNoFreeFrame
	}

	pageID, err := m.disk.AllocatePage()
	if err != nil {
		return nil, InvalidPageID, fmt.Errorf("bufferpool: allocate page: %w", err)
	}

	f := m.frames[frameID]
	f.reset(pageID)
	m.pageTable[pageID] = frameID
	f.incPin()
	m.replacer.Pin(frameID)
	slog.Debug("bufferpool: new page", "page", pageID, "frame", frameID)
	return f, pageID, nil
}

// UnpinPage decrements pageID's pin count, ORing isDirty into the frame's
// sticky dirty bit. When the count reaches zero the frame becomes evictable.
func (m *Manager) UnpinPage(pageID int32, isDirty bool) bool {
	m.latch.Lock()
	defer m.latch.Unlock()

	frameID, ok := m.pageTable[pageID]
	if !ok {
		return false
	}
	f := m.frames[frameID]
	if isDirty {
		f.SetDirty(true)
	}
	if f.PinCount() <= 0 {
		return false
	}
	if f.decPin() == 0 {
		m.replacer.Unpin(frameID)
	}
	return true
}

// FlushPage writes pageID's frame back to disk immediately, regardless of
// pin state, and clears its dirty bit.
func (m *Manager) FlushPage(pageID int32) error {
	if pageID == InvalidPageID {
		return ErrInvalidPageID
	}

	m.latch.Lock()
	defer m.latch.Unlock()

	frameID, ok := m.pageTable[pageID]
	if !ok {
		return fmt.Errorf("bufferpool: flush: page %d not resident", pageID)
	}
	return m.writeBack(m.frames[frameID])
}

// DeletePage reclaims pageID's frame if it's unpinned, deallocating the
// page id and returning the frame to the free list.
func (m *Manager) DeletePage(pageID int32) (bool, error) {
	m.latch.Lock()
	defer m.latch.Unlock()

	frameID, ok := m.pageTable[pageID]
	if !ok {
		return true, nil
	}
	f := m.frames[frameID]
	if f.PinCount() > 0 {
		return false, ErrPagePinned
	}

	if err := m.disk.DeallocatePage(pageID); err != nil {
		return false, fmt.Errorf("bufferpool: deallocate page %d: %w", pageID, err)
	}

	delete(m.pageTable, pageID)
	m.replacer.Remove(frameID)
	f.reset(InvalidPageID)
	m.freeList = append(m.freeList, frameID)
	return true, nil
}

// FlushAllPages writes every dirty resident page back to disk. Dirty
// frames are snapshotted under the latch, written back concurrently via a
// bounded worker pool, then the latch is briefly re-taken per frame to
// clear its dirty bit.
func (m *Manager) FlushAllPages() error {
	type dirtyFrame struct {
		frameID int
		pageID  int32
		data    []byte
	}

	m.latch.Lock()
	var toFlush []dirtyFrame
	for pageID, frameID := range m.pageTable {
		f := m.frames[frameID]
		if !f.IsDirty() {
			continue
		}
		snapshot := make([]byte, len(f.Data))
		copy(snapshot, f.Data)
		toFlush = append(toFlush, dirtyFrame{frameID: frameID, pageID: pageID, data: snapshot})
	}
	m.latch.Unlock()

	p := pool.New().WithMaxGoroutines(max(1, len(toFlush)))
	var errs error
	var errsMu sync.Mutex

	for _, df := range toFlush {
		df := df
		p.Go(func() {
			var werr error
			if m.wal != nil {
				if _, err := m.wal.AppendPageImage(df.pageID, df.data); err != nil {
					werr = fmt.Errorf("bufferpool: wal append page %d: %w", df.pageID, err)
				}
			}
			if werr == nil {
				if err := m.disk.WritePage(df.pageID, df.data); err != nil {
					werr = fmt.Errorf("bufferpool: flush page %d: %w", df.pageID, err)
				}
			}
			if werr != nil {
				errsMu.Lock()
				errs = multierr.Append(errs, werr)
				errsMu.Unlock()
				return
			}

			m.latch.Lock()
			if frameID, ok := m.pageTable[df.pageID]; ok && frameID == df.frameID {
				m.frames[frameID].SetDirty(false)
			}
			m.latch.Unlock()
		})
	}
	p.Wait()

	if errs != nil {
		return errs
	}
	slog.Debug("bufferpool: flush all", "flushed", len(toFlush))
	return nil
}

// Close flushes every dirty page and releases the disk manager.
func (m *Manager) Close() error {
	err := m.FlushAllPages()
	if cerr := m.disk.Close(); cerr != nil {
		err = multierr.Append(err, cerr)
	}
	return err
}
