package diskmgr

import (
	"fmt"
	"sync"
)

// MemManager is a DiskManager that keeps every page in memory. It is meant
// for fast unit tests that don't want to touch the filesystem.
type MemManager struct {
	mu       sync.Mutex
	pages    map[int32][]byte
	next     int32
	freeList []int32
}

var _ DiskManager = (*MemManager)(nil)

// NewMemManager returns an empty in-memory disk manager. Allocation starts
// past HeaderPageID so the first allocated page never aliases the header.
func NewMemManager() *MemManager {
	return &MemManager{pages: make(map[int32][]byte), next: firstDataPageID}
}

func (m *MemManager) ReadPage(pageID int32, dst []byte) error {
	if pageID < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageID, pageID)
	}
	if len(dst) != PageSize {
		return fmt.Errorf("diskmgr: dst must be %d bytes", PageSize)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	buf, ok := m.pages[pageID]
	if !ok {
		for i := range dst {
			dst[i] = 0
		}
		return nil
	}
	copy(dst, buf)
	return nil
}

func (m *MemManager) WritePage(pageID int32, src []byte) error {
	if pageID < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageID, pageID)
	}
	if len(src) != PageSize {
		return fmt.Errorf("diskmgr: src must be %d bytes", PageSize)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, PageSize)
	copy(buf, src)
	m.pages[pageID] = buf
	return nil
}

func (m *MemManager) AllocatePage() (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.freeList); n > 0 {
		id := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		return id, nil
	}
	id := m.next
	m.next++
	return id, nil
}

func (m *MemManager) DeallocatePage(pageID int32) error {
	if pageID < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageID, pageID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, pageID)
	m.freeList = append(m.freeList, pageID)
	return nil
}

func (m *MemManager) Close() error { return nil }
