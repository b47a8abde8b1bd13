// Package diskmgr owns raw page I/O: mapping a logical page ID to a segment
// file and offset, and handing out/reclaiming page IDs via a free list.
package diskmgr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/novasql/corestore/pkg/util"
)

const (
	// PageSize is the fixed size, in bytes, of every page this module moves
	// between disk and the buffer pool.
	PageSize = 4096

	// SegmentSize bounds how large a single backing file is allowed to grow
	// before a new segment is started.
	SegmentSize = 1 << 30 // 1 GiB

	pagesPerSegment = SegmentSize / PageSize

	// HeaderPageID is reserved for the buffer pool's root-id header page
	// (bufferpool.HeaderPageID). Neither disk manager implementation ever
	// hands this id out: the allocator's high-water mark starts at the
	// first id past it, so the header page and the first tree page can
	// never alias the same frame.
	HeaderPageID int32 = 0
	firstDataPageID = HeaderPageID + 1
)

// ErrInvalidPageID is returned for a page ID that cannot be a valid location
// (negative, or corrupt free-list state).
var ErrInvalidPageID = errors.New("diskmgr: invalid page id")

// DiskManager is the narrow interface the buffer pool depends on: read and
// write a whole page, and allocate/deallocate page IDs.
type DiskManager interface {
	ReadPage(pageID int32, dst []byte) error
	WritePage(pageID int32, src []byte) error
	AllocatePage() (int32, error)
	DeallocatePage(pageID int32) error
	Close() error
}

// FileManager is a DiskManager backed by segmented local files: Base,
// Base.1, Base.2, ... each capped at SegmentSize bytes.
type FileManager struct {
	mu sync.Mutex

	dir        string
	base       string
	nextPageID int32
	freeList   []int32

	freeListPath string
}

var _ DiskManager = (*FileManager)(nil)

// NewFileManager opens (or creates) a segmented file set rooted at dir/base.
// The page-count high-water mark and free list are recovered by scanning the
// existing segments and a ".free" sidecar file.
func NewFileManager(dir, base string) (*FileManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("diskmgr: create dir: %w", err)
	}
	fm := &FileManager{
		dir:          dir,
		base:         base,
		freeListPath: filepath.Join(dir, base+".free"),
	}

	count, err := fm.countPages()
	if err != nil {
		return nil, fmt.Errorf("diskmgr: count pages: %w", err)
	}
	fm.nextPageID = int32(count)
	if fm.nextPageID < firstDataPageID {
		fm.nextPageID = firstDataPageID
	}

	if err := fm.loadFreeList(); err != nil {
		return nil, fmt.Errorf("diskmgr: load free list: %w", err)
	}

	slog.Debug("diskmgr: opened", "dir", dir, "base", base, "pages", count, "free", len(fm.freeList))
	return fm, nil
}

func (fm *FileManager) segmentPath(segNo int32) string {
	name := fm.base
	if segNo > 0 {
		name = fmt.Sprintf("%s.%d", fm.base, segNo)
	}
	return filepath.Join(fm.dir, name)
}

func (fm *FileManager) openSegment(segNo int32) (*os.File, error) {
	return os.OpenFile(fm.segmentPath(segNo), os.O_RDWR|os.O_CREATE, 0o644)
}

func locate(pageID int32) (segNo int32, offset int64) {
	segNo = pageID / pagesPerSegment
	pageInSeg := pageID % pagesPerSegment
	offset = int64(pageInSeg) * PageSize
	return segNo, offset
}

// ReadPage reads exactly PageSize bytes into dst, zero-filling past EOF so a
// never-written page reads back as all zero.
func (fm *FileManager) ReadPage(pageID int32, dst []byte) error {
	if pageID < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageID, pageID)
	}
	if len(dst) != PageSize {
		return fmt.Errorf("diskmgr: dst must be %d bytes", PageSize)
	}

	segNo, off := locate(pageID)
	f, err := fm.openSegment(segNo)
	if err != nil {
		return fmt.Errorf("diskmgr: open segment %d: %w", segNo, err)
	}
	defer util.CloseFileFunc(f)

	n, err := f.ReadAt(dst, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("diskmgr: read page %d: %w", pageID, err)
	}
	for i := n; i < PageSize; i++ {
		dst[i] = 0
	}
	return nil
}

// WritePage writes exactly PageSize bytes from src at pageID's location.
func (fm *FileManager) WritePage(pageID int32, src []byte) error {
	if pageID < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageID, pageID)
	}
	if len(src) != PageSize {
		return fmt.Errorf("diskmgr: src must be %d bytes", PageSize)
	}

	segNo, off := locate(pageID)
	f, err := fm.openSegment(segNo)
	if err != nil {
		return fmt.Errorf("diskmgr: open segment %d: %w", segNo, err)
	}
	defer util.CloseFileFunc(f)

	n, err := f.WriteAt(src, off)
	if err != nil {
		return fmt.Errorf("diskmgr: write page %d: %w", pageID, err)
	}
	if n != PageSize {
		return fmt.Errorf("diskmgr: short write for page %d: %w", pageID, io.ErrShortWrite)
	}
	return nil
}

// AllocatePage hands out a reclaimed page ID if the free list is non-empty,
// otherwise extends the page count by one.
func (fm *FileManager) AllocatePage() (int32, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if n := len(fm.freeList); n > 0 {
		id := fm.freeList[n-1]
		fm.freeList = fm.freeList[:n-1]
		if err := fm.persistFreeList(); err != nil {
			return 0, err
		}
		slog.Debug("diskmgr: allocate (reused)", "page", id)
		return id, nil
	}

	id := fm.nextPageID
	fm.nextPageID++
	slog.Debug("diskmgr: allocate (new)", "page", id)
	return id, nil
}

// DeallocatePage pushes pageID onto the free list for future reuse. It does
// not compact or zero the underlying segment.
func (fm *FileManager) DeallocatePage(pageID int32) error {
	if pageID < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageID, pageID)
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	fm.freeList = append(fm.freeList, pageID)
	if err := fm.persistFreeList(); err != nil {
		return err
	}
	slog.Debug("diskmgr: deallocate", "page", pageID, "free", len(fm.freeList))
	return nil
}

// Close flushes the free-list sidecar. The segment files themselves are
// opened and closed per operation, so there is nothing else to release.
func (fm *FileManager) Close() error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.persistFreeList()
}

func (fm *FileManager) countPages() (int64, error) {
	var total int64
	for segNo := int32(0); ; segNo++ {
		path := fm.segmentPath(segNo)
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				break
			}
			return 0, err
		}
		if info.Size() > 0 {
			total += info.Size() / PageSize
		}
	}
	return total, nil
}

func (fm *FileManager) loadFreeList() error {
	data, err := os.ReadFile(fm.freeListPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &fm.freeList)
}

func (fm *FileManager) persistFreeList() error {
	data, err := json.Marshal(fm.freeList)
	if err != nil {
		return err
	}
	return os.WriteFile(fm.freeListPath, data, 0o644)
}
