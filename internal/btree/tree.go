// Package btree implements a disk-resident B+Tree index over a buffer
// pool: point lookup, insertion with split, deletion with coalesce and
// redistribute, and ordered traversal via IndexIterator.
package btree

import (
	"errors"
	"fmt"
	"sync"

	"github.com/novasql/corestore/internal/btpage"
	"github.com/novasql/corestore/internal/bufferpool"
	"go.uber.org/atomic"
)

// Tree is a unique-key B+Tree. All structural reads take the tree's reader
// lock; all structural writes take the writer lock. A single header page
// persists root_page_id across process restarts, keyed by IndexName.
type Tree struct {
	IndexName string

	bpm             *bufferpool.Manager
	cmp             Comparator
	leafMaxSize     int32
	internalMaxSize int32

	rwlatch sync.RWMutex
	rootPID int32

	closed atomic.Bool
}

// New opens (or creates) a tree named indexName over bpm. If a root page id
// was previously persisted under indexName on the header page, it is
// recovered; otherwise the tree starts empty.
func New(indexName string, bpm *bufferpool.Manager, cmp Comparator, leafMaxSize, internalMaxSize int32) (*Tree, error) {
	if cmp == nil {
		cmp = DefaultComparator
	}
	t := &Tree{
		IndexName:       indexName,
		bpm:             bpm,
		cmp:             cmp,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		rootPID:         btpage.InvalidPageID,
	}

	rootID, ok, err := getRootPageID(bpm, indexName)
	if err != nil {
		return nil, fmt.Errorf("btree: recover root page id: %w", err)
	}
	if ok {
		t.rootPID = rootID
	}
	return t, nil
}

// Close marks the tree unusable. It does not flush the buffer pool; callers
// own that via bufferpool.Manager.Close.
func (t *Tree) Close() error {
	t.closed.Store(true)
	return nil
}

func (t *Tree) checkOpen() error {
	if t.closed.Load() {
		return ErrTreeClosed
	}
	return nil
}

// IsEmpty reports whether the tree currently has no root page.
func (t *Tree) IsEmpty() bool {
	t.rwlatch.RLock()
	defer t.rwlatch.RUnlock()
	return t.rootPID == btpage.InvalidPageID
}

// GetValue returns the value for key, if present.
func (t *Tree) GetValue(key KeyType) (RID, bool, error) {
	if err := t.checkOpen(); err != nil {
		return RID{}, false, err
	}

	t.rwlatch.RLock()
	defer t.rwlatch.RUnlock()

	frame, leaf, err := t.findLeafPage(key, false, true)
	if err != nil {
		return RID{}, false, err
	}
	if leaf == nil {
		return RID{}, false, nil
	}
	v, ok := leaf.Lookup(key, t.cmp)
	t.bpm.UnpinPage(frame.PageID, false)
	return v, ok, nil
}

// Insert adds (key,value). It returns false, with no mutation, if key is
// already present.
func (t *Tree) Insert(key KeyType, value RID) (bool, error) {
	if err := t.checkOpen(); err != nil {
		return false, err
	}

	t.rwlatch.Lock()
	defer t.rwlatch.Unlock()

	if t.rootPID == btpage.InvalidPageID {
		return true, t.startNewTree(key, value)
	}
	return t.insertIntoLeaf(key, value)
}

func (t *Tree) startNewTree(key KeyType, value RID) error {
	frame, pageID, err := t.bpm.NewPage()
	if err != nil {
		return wrapOOM(err)
	}
	leaf := btpage.NewLeafPage(frame.Data, pageID, btpage.InvalidPageID, t.leafMaxSize)
	leaf.Insert(key, value, t.cmp)
	t.bpm.UnpinPage(pageID, true)

	t.rootPID = pageID
	return updateRootPageID(t.bpm, t.IndexName, pageID, true)
}

func (t *Tree) insertIntoLeaf(key KeyType, value RID) (bool, error) {
	frame, leaf, err := t.findLeafPage(key, false, false)
	if err != nil {
		return false, err
	}

	if _, ok := leaf.Lookup(key, t.cmp); ok {
		t.bpm.UnpinPage(frame.PageID, false)
		return false, nil
	}

	newSize, _ := leaf.Insert(key, value, t.cmp)
	if newSize > leaf.MaxSize() {
		if err := t.splitLeaf(frame, leaf); err != nil {
			t.bpm.UnpinPage(frame.PageID, true)
			return false, err
		}
	}
	t.bpm.UnpinPage(frame.PageID, true)
	return true, nil
}

func (t *Tree) splitLeaf(frame *bufferpool.Frame, leaf *btpage.LeafPage) error {
	siblingFrame, siblingID, err := t.bpm.NewPage()
	if err != nil {
		return wrapOOM(err)
	}
	sibling := btpage.NewLeafPage(siblingFrame.Data, siblingID, leaf.ParentPageID(), t.leafMaxSize)
	leaf.MoveHalfTo(sibling)
	middleKey := sibling.KeyAt(0)
	t.bpm.UnpinPage(siblingID, true)

	return t.insertIntoParent(leaf.PageID(), leaf.ParentPageID(), middleKey, siblingID)
}

// insertIntoParent links newChild into oldChild's parent after middleKey,
// allocating a new root if oldChild had none.
func (t *Tree) insertIntoParent(oldChild, oldParentID int32, middleKey KeyType, newChild int32) error {
	if oldParentID == btpage.InvalidPageID {
		rootFrame, rootID, err := t.bpm.NewPage()
		if err != nil {
			return wrapOOM(err)
		}
		root := btpage.NewInternalPage(rootFrame.Data, rootID, btpage.InvalidPageID, t.internalMaxSize)
		root.PopulateNewRoot(oldChild, middleKey, newChild)
		t.bpm.UnpinPage(rootID, true)

		if err := t.reparent(oldChild, rootID); err != nil {
			return err
		}
		if err := t.reparent(newChild, rootID); err != nil {
			return err
		}
		t.rootPID = rootID
		return updateRootPageID(t.bpm, t.IndexName, rootID, false)
	}

	parentFrame, err := t.bpm.FetchPage(oldParentID)
	if err != nil {
		return err
	}
	parent := btpage.LoadInternalPage(parentFrame.Data)

	newSize := parent.InsertNodeAfter(oldChild, middleKey, newChild)
	if newSize > parent.MaxSize() {
		if err := t.splitInternal(parentFrame, parent); err != nil {
			t.bpm.UnpinPage(parentFrame.PageID, true)
			return err
		}
	}
	t.bpm.UnpinPage(parentFrame.PageID, true)
	return nil
}

func (t *Tree) splitInternal(frame *bufferpool.Frame, node *btpage.InternalPage) error {
	siblingFrame, siblingID, err := t.bpm.NewPage()
	if err != nil {
		return wrapOOM(err)
	}
	sibling := btpage.NewInternalPage(siblingFrame.Data, siblingID, node.ParentPageID(), t.internalMaxSize)
	if err := node.MoveHalfTo(sibling, t.reparent); err != nil {
		t.bpm.UnpinPage(siblingID, true)
		return err
	}
	middleKey := sibling.KeyAt(0)
	t.bpm.UnpinPage(siblingID, true)

	return t.insertIntoParent(node.PageID(), node.ParentPageID(), middleKey, siblingID)
}

// reparent fetches childPageID, sets its parent_page_id, marks it dirty,
// and unpins it. Supplied to btpage's structural moves as a ReparentFunc.
func (t *Tree) reparent(childPageID, newParentID int32) error {
	f, err := t.bpm.FetchPage(childPageID)
	if err != nil {
		return err
	}
	switch btpage.ReadPageType(f.Data) {
	case btpage.LeafPageType:
		btpage.LoadLeafPage(f.Data).SetParentPageID(newParentID)
	case btpage.InternalPageType:
		btpage.LoadInternalPage(f.Data).SetParentPageID(newParentID)
	}
	if !t.bpm.UnpinPage(childPageID, true) {
		return fmt.Errorf("btree: reparent: unpin failed for page %d", childPageID)
	}
	return nil
}

// Remove deletes key, if present. Absence is a no-op, not an error.
func (t *Tree) Remove(key KeyType) error {
	if err := t.checkOpen(); err != nil {
		return err
	}

	t.rwlatch.Lock()
	defer t.rwlatch.Unlock()

	if t.rootPID == btpage.InvalidPageID {
		return nil
	}

	frame, leaf, err := t.findLeafPage(key, false, false)
	if err != nil {
		return err
	}

	if _, ok := leaf.Lookup(key, t.cmp); !ok {
		t.bpm.UnpinPage(frame.PageID, false)
		return nil
	}

	newSize := leaf.RemoveAndDeleteRecord(key, t.cmp)

	needsFix := leaf.PageID() == t.rootPID || newSize < leaf.MinSize()
	if !needsFix {
		t.bpm.UnpinPage(frame.PageID, true)
		return nil
	}

	deleteSelf, err := t.coalesceOrRedistributeLeaf(frame, leaf)
	if err != nil {
		t.bpm.UnpinPage(frame.PageID, true)
		return err
	}
	t.bpm.UnpinPage(frame.PageID, true)
	if deleteSelf {
		if _, err := t.bpm.DeletePage(frame.PageID); err != nil {
			return fmt.Errorf("btree: delete leaf %d: %w", frame.PageID, err)
		}
	}
	return nil
}

func (t *Tree) adjustRootLeaf(leaf *btpage.LeafPage) (bool, error) {
	if leaf.Size() == 0 {
		t.rootPID = btpage.InvalidPageID
		if err := updateRootPageID(t.bpm, t.IndexName, btpage.InvalidPageID, false); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (t *Tree) adjustRootInternal(node *btpage.InternalPage) (bool, error) {
	if node.Size() == 1 {
		child := node.RemoveAndReturnOnlyChild()
		if err := t.reparent(child, btpage.InvalidPageID); err != nil {
			return false, err
		}
		t.rootPID = child
		if err := updateRootPageID(t.bpm, t.IndexName, child, false); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// coalesceOrRedistributeLeaf implements CoalesceOrRedistribute for a leaf.
// It returns true when the caller (leaf's frame) is now empty and must be
// deleted; sibling-side deletions (when the right sibling is absorbed into
// this leaf instead) are handled internally.
func (t *Tree) coalesceOrRedistributeLeaf(frame *bufferpool.Frame, leaf *btpage.LeafPage) (bool, error) {
	if leaf.PageID() == t.rootPID {
		return t.adjustRootLeaf(leaf)
	}

	parentFrame, err := t.bpm.FetchPage(leaf.ParentPageID())
	if err != nil {
		return false, err
	}
	parent := btpage.LoadInternalPage(parentFrame.Data)
	pos := parent.ValueIndex(leaf.PageID())
	siblingIsLeft := pos > 0

	var siblingID int32
	if siblingIsLeft {
		siblingID = parent.ValueAt(pos - 1)
	} else {
		siblingID = parent.ValueAt(pos + 1)
	}
	siblingFrame, err := t.bpm.FetchPage(siblingID)
	if err != nil {
		t.bpm.UnpinPage(parentFrame.PageID, false)
		return false, err
	}
	sibling := btpage.LoadLeafPage(siblingFrame.Data)

	if sibling.Size()+leaf.Size() > leaf.MaxSize() {
		if siblingIsLeft {
			sibling.MoveLastToFrontOf(leaf)
			parent.SetKeyAt(pos, leaf.KeyAt(0))
		} else {
			sibling.MoveFirstToEndOf(leaf)
			parent.SetKeyAt(pos+1, sibling.KeyAt(0))
		}
		t.bpm.UnpinPage(siblingID, true)
		return false, t.fixupParent(parentFrame, parent)
	}

	deleteSelf := false
	if siblingIsLeft {
		leaf.MoveAllTo(sibling)
		parent.Remove(pos)
		t.bpm.UnpinPage(siblingID, true)
		deleteSelf = true
	} else {
		sibling.MoveAllTo(leaf)
		parent.Remove(pos + 1)
		t.bpm.UnpinPage(siblingID, true)
		if _, err := t.bpm.DeletePage(siblingID); err != nil {
			t.bpm.UnpinPage(parentFrame.PageID, true)
			return false, fmt.Errorf("btree: delete leaf %d: %w", siblingID, err)
		}
	}

	if err := t.fixupParent(parentFrame, parent); err != nil {
		return false, err
	}
	return deleteSelf, nil
}

// coalesceOrRedistributeInternal mirrors coalesceOrRedistributeLeaf for
// internal nodes, recursing up the tree.
func (t *Tree) coalesceOrRedistributeInternal(frame *bufferpool.Frame, node *btpage.InternalPage) (bool, error) {
	if node.PageID() == t.rootPID {
		return t.adjustRootInternal(node)
	}

	parentFrame, err := t.bpm.FetchPage(node.ParentPageID())
	if err != nil {
		return false, err
	}
	parent := btpage.LoadInternalPage(parentFrame.Data)
	pos := parent.ValueIndex(node.PageID())
	siblingIsLeft := pos > 0

	var siblingID int32
	if siblingIsLeft {
		siblingID = parent.ValueAt(pos - 1)
	} else {
		siblingID = parent.ValueAt(pos + 1)
	}
	siblingFrame, err := t.bpm.FetchPage(siblingID)
	if err != nil {
		t.bpm.UnpinPage(parentFrame.PageID, false)
		return false, err
	}
	sibling := btpage.LoadInternalPage(siblingFrame.Data)

	if sibling.Size()+node.Size() > node.MaxSize() {
		if siblingIsLeft {
			newSep, err := sibling.MoveLastToFrontOf(node, parent.KeyAt(pos), t.reparent)
			if err != nil {
				t.bpm.UnpinPage(siblingID, true)
				t.bpm.UnpinPage(parentFrame.PageID, false)
				return false, err
			}
			parent.SetKeyAt(pos, newSep)
		} else {
			newSep, err := sibling.MoveFirstToEndOf(node, parent.KeyAt(pos+1), t.reparent)
			if err != nil {
				t.bpm.UnpinPage(siblingID, true)
				t.bpm.UnpinPage(parentFrame.PageID, false)
				return false, err
			}
			parent.SetKeyAt(pos+1, newSep)
		}
		t.bpm.UnpinPage(siblingID, true)
		return false, t.fixupParent(parentFrame, parent)
	}

	deleteSelf := false
	if siblingIsLeft {
		middleKey := parent.KeyAt(pos)
		if err := node.MoveAllTo(sibling, middleKey, t.reparent); err != nil {
			t.bpm.UnpinPage(siblingID, true)
			t.bpm.UnpinPage(parentFrame.PageID, false)
			return false, err
		}
		parent.Remove(pos)
		t.bpm.UnpinPage(siblingID, true)
		deleteSelf = true
	} else {
		middleKey := parent.KeyAt(pos + 1)
		if err := sibling.MoveAllTo(node, middleKey, t.reparent); err != nil {
			t.bpm.UnpinPage(siblingID, true)
			t.bpm.UnpinPage(parentFrame.PageID, false)
			return false, err
		}
		parent.Remove(pos + 1)
		t.bpm.UnpinPage(siblingID, true)
		if _, err := t.bpm.DeletePage(siblingID); err != nil {
			t.bpm.UnpinPage(parentFrame.PageID, true)
			return false, fmt.Errorf("btree: delete internal %d: %w", siblingID, err)
		}
	}

	if err := t.fixupParent(parentFrame, parent); err != nil {
		return false, err
	}
	return deleteSelf, nil
}

// fixupParent unpins parentFrame (always dirty, since the caller just
// mutated it), recursing CoalesceOrRedistribute on it first if it now
// violates its own size floor, or is the root (which AdjustRoot must still
// inspect even when not undersized).
func (t *Tree) fixupParent(parentFrame *bufferpool.Frame, parent *btpage.InternalPage) error {
	needsFix := parent.PageID() == t.rootPID || parent.Size() < parent.MinSize()
	if !needsFix {
		t.bpm.UnpinPage(parentFrame.PageID, true)
		return nil
	}

	deleted, err := t.coalesceOrRedistributeInternal(parentFrame, parent)
	if err != nil {
		t.bpm.UnpinPage(parentFrame.PageID, true)
		return err
	}
	t.bpm.UnpinPage(parentFrame.PageID, true)
	if deleted {
		if _, err := t.bpm.DeletePage(parentFrame.PageID); err != nil {
			return fmt.Errorf("btree: delete internal %d: %w", parentFrame.PageID, err)
		}
	}
	return nil
}

// findLeafPage descends from the root to the leaf that would contain key.
// In leftMost mode it always takes child 0, ignoring key, and never
// verifies presence (used to seat begin()). Otherwise it follows
// Lookup(key) at each internal level; when verify is true (GetValue's
// contract) it additionally checks the leaf actually holds key, unpinning
// and returning a nil leaf if not. On any non-nil return exactly one page
// is pinned; on the verify-miss path, none are.
func (t *Tree) findLeafPage(key KeyType, leftMost, verify bool) (*bufferpool.Frame, *btpage.LeafPage, error) {
	if t.rootPID == btpage.InvalidPageID {
		return nil, nil, nil
	}

	curID := t.rootPID
	for {
		frame, err := t.bpm.FetchPage(curID)
		if err != nil {
			return nil, nil, err
		}

		if btpage.ReadPageType(frame.Data) == btpage.LeafPageType {
			leaf := btpage.LoadLeafPage(frame.Data)
			if verify && !leftMost {
				if _, ok := leaf.Lookup(key, t.cmp); !ok {
					t.bpm.UnpinPage(frame.PageID, false)
					return nil, nil, nil
				}
			}
			return frame, leaf, nil
		}

		internal := btpage.LoadInternalPage(frame.Data)
		var childID int32
		if leftMost {
			childID = internal.ValueAt(0)
		} else {
			childID = internal.Lookup(key, t.cmp)
		}
		t.bpm.UnpinPage(frame.PageID, false)
		curID = childID
	}
}

func wrapOOM(err error) error {
	if errors.Is(err, bufferpool.ErrNoFreeFrame) {
		return ErrOutOfMemory
	}
	return err
}

// FileEntry is one parsed line of an insert/remove fixture file.
type FileEntry struct {
	Key   int64
	Value RID
}

// InsertFromFile is a test helper: each entry is inserted in order,
// matching the fixture format the original storage-core test suites use.
func (t *Tree) InsertFromFile(entries []FileEntry) error {
	for _, e := range entries {
		if _, err := t.Insert(KeyType{Value: e.Key}, e.Value); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFromFile is a test helper mirroring InsertFromFile.
func (t *Tree) RemoveFromFile(keys []int64) error {
	for _, k := range keys {
		if err := t.Remove(KeyType{Value: k}); err != nil {
			return err
		}
	}
	return nil
}
