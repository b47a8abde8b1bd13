package btree

import "github.com/novasql/corestore/internal/btpage"

// IndexIterator is a forward cursor over leaf pages. It pins exactly the
// current leaf (or nothing, once exhausted); Close (or reaching the end)
// releases that pin.
type IndexIterator struct {
	tree *Tree
	leaf *btpage.LeafPage
	page int32 // page id of leaf, for UnpinPage; InvalidPageID when exhausted
	slot int
}

// Valid reports whether the iterator is seated on an entry.
func (it *IndexIterator) Valid() bool {
	return it.leaf != nil
}

// Key returns the current entry's key. Must only be called when Valid.
func (it *IndexIterator) Key() KeyType {
	k, _ := it.leaf.GetItem(it.slot)
	return k
}

// Value returns the current entry's value. Must only be called when Valid.
func (it *IndexIterator) Value() RID {
	_, v := it.leaf.GetItem(it.slot)
	return v
}

// Next advances to the next entry, following the leaf chain when the
// current leaf is exhausted. Once it runs off the right edge, the iterator
// becomes invalid (equal to end()).
func (it *IndexIterator) Next() error {
	if it.leaf == nil {
		return nil
	}

	it.slot++
	if it.slot < int(it.leaf.Size()) {
		return nil
	}

	next := it.leaf.NextPageID()
	it.tree.bpm.UnpinPage(it.page, true)
	it.leaf = nil
	it.page = btpage.InvalidPageID

	if next == btpage.InvalidPageID {
		return nil
	}

	frame, err := it.tree.bpm.FetchPage(next)
	if err != nil {
		return err
	}
	it.leaf = btpage.LoadLeafPage(frame.Data)
	it.page = next
	it.slot = 0
	return nil
}

// Close releases the iterator's pin, if any. Safe to call more than once.
func (it *IndexIterator) Close() {
	if it.leaf == nil {
		return
	}
	it.tree.bpm.UnpinPage(it.page, false)
	it.leaf = nil
	it.page = btpage.InvalidPageID
}

// Begin seats an iterator at slot 0 of the leftmost leaf.
func (t *Tree) Begin() (*IndexIterator, error) {
	t.rwlatch.RLock()
	defer t.rwlatch.RUnlock()

	frame, leaf, err := t.findLeafPage(KeyType{}, true, false)
	if err != nil {
		return nil, err
	}
	if leaf == nil {
		return t.end(), nil
	}
	return &IndexIterator{tree: t, leaf: leaf, page: frame.PageID, slot: 0}, nil
}

// BeginKey seats an iterator at the first entry >= key, within the leaf
// that would contain key.
func (t *Tree) BeginKey(key KeyType) (*IndexIterator, error) {
	t.rwlatch.RLock()
	defer t.rwlatch.RUnlock()

	frame, leaf, err := t.findLeafPage(key, false, false)
	if err != nil {
		return nil, err
	}
	if leaf == nil {
		return t.end(), nil
	}
	slot := leaf.KeyIndex(key, t.cmp)
	if slot >= int(leaf.Size()) {
		t.bpm.UnpinPage(frame.PageID, false)
		return t.end(), nil
	}
	return &IndexIterator{tree: t, leaf: leaf, page: frame.PageID, slot: slot}, nil
}

// End returns the sentinel, unseated iterator.
func (t *Tree) End() *IndexIterator { return t.end() }

func (t *Tree) end() *IndexIterator {
	return &IndexIterator{tree: t, leaf: nil, page: btpage.InvalidPageID}
}
