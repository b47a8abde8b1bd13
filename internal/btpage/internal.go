package btpage

import "github.com/novasql/corestore/pkg/bx"

const (
	internalDataStart = HeaderSize
	internalEntrySize = keySize + 4 + 4 // key + child page id + pad

	internalChildOff = keySize
)

// ReparentFunc re-parents a child page during a structural move: fetch it,
// set its parent_page_id, mark it dirty, unpin. Supplied by the tree layer,
// which owns the buffer pool; btpage itself never touches the pool.
type ReparentFunc func(childPageID, newParentID int32) error

// InternalPage is a typed view over a raw page buffer holding a
// separator-plus-children layout: size entries, size-1 real separator keys
// (slot 0's key is unused), and size children.
type InternalPage struct {
	buf []byte
}

// NewInternalPage initializes buf as an empty internal node.
func NewInternalPage(buf []byte, pageID, parentPageID, maxSize int32) *InternalPage {
	writeHeader(buf, Header{
		PageType:     InternalPageType,
		Size:         0,
		MaxSize:      maxSize,
		ParentPageID: parentPageID,
		PageID:       pageID,
	})
	return &InternalPage{buf: buf}
}

// LoadInternalPage wraps an existing buffer already containing an internal
// node image.
func LoadInternalPage(buf []byte) *InternalPage {
	return &InternalPage{buf: buf}
}

func (p *InternalPage) header() Header      { return readHeader(p.buf) }
func (p *InternalPage) setSize(n int32)     { bx.PutI32At(p.buf, offSize, n) }
func (p *InternalPage) Size() int32         { return p.header().Size }
func (p *InternalPage) MaxSize() int32      { return p.header().MaxSize }
func (p *InternalPage) PageID() int32       { return p.header().PageID }
func (p *InternalPage) ParentPageID() int32 { return p.header().ParentPageID }
func (p *InternalPage) SetParentPageID(id int32) {
	bx.PutI32At(p.buf, offParentPageID, id)
}

// MinSize is the teaching-convention floor: ceil(max_size/2).
func (p *InternalPage) MinSize() int32 {
	m := p.MaxSize()
	return (m + 1) / 2
}

func (p *InternalPage) entryOff(i int) int { return internalDataStart + i*internalEntrySize }

func (p *InternalPage) KeyAt(i int) KeyType {
	return decodeKey(p.buf, p.entryOff(i))
}

func (p *InternalPage) SetKeyAt(i int, k KeyType) {
	encodeKey(p.buf, p.entryOff(i), k)
}

func (p *InternalPage) ValueAt(i int) int32 {
	return bx.I32At(p.buf, p.entryOff(i)+internalChildOff)
}

func (p *InternalPage) setValueAt(i int, childPageID int32) {
	bx.PutI32At(p.buf, p.entryOff(i)+internalChildOff, childPageID)
}

func (p *InternalPage) setEntry(i int, k KeyType, child int32) {
	p.SetKeyAt(i, k)
	p.setValueAt(i, child)
}

// ValueIndex returns the slot holding childPageID, or -1.
func (p *InternalPage) ValueIndex(childPageID int32) int {
	n := int(p.Size())
	for i := 0; i < n; i++ {
		if p.ValueAt(i) == childPageID {
			return i
		}
	}
	return -1
}

// Lookup returns the child page id covering key: the last slot whose
// separator key is <= key, or slot 0 if key is less than every separator.
func (p *InternalPage) Lookup(key KeyType, cmp Comparator) int32 {
	n := int(p.Size())
	lo, hi := 1, n
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(p.KeyAt(mid), key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return p.ValueAt(lo - 1)
}

func (p *InternalPage) shiftRight(from int) {
	n := int(p.Size())
	for i := n; i > from; i-- {
		p.setEntry(i, p.KeyAt(i-1), p.ValueAt(i-1))
	}
}

func (p *InternalPage) shiftLeft(from int) {
	n := int(p.Size())
	for i := from; i < n-1; i++ {
		p.setEntry(i, p.KeyAt(i+1), p.ValueAt(i+1))
	}
}

// PopulateNewRoot sets this (freshly allocated) page up as a new root with
// exactly two children separated by key.
func (p *InternalPage) PopulateNewRoot(left int32, key KeyType, right int32) {
	p.setEntry(0, KeyType{}, left)
	p.setEntry(1, key, right)
	p.setSize(2)
}

// InsertNodeAfter inserts (key, newChild) immediately after the entry for
// oldChild. Returns the new size.
func (p *InternalPage) InsertNodeAfter(oldChild int32, key KeyType, newChild int32) int32 {
	i := p.ValueIndex(oldChild)
	p.shiftRight(i + 1)
	p.setEntry(i+1, key, newChild)
	p.setSize(p.Size() + 1)
	return p.Size()
}

// Remove deletes the entry at slot i.
func (p *InternalPage) Remove(i int) {
	p.shiftLeft(i)
	p.setSize(p.Size() - 1)
}

// RemoveAndReturnOnlyChild empties a size-1 root and returns its sole child,
// used by AdjustRoot when promoting a new root.
func (p *InternalPage) RemoveAndReturnOnlyChild() int32 {
	child := p.ValueAt(0)
	p.setSize(0)
	return child
}

// MoveHalfTo moves the upper half of this node's entries to recipient
// (a freshly initialized internal page with the same max size), re-parenting
// every migrated child via reparent.
func (p *InternalPage) MoveHalfTo(recipient *InternalPage, reparent ReparentFunc) error {
	total := int(p.Size())
	half := total / 2
	for i := half; i < total; i++ {
		recipient.setEntry(i-half, p.KeyAt(i), p.ValueAt(i))
	}
	recipient.setSize(int32(total - half))
	p.setSize(int32(half))

	for i := 0; i < int(recipient.Size()); i++ {
		if err := reparent(recipient.ValueAt(i), recipient.PageID()); err != nil {
			return err
		}
	}
	return nil
}

// MoveAllTo appends all of this node's entries onto sibling (the left
// neighbor during a merge). middleKey becomes the separator for the first
// migrated child, whose slot-0 key was previously unused.
func (p *InternalPage) MoveAllTo(sibling *InternalPage, middleKey KeyType, reparent ReparentFunc) error {
	base := int(sibling.Size())
	n := int(p.Size())
	for i := 0; i < n; i++ {
		k := p.KeyAt(i)
		if i == 0 {
			k = middleKey
		}
		sibling.setEntry(base+i, k, p.ValueAt(i))
	}
	sibling.setSize(int32(base + n))
	p.setSize(0)

	for i := base; i < int(sibling.Size()); i++ {
		if err := reparent(sibling.ValueAt(i), sibling.PageID()); err != nil {
			return err
		}
	}
	return nil
}

// MoveFirstToEndOf moves this (right sibling) node's first child to the end
// of neighbor (the left node), using oldSeparator — the parent's current
// separator between neighbor and this node — as the key paired with the
// moved child in neighbor. It returns the key that must replace oldSeparator
// in the parent: this node's own second separator, freed by the shift.
func (p *InternalPage) MoveFirstToEndOf(neighbor *InternalPage, oldSeparator KeyType, reparent ReparentFunc) (KeyType, error) {
	movedChild := p.ValueAt(0)
	newSeparator := p.KeyAt(1)
	p.shiftLeft(0)
	p.setSize(p.Size() - 1)

	neighbor.setEntry(int(neighbor.Size()), oldSeparator, movedChild)
	neighbor.setSize(neighbor.Size() + 1)

	if err := reparent(movedChild, neighbor.PageID()); err != nil {
		return KeyType{}, err
	}
	return newSeparator, nil
}

// MoveLastToFrontOf moves this (left sibling) node's last child to the
// front of neighbor (the right node), using oldSeparator — the parent's
// current separator between this node and neighbor — as the key that lands
// in neighbor's slot 1. It returns the key that must replace oldSeparator
// in the parent: this node's own last separator, freed by the shrink.
func (p *InternalPage) MoveLastToFrontOf(neighbor *InternalPage, oldSeparator KeyType, reparent ReparentFunc) (KeyType, error) {
	last := int(p.Size()) - 1
	movedChild := p.ValueAt(last)
	newSeparator := p.KeyAt(last)
	p.setSize(p.Size() - 1)

	neighbor.shiftRight(0)
	neighbor.setEntry(0, KeyType{}, movedChild)
	neighbor.SetKeyAt(1, oldSeparator)
	neighbor.setSize(neighbor.Size() + 1)

	if err := reparent(movedChild, neighbor.PageID()); err != nil {
		return KeyType{}, err
	}
	return newSeparator, nil
}
