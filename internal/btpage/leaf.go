package btpage

import (
	"github.com/novasql/corestore/internal/rid"
	"github.com/novasql/corestore/pkg/bx"
)

const (
	offNextPageID = HeaderSize
	leafDataStart = HeaderSize + 4 // next_page_id trailer

	leafEntrySize  = keySize + 8 // key + RID(PageID u32, Slot u16, pad u16)
	leafRIDPageOff = keySize
	leafRIDSlotOff = keySize + 4
)

// LeafPage is a typed view over a raw page buffer holding sorted (key, RID)
// pairs plus a sibling pointer.
type LeafPage struct {
	buf []byte
}

// NewLeafPage initializes buf as an empty leaf with the given identity.
func NewLeafPage(buf []byte, pageID, parentPageID, maxSize int32) *LeafPage {
	writeHeader(buf, Header{
		PageType:     LeafPageType,
		Size:         0,
		MaxSize:      maxSize,
		ParentPageID: parentPageID,
		PageID:       pageID,
	})
	bx.PutI32At(buf, offNextPageID, InvalidPageID)
	return &LeafPage{buf: buf}
}

// LoadLeafPage wraps an existing buffer already containing a leaf image.
func LoadLeafPage(buf []byte) *LeafPage {
	return &LeafPage{buf: buf}
}

func (p *LeafPage) header() Header       { return readHeader(p.buf) }
func (p *LeafPage) setSize(n int32)      { bx.PutI32At(p.buf, offSize, n) }
func (p *LeafPage) Size() int32          { return p.header().Size }
func (p *LeafPage) MaxSize() int32       { return p.header().MaxSize }
func (p *LeafPage) PageID() int32        { return p.header().PageID }
func (p *LeafPage) ParentPageID() int32  { return p.header().ParentPageID }
func (p *LeafPage) SetParentPageID(id int32) {
	bx.PutI32At(p.buf, offParentPageID, id)
}

// MinSize is the teaching-convention floor: ceil((max_size-1)/2).
func (p *LeafPage) MinSize() int32 {
	m := p.MaxSize()
	return (m - 1 + 1) / 2
}

func (p *LeafPage) NextPageID() int32 { return bx.I32At(p.buf, offNextPageID) }
func (p *LeafPage) SetNextPageId(id int32) {
	bx.PutI32At(p.buf, offNextPageID, id)
}

func (p *LeafPage) entryOff(i int) int { return leafDataStart + i*leafEntrySize }

// KeyAt returns the key stored at slot i.
func (p *LeafPage) KeyAt(i int) KeyType {
	return decodeKey(p.buf, p.entryOff(i))
}

func (p *LeafPage) valueAt(i int) rid.RID {
	off := p.entryOff(i)
	return rid.RID{
		PageID: bx.U32At(p.buf, off+leafRIDPageOff),
		Slot:   bx.U16At(p.buf, off+leafRIDSlotOff),
	}
}

func (p *LeafPage) setEntry(i int, k KeyType, v rid.RID) {
	off := p.entryOff(i)
	encodeKey(p.buf, off, k)
	bx.PutU32At(p.buf, off+leafRIDPageOff, v.PageID)
	bx.PutU16At(p.buf, off+leafRIDSlotOff, v.Slot)
}

// GetItem returns the (key, value) pair at slot i.
func (p *LeafPage) GetItem(i int) (KeyType, rid.RID) {
	return p.KeyAt(i), p.valueAt(i)
}

// KeyIndex returns the first slot whose key is >= target.
func (p *LeafPage) KeyIndex(target KeyType, cmp Comparator) int {
	n := int(p.Size())
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(p.KeyAt(mid), target) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Lookup finds the value for key via binary search.
func (p *LeafPage) Lookup(key KeyType, cmp Comparator) (rid.RID, bool) {
	i := p.KeyIndex(key, cmp)
	if i < int(p.Size()) && cmp(p.KeyAt(i), key) == 0 {
		return p.valueAt(i), true
	}
	return rid.RID{}, false
}

func (p *LeafPage) shiftRight(from int) {
	n := int(p.Size())
	for i := n; i > from; i-- {
		k, v := p.GetItem(i - 1)
		p.setEntry(i, k, v)
	}
}

func (p *LeafPage) shiftLeft(from int) {
	n := int(p.Size())
	for i := from; i < n-1; i++ {
		k, v := p.GetItem(i + 1)
		p.setEntry(i, k, v)
	}
}

// Insert places (key,value) in sorted position. Returns the new size, and
// false if key is already present (caller enforces uniqueness).
func (p *LeafPage) Insert(key KeyType, value rid.RID, cmp Comparator) (int32, bool) {
	i := p.KeyIndex(key, cmp)
	if i < int(p.Size()) && cmp(p.KeyAt(i), key) == 0 {
		return p.Size(), false
	}
	p.shiftRight(i)
	p.setEntry(i, key, value)
	p.setSize(p.Size() + 1)
	return p.Size(), true
}

// RemoveAndDeleteRecord removes key if present, returning the new size.
func (p *LeafPage) RemoveAndDeleteRecord(key KeyType, cmp Comparator) int32 {
	i := p.KeyIndex(key, cmp)
	if i >= int(p.Size()) || cmp(p.KeyAt(i), key) != 0 {
		return p.Size()
	}
	p.shiftLeft(i)
	p.setSize(p.Size() - 1)
	return p.Size()
}

// MoveHalfTo moves the upper half of this leaf's entries to recipient, which
// must be a freshly initialized leaf with the same max size.
func (p *LeafPage) MoveHalfTo(recipient *LeafPage) {
	total := int(p.Size())
	half := total / 2
	for i := half; i < total; i++ {
		k, v := p.GetItem(i)
		recipient.setEntry(i-half, k, v)
	}
	recipient.setSize(int32(total - half))
	p.setSize(int32(half))

	recipient.SetNextPageId(p.NextPageID())
	p.SetNextPageId(recipient.PageID())
}

// MoveAllTo appends all of this leaf's entries onto the left sibling and
// forwards the sibling chain, leaving this leaf empty.
func (p *LeafPage) MoveAllTo(sibling *LeafPage) {
	base := int(sibling.Size())
	n := int(p.Size())
	for i := 0; i < n; i++ {
		k, v := p.GetItem(i)
		sibling.setEntry(base+i, k, v)
	}
	sibling.setSize(int32(base + n))
	sibling.SetNextPageId(p.NextPageID())
	p.setSize(0)
}

// MoveFirstToEndOf moves this leaf's first entry to the end of neighbor
// (redistribution, right-to-left).
func (p *LeafPage) MoveFirstToEndOf(neighbor *LeafPage) {
	k, v := p.GetItem(0)
	p.shiftLeft(0)
	p.setSize(p.Size() - 1)
	neighbor.setEntry(int(neighbor.Size()), k, v)
	neighbor.setSize(neighbor.Size() + 1)
}

// MoveLastToFrontOf moves this leaf's last entry to the front of neighbor
// (redistribution, left-to-right).
func (p *LeafPage) MoveLastToFrontOf(neighbor *LeafPage) {
	last := int(p.Size()) - 1
	k, v := p.GetItem(last)
	p.setSize(p.Size() - 1)
	neighbor.shiftRight(0)
	neighbor.setEntry(0, k, v)
	neighbor.setSize(neighbor.Size() + 1)
}
