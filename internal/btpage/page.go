// Package btpage defines the on-disk layout of B+Tree index pages: a shared
// header plus two typed views (internal and leaf) over the same fixed-size
// byte buffer.
package btpage

import (
	"github.com/novasql/corestore/pkg/bx"
)

// PageType distinguishes an internal node from a leaf node. Stored as the
// first header field so a raw buffer can be dispatched to the right view.
type PageType uint16

const (
	InvalidPageType PageType = iota
	InternalPageType
	LeafPageType
)

// InvalidPageID is the sentinel for "no page" (unset parent, unset sibling,
// empty tree).
const InvalidPageID int32 = -1

// KeyType is the tree's comparison key. Wrapped in a struct, rather than a
// bare int64, so call sites read as KeyType{5} and a future widening of the
// key domain doesn't change every signature.
type KeyType struct {
	Value int64
}

// Comparator orders two keys: negative if a<b, zero if equal, positive if
// a>b.
type Comparator func(a, b KeyType) int

// DefaultComparator orders keys by their underlying int64 value.
func DefaultComparator(a, b KeyType) int {
	switch {
	case a.Value < b.Value:
		return -1
	case a.Value > b.Value:
		return 1
	default:
		return 0
	}
}

const (
	keySize = 8 // encoded KeyType width

	// header layout, fixed regardless of node kind.
	offPageType     = 0
	offLSN          = 4
	offSize         = 8
	offMaxSize      = 12
	offParentPageID = 16
	offPageID       = 20
	HeaderSize      = 24
)

// Header is the decoded form of the fixed-offset fields every tree page
// begins with.
type Header struct {
	PageType     PageType
	LSN          uint32
	Size         int32
	MaxSize      int32
	ParentPageID int32
	PageID       int32
}

func readHeader(buf []byte) Header {
	return Header{
		PageType:     PageType(bx.U16At(buf, offPageType)),
		LSN:          bx.U32At(buf, offLSN),
		Size:         bx.I32At(buf, offSize),
		MaxSize:      bx.I32At(buf, offMaxSize),
		ParentPageID: bx.I32At(buf, offParentPageID),
		PageID:       bx.I32At(buf, offPageID),
	}
}

func writeHeader(buf []byte, h Header) {
	bx.PutU16At(buf, offPageType, uint16(h.PageType))
	bx.PutU32At(buf, offLSN, h.LSN)
	bx.PutI32At(buf, offSize, h.Size)
	bx.PutI32At(buf, offMaxSize, h.MaxSize)
	bx.PutI32At(buf, offParentPageID, h.ParentPageID)
	bx.PutI32At(buf, offPageID, h.PageID)
}

func encodeKey(buf []byte, off int, k KeyType) {
	bx.PutU64At(buf, off, uint64(k.Value))
}

func decodeKey(buf []byte, off int) KeyType {
	return KeyType{Value: int64(bx.U64At(buf, off))}
}

// ReadPageType peeks the type tag of a raw buffer without constructing a
// full view, so callers can dispatch to NewLeafPage or NewInternalPage.
func ReadPageType(buf []byte) PageType {
	return PageType(bx.U16At(buf, offPageType))
}
