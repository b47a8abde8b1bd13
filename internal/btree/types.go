package btree

import (
	"github.com/novasql/corestore/internal/btpage"
	"github.com/novasql/corestore/internal/rid"
)

// KeyType, Comparator, and RID are re-exported so callers of this package
// never need to import internal/btpage or internal/rid directly.
type (
	KeyType    = btpage.KeyType
	Comparator = btpage.Comparator
	RID        = rid.RID
)

// DefaultComparator orders keys by their underlying int64 value.
var DefaultComparator = btpage.DefaultComparator
