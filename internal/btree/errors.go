package btree

import "errors"

// ErrKeyNotFound is returned by operations that require an existing key
// (none currently return it as an error; GetValue/Remove report absence via
// their bool/no-op return instead, per the tree's external contract).
var ErrKeyNotFound = errors.New("btree: key not found")

// ErrDuplicateKey marks an Insert of an already-present key. Insert itself
// returns (false, nil) for this case; the sentinel exists for callers that
// want to errors.Is-check a wrapped failure from a higher layer.
var ErrDuplicateKey = errors.New("btree: duplicate key")

// ErrOutOfMemory surfaces bufferpool.ErrNoFreeFrame at the tree boundary.
var ErrOutOfMemory = errors.New("btree: out of memory, no free frame")

// ErrTreeClosed is returned by any operation attempted after Close.
var ErrTreeClosed = errors.New("btree: tree is closed")
