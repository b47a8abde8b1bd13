package bufferpool

import "errors"

// ErrNoFreeFrame is returned by FetchPage/NewPage when every frame is
// pinned and the replacer has no evictable victim.
var ErrNoFreeFrame = errors.New("bufferpool: no free frame available")

// ErrPagePinned is returned by DeletePage when the target page is still
// pinned by some caller.
var ErrPagePinned = errors.New("bufferpool: page is pinned")

// ErrInvalidPageID is returned for operations given bufferpool.InvalidPageID.
var ErrInvalidPageID = errors.New("bufferpool: invalid page id")
