package clockx

// Adapter exposes a Clock through the Pin/Unpin/Victim/Remove/Size shape the
// buffer pool expects, so CLOCK can be swapped in for LRU as a replacement
// policy without the pool knowing the difference.
type Adapter struct {
	c *Clock
}

// NewAdapter wraps a fixed-capacity Clock for use as a buffer pool replacer.
func NewAdapter(capacity int) *Adapter {
	return &Adapter{c: New(capacity)}
}

// Unpin marks frameID present and evictable, giving it a fresh reference bit.
func (a *Adapter) Unpin(frameID int) {
	a.c.Touch(frameID)
	a.c.SetEvictable(frameID, true)
}

// Pin marks frameID non-evictable.
func (a *Adapter) Pin(frameID int) {
	a.c.SetEvictable(frameID, false)
}

// Victim runs the clock hand until it finds an evictable frame with a clear
// reference bit, or exhausts two full sweeps.
func (a *Adapter) Victim() (int, bool) {
	id, ok := a.c.Evict()
	if !ok {
		return 0, false
	}
	return id, true
}

// Remove drops frameID from tracking entirely.
func (a *Adapter) Remove(frameID int) {
	a.c.Remove(frameID)
}

// Size reports the number of evictable frames.
func (a *Adapter) Size() int {
	return a.c.Size()
}
