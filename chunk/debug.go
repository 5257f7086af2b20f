package chunk

import (
	"sync"

	"github.com/google/uuid"

	"github.com/mel2oo/bytesio/sets"
)

// debugTracker records which chunks a pool currently considers on loan, by
// assigning each borrowed chunk a debug identity (a uuid.UUID, the same
// typed-wrapper-over-uuid pattern the teacher used for its domain IDs,
// narrowed here to a single debug-only identifier). It exists only to
// enforce spec.md's requirement that recycling a chunk twice "must be
// detectable in debug builds"; CheckInvariants gates its use entirely.
type debugTracker struct {
	mu          sync.Mutex
	outstanding sets.Set[uuid.UUID]
}

func newDebugTracker() *debugTracker {
	return &debugTracker{outstanding: sets.NewSet[uuid.UUID]()}
}

func (d *debugTracker) onBorrow(c *Chunk) {
	c.debugID = uuid.New()
	c.hasDebugID = true

	d.mu.Lock()
	defer d.mu.Unlock()
	d.outstanding.Insert(c.debugID)
}

func (d *debugTracker) onRecycle(c *Chunk) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !c.hasDebugID || !d.outstanding.Contains(c.debugID) {
		panic(ErrDoubleRecycle)
	}
	d.outstanding.Delete(c.debugID)
}
