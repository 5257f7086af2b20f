package chunk

import (
	"github.com/pkg/errors"
)

// CheckInvariants gates the pool's debug-only bookkeeping: double-recycle
// detection, the only check it enables. Mirrors a single package-level
// switch, the same shape the teacher used for its own buffer invariants.
// Leave it off in production; it allocates a debug identity per borrow.
var CheckInvariants = false

// ErrDoubleRecycle is raised (in debug builds, see CheckInvariants) when a
// chunk is recycled a second time, or when a chunk not currently on loan
// from this pool is recycled.
var ErrDoubleRecycle = errors.New("chunk: recycled a chunk that was not on loan")

// Pool is a bounded free-list of reusable chunks of a single fixed
// capacity. Borrow and Recycle are safe for concurrent use by multiple
// goroutines; correctness requires that a recycled chunk have no
// outstanding references (see Chunk.Exclusive).
type Pool interface {
	// Borrow returns a chunk initialized to the empty state: readPosition =
	// writePosition = startGap = 0, limit = capacity. The pool applies no
	// reservation; the caller installs head/tail gaps via ReserveStart/
	// ReserveEnd before use.
	Borrow() *Chunk

	// Recycle accepts a chunk in any state, resets it, and either stores it
	// (if the pool is below its soft cap) or drops its memory. Recycling an
	// exclusively-owned chunk twice, or a chunk this pool did not issue, is
	// a programming error: in debug builds (CheckInvariants) it panics with
	// ErrDoubleRecycle.
	Recycle(c *Chunk)

	// ChunkCapacity is the fixed capacity of every chunk this pool issues.
	ChunkCapacity() int
}

// PoolOption configures a Pool built by NewPool.
type PoolOption func(*poolOptions)

type poolOptions struct {
	softCap int
}

// WithSoftCap overrides the number of idle chunks the pool will retain;
// beyond that, recycled chunks are dropped instead of pooled.
func WithSoftCap(n int) PoolOption {
	return func(o *poolOptions) { o.softCap = n }
}

const defaultSoftCap = 64

type pool struct {
	chunkCapacity int
	free          chan *Chunk
	debug         *debugTracker // nil unless CheckInvariants was true at construction
}

var _ Pool = (*pool)(nil)

// NewPool creates a Pool of chunks with the given fixed capacity.
func NewPool(chunkCapacity int, opts ...PoolOption) Pool {
	o := poolOptions{softCap: defaultSoftCap}
	for _, opt := range opts {
		opt(&o)
	}

	p := &pool{
		chunkCapacity: chunkCapacity,
		free:          make(chan *Chunk, o.softCap),
	}
	if CheckInvariants {
		p.debug = newDebugTracker()
	}
	return p
}

func (p *pool) ChunkCapacity() int { return p.chunkCapacity }

func (p *pool) Borrow() *Chunk {
	select {
	case c := <-p.free:
		c.resetEmpty()
		if p.debug != nil {
			p.debug.onBorrow(c)
		}
		return c
	default:
		c := newChunk(p.chunkCapacity)
		if p.debug != nil {
			p.debug.onBorrow(c)
		}
		return c
	}
}

func (p *pool) Recycle(c *Chunk) {
	if c == Sentinel() {
		return
	}

	if !c.Exclusive() {
		if c.ReleaseShared() {
			// fall through: this was the last reference, so the chunk is
			// now exclusively owned by this call and can return to the pool.
		} else {
			return
		}
	}

	if p.debug != nil {
		p.debug.onRecycle(c)
	}

	c.resetEmpty()
	select {
	case p.free <- c:
	default:
		// Over the soft cap: drop the chunk's memory.
	}
}
