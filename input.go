package bytesio

import (
	"math"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/mel2oo/bytesio/chunk"
	"github.com/mel2oo/bytesio/optionals"
)

// Input is a buffered, pull-style reader over a FillSource. It holds a pool
// reference, the currently active chunk (whose own read/write cursors are
// Input's "position" and "limit" — there is no separate bookkeeping for
// them), and an optional recorded Chain used to support nested, rewindable
// Preview sessions.
//
// previewDiscard and chain together encode the three-state machine
// described in SPEC_FULL.md: Idle (previewDiscard true, chain absent),
// Recording (previewDiscard false, inside at least one open Preview),
// Draining (previewDiscard true, chain present with entries still to
// replay). previewIndex is always 0 whenever previewDiscard is true; it
// only advances past 0 while Recording.
type Input struct {
	pool   chunk.Pool
	source FillSource

	active         *chunk.Chunk
	chain          optionals.Optional[*chunk.Chain]
	previewIndex   int
	previewDiscard bool

	previewStack []previewSave
	closed       bool
}

type previewSave struct {
	chunk    *chunk.Chunk
	position int
	index    int
	discard  bool
}

// InputOption configures a newly constructed Input.
type InputOption func(*inputOptions)

type inputOptions struct {
	seed []*chunk.Chunk
}

// WithSeedChunks pre-populates an Input with chunks that already hold
// fetched bytes, bypassing FillSource entirely until they are exhausted.
// Packet.AsInput uses this to hand an already-complete chunk chain to a
// fresh Input.
func WithSeedChunks(chunks ...*chunk.Chunk) InputOption {
	return func(o *inputOptions) {
		o.seed = chunks
	}
}

// NewInput constructs an Input that pulls from source, borrowing chunks
// from pool as needed.
func NewInput(pool chunk.Pool, source FillSource, opts ...InputOption) *Input {
	var o inputOptions
	for _, opt := range opts {
		opt(&o)
	}

	in := &Input{
		pool:           pool,
		source:         source,
		previewDiscard: true,
	}

	if len(o.seed) > 0 {
		in.active = o.seed[0]
		if len(o.seed) > 1 {
			c := chunk.NewChain()
			for _, sc := range o.seed {
				c.Append(sc, sc.WritePos())
			}
			in.chain = optionals.Some(c)
		}
	} else {
		// fillFromSource only ever refills the current active chunk in
		// place; it never borrows on its own, so the active chunk must
		// start out as a real, writable chunk rather than the zero-capacity
		// Sentinel.
		in.active = in.pool.Borrow()
	}

	return in
}

// fetchCachedOrFill is the single junction every exhaustion path funnels
// through. Its behavior is dictated entirely by (previewDiscard, chain):
//
//	discard=true,  chain absent  -> refill the active chunk in place
//	discard=true,  chain present -> drop the chain's head, bind the next
//	                                 recorded chunk as active (Draining)
//	discard=false, chain absent  -> seed a chain with the active chunk,
//	                                 then fall into the next case
//	discard=false, chain present -> reuse the next already-recorded chunk
//	                                 if one exists, else borrow, fill, and
//	                                 append a new one (Recording)
//
// It returns the number of bytes now available in the (possibly new)
// active chunk; 0 means the source is at EOF and no cached bytes remain.
func (in *Input) fetchCachedOrFill() (int, error) {
	if in.previewDiscard {
		if ch, ok := in.chain.Get(); ok {
			old := ch.DiscardFirst()
			in.pool.Recycle(old)
			if ch.IsEmpty() {
				in.chain = optionals.None[*chunk.Chain]()
				// old is now back in the pool's free list; borrow a
				// fresh chunk rather than keep writing into it in place.
				in.active = in.pool.Borrow()
				return in.fillFromSource()
			}
			var next *chunk.Chunk
			ch.Pointed(0, func(c *chunk.Chunk, _ int) { next = c })
			in.active = next
			return in.active.ReadRemaining(), nil
		}
		return in.fillFromSource()
	}

	ch, ok := in.chain.Get()
	if !ok {
		ch = chunk.NewChain()
		ch.Append(in.active, in.active.WritePos())
		in.chain = optionals.Some(ch)
		in.previewIndex = 0
	}
	return in.fillAndStoreInPreview(ch)
}

func (in *Input) fillFromSource() (int, error) {
	in.active.RewindForRefill()
	n, err := in.source.Fill(in.active.WritableSlice())
	if err != nil {
		return 0, err
	}
	in.active.CommitWrite(n)
	return n, nil
}

func (in *Input) fillAndStoreInPreview(ch *chunk.Chain) (int, error) {
	if ch.Size(in.previewIndex+1) > 0 {
		var next *chunk.Chunk
		ch.Pointed(in.previewIndex+1, func(c *chunk.Chunk, _ int) { next = c })
		in.previewIndex++
		in.active = next
		return in.active.ReadRemaining(), nil
	}

	c := in.pool.Borrow()
	n, err := in.source.Fill(c.WritableSlice())
	if err != nil {
		in.pool.Recycle(c)
		return 0, errors.Wrap(err, "bytesio: fill during preview")
	}
	if n == 0 {
		in.pool.Recycle(c)
		return 0, nil
	}
	c.CommitWrite(n)
	ch.Append(c, c.WritePos())
	in.previewIndex++
	in.active = c
	return n, nil
}

// Preview records the current cursor, invokes fn, then restores the
// cursor, so that fn observes a prefix of the stream without consuming it.
// Previews nest: only the outermost call owns the recorded chain used to
// make the rewind possible. It is a package-level function, not a method,
// because fn's result type is generic and Go methods cannot carry their
// own type parameters.
func Preview[R any](in *Input, fn func() (R, error)) (R, error) {
	var zero R
	if err := in.beginPreview(); err != nil {
		return zero, err
	}
	defer in.endPreview()
	return fn()
}

func (in *Input) beginPreview() error {
	save := previewSave{
		chunk:    in.active,
		position: in.active.Position(),
		index:    in.previewIndex,
		discard:  in.previewDiscard,
	}
	chainWasPresent := in.chain.IsSome()
	in.previewDiscard = false

	if in.active.Exhausted() {
		n, err := in.fetchCachedOrFill()
		if err != nil {
			in.unwindFailedPreview(save, chainWasPresent)
			return err
		}
		if n == 0 {
			in.unwindFailedPreview(save, chainWasPresent)
			return errEOF()
		}
	}

	in.previewStack = append(in.previewStack, save)
	return nil
}

func (in *Input) unwindFailedPreview(save previewSave, chainWasPresent bool) {
	in.previewDiscard = save.discard
	in.active = save.chunk
	save.chunk.SetPosition(save.position)
	in.previewIndex = save.index
	if !chainWasPresent {
		in.chain = optionals.None[*chunk.Chain]()
	}
}

func (in *Input) endPreview() {
	n := len(in.previewStack)
	save := in.previewStack[n-1]
	in.previewStack = in.previewStack[:n-1]

	currentIndex := in.previewIndex

	in.active = save.chunk
	save.chunk.SetPosition(save.position)
	in.previewIndex = save.index

	// Every entry recorded strictly after this preview's own starting
	// entry was read only by this preview's own forward walk — never by a
	// real read, and (for a nested preview) never by the enclosing
	// preview either. Rewind them so whoever resumes next, nested or
	// real, sees them unconsumed. This applies whether or not this is the
	// outermost preview: an inner preview ending must not leave its own
	// reads looking already-consumed to the still-recording outer preview
	// that resumes after it.
	if currentIndex > save.index {
		if ch, ok := in.chain.Get(); ok {
			ch.ResetReadCursorsFrom(save.index)
		}
	}

	if !save.discard {
		// Not the outermost preview; the owner below us is still
		// Recording and still owns the chain.
		return
	}

	in.previewDiscard = true
	if currentIndex == 0 {
		if ch, ok := in.chain.Get(); ok && ch.Size(1) == 0 {
			// Nothing is recorded beyond the chunk we started on:
			// drop the bookkeeping chain and go Idle.
			in.chain = optionals.None[*chunk.Chain]()
		}
	}
	// Otherwise further chunks remain recorded ahead of the restored
	// position; stay in Draining so future reads replay and discard them
	// in order.
}

func (in *Input) readUint(k int) (uint64, error) {
	if in.active.ReadRemaining() >= k {
		switch k {
		case 1:
			b, _ := in.active.ReadByte()
			return uint64(b), nil
		case 2:
			return uint64(in.active.ReadUint16()), nil
		case 4:
			return uint64(in.active.ReadUint32()), nil
		case 8:
			return in.active.ReadUint64(), nil
		}
	}
	return in.readUintSlow(k)
}

func (in *Input) readUintSlow(k int) (uint64, error) {
	var result uint64
	for remaining := k; remaining > 0; remaining-- {
		if in.active.Exhausted() {
			n, err := in.fetchCachedOrFill()
			if err != nil {
				return 0, err
			}
			if n == 0 {
				return 0, errEOF()
			}
		}
		b, _ := in.active.ReadByte()
		result = (result << 8) | uint64(b)
	}
	return result, nil
}

// ReadByte reads one byte.
func (in *Input) ReadByte() (byte, error) {
	v, err := in.readUint(1)
	return byte(v), err
}

// ReadShort reads a 16-bit big-endian signed integer.
func (in *Input) ReadShort() (int16, error) {
	v, err := in.readUint(2)
	return int16(v), err
}

// ReadInt reads a 32-bit big-endian signed integer.
func (in *Input) ReadInt() (int32, error) {
	v, err := in.readUint(4)
	return int32(v), err
}

// ReadLong reads a 64-bit big-endian signed integer.
func (in *Input) ReadLong() (int64, error) {
	v, err := in.readUint(8)
	return int64(v), err
}

// ReadFloat reads a 32-bit big-endian IEEE-754 float.
func (in *Input) ReadFloat() (float32, error) {
	v, err := in.readUint(4)
	return math.Float32frombits(uint32(v)), err
}

// ReadDouble reads a 64-bit big-endian IEEE-754 float.
func (in *Input) ReadDouble() (float64, error) {
	v, err := in.readUint(8)
	return math.Float64frombits(v), err
}

// ReadShortLE, ReadIntLE, ReadLongLE, ReadFloatLE, ReadDoubleLE read the
// same primitives with the bytes in little-endian order.
func (in *Input) ReadShortLE() (int16, error) {
	v, err := in.readUint(2)
	return int16(bits.ReverseBytes16(uint16(v))), err
}

func (in *Input) ReadIntLE() (int32, error) {
	v, err := in.readUint(4)
	return int32(bits.ReverseBytes32(uint32(v))), err
}

func (in *Input) ReadLongLE() (int64, error) {
	v, err := in.readUint(8)
	return int64(bits.ReverseBytes64(v)), err
}

func (in *Input) ReadFloatLE() (float32, error) {
	v, err := in.readUint(4)
	return math.Float32frombits(bits.ReverseBytes32(uint32(v))), err
}

func (in *Input) ReadDoubleLE() (float64, error) {
	v, err := in.readUint(8)
	return math.Float64frombits(bits.ReverseBytes64(v)), err
}

// ReadFully fills dst completely, returning ErrEOF if the source runs out
// first.
func (in *Input) ReadFully(dst []byte) error {
	got := 0
	for got < len(dst) {
		if in.active.Exhausted() {
			n, err := in.fetchCachedOrFill()
			if err != nil {
				return err
			}
			if n == 0 {
				return errEOF()
			}
		}
		got += in.active.ReadInto(dst[got:])
	}
	return nil
}

// ReadAvailable copies whatever is immediately available into dst, draining
// as many already-cached chunks as it takes to either fill dst or run dry,
// but pulling from the underlying source at most once. It never fails on a
// clean EOF: it returns (0, nil) instead.
func (in *Input) ReadAvailable(dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	got := 0
	filled := false
	for got < len(dst) {
		if in.active.Exhausted() {
			willFill := !in.hasCachedEntryAhead()
			if willFill && filled {
				break
			}
			n, err := in.fetchCachedOrFill()
			if err != nil {
				return got, err
			}
			if n == 0 {
				break
			}
			if willFill {
				filled = true
			}
		}
		got += in.active.ReadInto(dst[got:])
	}
	return got, nil
}

// hasCachedEntryAhead reports whether, once the active chunk is exhausted,
// fetchCachedOrFill can hand back the next chunk straight from the recorded
// chain, with no call into the underlying FillSource.
func (in *Input) hasCachedEntryAhead() bool {
	ch, ok := in.chain.Get()
	if !ok {
		return false
	}
	if in.previewDiscard {
		return !ch.IsEmpty()
	}
	return ch.Size(in.previewIndex+1) > 0
}

// ReadAvailableTo drains whatever is immediately available directly into
// out. When this Input has nothing cached and out shares this Input's
// pool, the transfer is zero-copy: the source fills directly into out's
// tail chunk. Otherwise the bytes are copied through an intermediate
// buffer. Returns (0, nil) on a clean EOF.
func (in *Input) ReadAvailableTo(out *Output) (int, error) {
	if in.active.Exhausted() && in.chain.IsNone() && out.sharesPool(in.pool) {
		region := out.reserveWritable()
		if len(region) == 0 {
			return 0, nil
		}
		n, err := in.source.Fill(region)
		if err != nil {
			return 0, err
		}
		out.commitWrite(n)
		return n, nil
	}

	buf := make([]byte, defaultTransferBufferSize)
	n, err := in.ReadAvailable(buf)
	if err != nil || n == 0 {
		return n, err
	}
	if _, werr := out.WriteFully(buf[:n]); werr != nil {
		return 0, werr
	}
	return n, nil
}

const defaultTransferBufferSize = 4096

// Discard advances past n bytes without returning them, pulling further
// chunks as needed. Returns ErrEOF if the source runs out first.
func (in *Input) Discard(n int) error {
	if n < 0 {
		return errArgumentf("discard: negative count %d", n)
	}
	remaining := n
	for remaining > 0 {
		avail := in.active.ReadRemaining()
		if avail == 0 {
			got, err := in.fetchCachedOrFill()
			if err != nil {
				return err
			}
			if got == 0 {
				return errEOF()
			}
			continue
		}
		take := remaining
		if take > avail {
			take = avail
		}
		in.active.SetPosition(in.active.Position() + take)
		remaining -= take
	}
	return nil
}

// Prefetch ensures at least n bytes are visible across the active chunk
// plus any additional chunks this Input is willing to retain, opening a
// recorded chain if one is not already open and borrowing/filling further
// chunks as needed. Returns true once n bytes are visible, false if the
// source reached EOF first.
func (in *Input) Prefetch(n int) (bool, error) {
	if n <= 0 {
		return true, nil
	}

	total := in.active.ReadRemaining()
	if ch, ok := in.chain.Get(); ok {
		sizes := ch.Sizes()
		for i := in.previewIndex + 1; i < len(sizes); i++ {
			total += sizes[i]
		}
	}
	if total >= n {
		return true, nil
	}

	ch, ok := in.chain.Get()
	if !ok {
		ch = chunk.NewChain()
		ch.Append(in.active, in.active.WritePos())
		in.chain = optionals.Some(ch)
		in.previewIndex = 0
	}

	for total < n {
		c := in.pool.Borrow()
		got, err := in.source.Fill(c.WritableSlice())
		if err != nil {
			in.pool.Recycle(c)
			return false, errors.Wrap(err, "bytesio: fill during prefetch")
		}
		if got == 0 {
			in.pool.Recycle(c)
			return false, nil
		}
		c.CommitWrite(got)
		ch.Append(c, c.WritePos())
		total += got
	}
	return true, nil
}

// EOF reports whether the stream has no more bytes, pulling from the
// source once if the active chunk is currently exhausted.
func (in *Input) EOF() (bool, error) {
	if !in.active.Exhausted() {
		return false, nil
	}
	n, err := in.fetchCachedOrFill()
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Close recycles every chunk this Input still holds, whether active or
// tucked away in a recorded chain, and closes the underlying FillSource.
// Every retained chunk is recycled exactly once, regardless of how far
// into a preview session Close happens to be called.
func (in *Input) Close() error {
	if in.closed {
		return errStatef("input already closed")
	}
	in.closed = true

	if ch, ok := in.chain.Get(); ok {
		for !ch.IsEmpty() {
			in.pool.Recycle(ch.DiscardFirst())
		}
		in.chain = optionals.None[*chunk.Chain]()
	} else {
		in.pool.Recycle(in.active)
	}
	in.active = chunk.Sentinel()

	return in.source.Close()
}
