package chunk

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Chunk is a fixed-capacity Memory region plus the four cursors that carve
// it into a reserved head gap, a readable/writable body, and a reserved tail
// gap:
//
//	0 <= startGap <= readPosition <= writePosition <= limit <= capacity
//
// startGap reserves space for later prepending a header; endGap (capacity -
// limit) reserves space for a trailer. A Chunk links into singly-linked
// chains via next and may appear in at most one chain at a time, except
// when shared read-only (see MakeReadOnly).
type Chunk struct {
	mem      Memory
	capacity int

	startGap      int
	readPosition  int
	writePosition int
	limit         int

	next *Chunk

	// refcount is nil for an exclusively-owned chunk. MakeReadOnly installs
	// it (starting at 1) the first time a chunk must be shared, e.g. when a
	// builder freezes its chain into a Packet.
	refcount *int32

	// debugID is populated only while CheckInvariants is enabled; see
	// debug.go. It lets the pool detect a chunk recycled twice.
	debugID    uuid.UUID
	hasDebugID bool
}

// sentinel is the distinct empty chunk: zero capacity, always exhausted and
// always full, never issued by a Pool and never recycled into one. Output
// uses it as the "no chunk yet" placeholder for its head and tail, and
// Input installs it as its active chunk once closed, so that those fields
// are never nil.
var sentinel = &Chunk{}

// Sentinel returns the shared empty chunk.
func Sentinel() *Chunk { return sentinel }

func newChunk(capacity int) *Chunk {
	return &Chunk{
		mem:      NewMemory(capacity),
		capacity: capacity,
		limit:    capacity,
	}
}

// resetEmpty restores a chunk to the state Pool.Borrow documents: no
// reservation, cursors collapsed to zero, full capacity available to write.
func (c *Chunk) resetEmpty() {
	c.startGap = 0
	c.readPosition = 0
	c.writePosition = 0
	c.limit = c.capacity
	c.next = nil
	c.refcount = nil
	c.hasDebugID = false
}

// ReserveStart installs a head gap of n bytes, for a caller (typically a
// writer) that wants room to prepend a header later. Must be called only on
// an otherwise-empty chunk.
func (c *Chunk) ReserveStart(n int) {
	c.startGap = n
	c.readPosition = n
	c.writePosition = n
}

// ReserveEnd installs a tail gap of n bytes, reserving room for a trailer.
func (c *Chunk) ReserveEnd(n int) {
	c.limit = c.capacity - n
}

func (c *Chunk) Capacity() int  { return c.capacity }
func (c *Chunk) StartGap() int  { return c.startGap }
func (c *Chunk) EndGap() int    { return c.capacity - c.limit }
func (c *Chunk) Limit() int     { return c.limit }
func (c *Chunk) Position() int  { return c.readPosition }
func (c *Chunk) WritePos() int  { return c.writePosition }
func (c *Chunk) Next() *Chunk   { return c.next }
func (c *Chunk) SetNext(n *Chunk) { c.next = n }

// ReadRemaining is the number of unread bytes available in this chunk.
func (c *Chunk) ReadRemaining() int { return c.writePosition - c.readPosition }

// WriteRemaining is the number of bytes of room left before the tail gap.
func (c *Chunk) WriteRemaining() int { return c.limit - c.writePosition }

// Exhausted reports whether there is nothing left to read in this chunk.
func (c *Chunk) Exhausted() bool { return c.ReadRemaining() == 0 }

// Full reports whether there is no room left to write in this chunk.
func (c *Chunk) Full() bool { return c.WriteRemaining() == 0 }

// SetPosition rewinds or advances the read cursor directly; used by preview
// to restore a saved position within the active chunk.
func (c *Chunk) SetPosition(p int) { c.readPosition = p }

// SetWritePosition moves the write cursor directly.
func (c *Chunk) SetWritePosition(p int) { c.writePosition = p }

// SetLimit narrows or restores the usable write boundary; used by
// Output's splice path to freeze a spliced chunk against further writes.
func (c *Chunk) SetLimit(l int) { c.limit = l }

// SetStartGap is used by the prepend-merge path in Output.WritePacket after
// bytes have been copied into a foreign chunk's reserved head gap.
func (c *Chunk) SetStartGap(g int) { c.startGap = g }

// ReadByte reads and advances past one byte. ok is false if the chunk is
// exhausted.
func (c *Chunk) ReadByte() (b byte, ok bool) {
	if c.Exhausted() {
		return 0, false
	}
	b = c.mem.GetByte(c.readPosition)
	c.readPosition++
	return b, true
}

// WriteByte writes and advances past one byte. ok is false if the chunk is
// full.
func (c *Chunk) WriteByte(b byte) (ok bool) {
	if c.Full() {
		return false
	}
	c.mem.PutByte(c.writePosition, b)
	c.writePosition++
	return true
}

// ReadUint16/ReadUint32/ReadUint64 are the fast-path contiguous reads used
// when ReadRemaining() is already known to be >= the primitive's width.
func (c *Chunk) ReadUint16() uint16 {
	v := c.mem.GetUint16(c.readPosition)
	c.readPosition += 2
	return v
}

func (c *Chunk) ReadUint32() uint32 {
	v := c.mem.GetUint32(c.readPosition)
	c.readPosition += 4
	return v
}

func (c *Chunk) ReadUint64() uint64 {
	v := c.mem.GetUint64(c.readPosition)
	c.readPosition += 8
	return v
}

// WriteUint16/WriteUint32/WriteUint64 are the fast-path contiguous writes
// used when WriteRemaining() is already known to be >= the primitive's
// width.
func (c *Chunk) WriteUint16(v uint16) {
	c.mem.PutUint16(c.writePosition, v)
	c.writePosition += 2
}

func (c *Chunk) WriteUint32(v uint32) {
	c.mem.PutUint32(c.writePosition, v)
	c.writePosition += 4
}

func (c *Chunk) WriteUint64(v uint64) {
	c.mem.PutUint64(c.writePosition, v)
	c.writePosition += 8
}

// ReadFloat32/ReadFloat64 are the fast-path contiguous reads used when
// ReadRemaining() is already known to be >= the primitive's width.
func (c *Chunk) ReadFloat32() float32 {
	v := c.mem.GetFloat32(c.readPosition)
	c.readPosition += 4
	return v
}

func (c *Chunk) ReadFloat64() float64 {
	v := c.mem.GetFloat64(c.readPosition)
	c.readPosition += 8
	return v
}

// WriteFloat32/WriteFloat64 are the fast-path contiguous writes used when
// WriteRemaining() is already known to be >= the primitive's width.
func (c *Chunk) WriteFloat32(v float32) {
	c.mem.PutFloat32(c.writePosition, v)
	c.writePosition += 4
}

func (c *Chunk) WriteFloat64(v float64) {
	c.mem.PutFloat64(c.writePosition, v)
	c.writePosition += 8
}

// ReadInto copies up to len(dst) unread bytes into dst, advancing the read
// cursor, and returns the number of bytes copied.
func (c *Chunk) ReadInto(dst []byte) int {
	n := c.mem.CopyOut(dst, c.readPosition, c.readPosition+min(len(dst), c.ReadRemaining()))
	c.readPosition += n
	return n
}

// WriteFrom copies up to WriteRemaining() bytes from src into this chunk's
// tail, advancing the write cursor, and returns the number of bytes copied.
func (c *Chunk) WriteFrom(src []byte) int {
	n := min(len(src), c.WriteRemaining())
	c.mem.CopyIn(c.writePosition, src[:n])
	c.writePosition += n
	return n
}

// ReadableSlice exposes the unread portion of this chunk directly. The
// slice aliases the chunk's storage and is valid only until the next call
// that moves the read or write cursor.
func (c *Chunk) ReadableSlice() []byte {
	return c.mem.Slice(c.readPosition, c.writePosition)
}

// WritableSlice exposes the writable tail of this chunk directly, for
// zero-copy fills (Input.ReadAvailableTo, FillSource.Fill writing straight
// into a foreign Output's tail chunk).
func (c *Chunk) WritableSlice() []byte {
	return c.mem.Slice(c.writePosition, c.limit)
}

// StartGapSlice exposes the reserved head gap, for the prepend-merge path
// in Output.WritePacket.
func (c *Chunk) StartGapSlice() []byte {
	return c.mem.Slice(0, c.startGap)
}

// CommitWrite advances the write cursor by n after bytes were written
// directly into WritableSlice (used by FillSource.Fill).
func (c *Chunk) CommitWrite(n int) { c.writePosition += n }

// RewindForRefill collapses the read and write cursors back to the start of
// the body (respecting any head-gap reservation), making the whole chunk
// writable again without borrowing a new one from the pool. Input uses this
// to refill its active chunk in place once every recorded byte in it has
// been consumed and no preview is pinning it to a Chain.
func (c *Chunk) RewindForRefill() {
	c.readPosition = c.startGap
	c.writePosition = c.startGap
}

// Exclusive reports whether this chunk has no other outstanding references
// and is therefore safe to mutate.
func (c *Chunk) Exclusive() bool {
	return c.refcount == nil || atomic.LoadInt32(c.refcount) == 1
}

// MakeReadOnly marks this chunk shareable, acquiring the first reference.
// It is a no-op if the chunk is already shared.
func (c *Chunk) MakeReadOnly() {
	if c.refcount == nil {
		one := int32(1)
		c.refcount = &one
	}
}

// Clone returns a new chunk header that shares this chunk's Memory and
// cursor values but has an independent next link, incrementing the shared
// reference count. The chunk must already be read-only (see MakeReadOnly).
func (c *Chunk) Clone() *Chunk {
	atomic.AddInt32(c.refcount, 1)
	clone := *c
	clone.next = nil
	return &clone
}

// ReleaseShared decrements the reference count of a shared chunk and
// reports whether this was the last reference (in which case the caller
// must recycle the chunk). Exclusively-owned chunks always report true.
func (c *Chunk) ReleaseShared() bool {
	if c.refcount == nil {
		return true
	}
	return atomic.AddInt32(c.refcount, -1) == 0
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
