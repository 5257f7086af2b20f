package bytesio

import (
	"math"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/mel2oo/bytesio/chunk"
)

// defaultMergeThreshold bounds Output.WritePacket's append-merge path: a
// packet whose first chunk holds no more than this many bytes is copied
// into the builder's own tail rather than linked in by reference, since
// linking costs a pointer hop on every future read for a chunk barely
// bigger than the hop itself.
const defaultMergeThreshold = 200

// Output is a buffered, push-style writer: a singly-linked chain of
// chunks borrowed from a Pool, grown one chunk at a time as primitive
// writes fill the current tail.
type Output struct {
	pool          chunk.Pool
	sink          FlushSink
	headerReserve int

	head     *chunk.Chunk
	tail     *chunk.Chunk
	prevTail *chunk.Chunk // chunk whose Next() is tail; nil when tail == head
	length   int

	closed bool
}

// OutputOption configures a newly constructed Output.
type OutputOption func(*outputOptions)

type outputOptions struct {
	headerReserve int
}

// WithHeaderReserve reserves n bytes of head gap on the first chunk this
// Output borrows, for a caller that wants room to prepend a header once
// the body is known. A later WritePacket's prepend-merge path can also use
// spare head-gap room in an incoming packet's first chunk symmetrically.
func WithHeaderReserve(n int) OutputOption {
	return func(o *outputOptions) { o.headerReserve = n }
}

// NewOutput constructs an Output that borrows chunks from pool and drains
// them to sink on Flush/Close.
func NewOutput(pool chunk.Pool, sink FlushSink, opts ...OutputOption) *Output {
	var o outputOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Output{
		pool:          pool,
		sink:          sink,
		headerReserve: o.headerReserve,
		head:          chunk.Sentinel(),
		tail:          chunk.Sentinel(),
	}
}

func (o *Output) appendChunk() {
	c := o.pool.Borrow()
	if o.headerReserve > 0 && o.head == chunk.Sentinel() {
		c.ReserveStart(o.headerReserve)
	}
	o.linkChunk(c)
}

func (o *Output) linkChunk(c *chunk.Chunk) {
	if o.head == chunk.Sentinel() {
		o.head = c
		o.tail = c
		o.prevTail = nil
		return
	}
	o.tail.SetNext(c)
	o.prevTail = o.tail
	o.tail = c
}

// replaceTail swaps the current tail chunk out for c, relinking whatever
// precedes it. Used by the prepend-merge path in WritePacket.
func (o *Output) replaceTail(c *chunk.Chunk) {
	if o.prevTail == nil {
		o.head = c
	} else {
		o.prevTail.SetNext(c)
	}
	o.tail = c
}

func (o *Output) writeUint(k int, v uint64) error {
	if o.tail.WriteRemaining() >= k {
		switch k {
		case 1:
			o.tail.WriteByte(byte(v))
		case 2:
			o.tail.WriteUint16(uint16(v))
		case 4:
			o.tail.WriteUint32(uint32(v))
		case 8:
			o.tail.WriteUint64(v)
		}
		o.length += k
		return nil
	}
	return o.writeUintSlow(k, v)
}

func (o *Output) writeUintSlow(k int, v uint64) error {
	for shift := (k - 1) * 8; shift >= 0; shift -= 8 {
		if o.tail.Full() {
			o.appendChunk()
		}
		o.tail.WriteByte(byte(v >> shift))
		o.length++
	}
	return nil
}

// WriteByte writes one byte.
func (o *Output) WriteByte(b byte) error { return o.writeUint(1, uint64(b)) }

// WriteShort writes a 16-bit big-endian signed integer.
func (o *Output) WriteShort(v int16) error { return o.writeUint(2, uint64(uint16(v))) }

// WriteInt writes a 32-bit big-endian signed integer.
func (o *Output) WriteInt(v int32) error { return o.writeUint(4, uint64(uint32(v))) }

// WriteLong writes a 64-bit big-endian signed integer.
func (o *Output) WriteLong(v int64) error { return o.writeUint(8, uint64(v)) }

// WriteFloat writes a 32-bit big-endian IEEE-754 float.
func (o *Output) WriteFloat(v float32) error { return o.writeUint(4, uint64(math.Float32bits(v))) }

// WriteDouble writes a 64-bit big-endian IEEE-754 float.
func (o *Output) WriteDouble(v float64) error { return o.writeUint(8, math.Float64bits(v)) }

// WriteShortLE, WriteIntLE, WriteLongLE, WriteFloatLE, WriteDoubleLE write
// the same primitives with the bytes in little-endian order.
func (o *Output) WriteShortLE(v int16) error {
	return o.writeUint(2, uint64(bits.ReverseBytes16(uint16(v))))
}

func (o *Output) WriteIntLE(v int32) error {
	return o.writeUint(4, uint64(bits.ReverseBytes32(uint32(v))))
}

func (o *Output) WriteLongLE(v int64) error {
	return o.writeUint(8, bits.ReverseBytes64(uint64(v)))
}

func (o *Output) WriteFloatLE(v float32) error {
	return o.writeUint(4, uint64(bits.ReverseBytes32(math.Float32bits(v))))
}

func (o *Output) WriteDoubleLE(v float64) error {
	return o.writeUint(8, bits.ReverseBytes64(math.Float64bits(v)))
}

// Fill writes count copies of b.
func (o *Output) Fill(count int, b byte) error {
	if count < 0 {
		return errArgumentf("fill: negative count %d", count)
	}
	for count > 0 {
		if o.tail.Full() {
			o.appendChunk()
		}
		room := o.tail.WriteRemaining()
		if room > count {
			room = count
		}
		for i := 0; i < room; i++ {
			o.tail.WriteByte(b)
		}
		o.length += room
		count -= room
	}
	return nil
}

// WriteFully writes every byte of data, growing the chain as needed, and
// returns the number of bytes written (always len(data); the error return
// exists for symmetry with Input.ReadFully and is always nil).
func (o *Output) WriteFully(data []byte) (int, error) {
	total := 0
	for total < len(data) {
		if o.tail.Full() {
			o.appendChunk()
		}
		total += o.tail.WriteFrom(data[total:])
	}
	o.length += total
	return total, nil
}

// WriteStringUtf8 writes s's bytes directly, with no re-encoding: a Go
// string is already UTF-8.
func (o *Output) WriteStringUtf8(s string) error {
	_, err := o.WriteFully([]byte(s))
	return err
}

// WriteShorts, WriteInts, WriteLongs, WriteFloats, WriteDoubles write every
// element of the given slice as a sequence of big-endian primitives.
func (o *Output) WriteShorts(vs []int16) error {
	for _, v := range vs {
		if err := o.WriteShort(v); err != nil {
			return err
		}
	}
	return nil
}

func (o *Output) WriteInts(vs []int32) error {
	for _, v := range vs {
		if err := o.WriteInt(v); err != nil {
			return err
		}
	}
	return nil
}

func (o *Output) WriteLongs(vs []int64) error {
	for _, v := range vs {
		if err := o.WriteLong(v); err != nil {
			return err
		}
	}
	return nil
}

func (o *Output) WriteFloats(vs []float32) error {
	for _, v := range vs {
		if err := o.WriteFloat(v); err != nil {
			return err
		}
	}
	return nil
}

func (o *Output) WriteDoubles(vs []float64) error {
	for _, v := range vs {
		if err := o.WriteDouble(v); err != nil {
			return err
		}
	}
	return nil
}

// AppendChar UTF-8-encodes one UTF-16 code unit by range: below 0x80 as one
// byte, below 0x800 as two, otherwise as three. Surrogate halves are each
// encoded as their own 3-byte sequence rather than combined into a 4-byte
// UTF-8 sequence.
func (o *Output) AppendChar(codeUnit uint16) error {
	switch {
	case codeUnit < 0x80:
		return o.WriteByte(byte(codeUnit))
	case codeUnit < 0x800:
		if err := o.WriteByte(byte(0xC0 | (codeUnit >> 6))); err != nil {
			return err
		}
		return o.WriteByte(byte(0x80 | (codeUnit & 0x3F)))
	default:
		if err := o.WriteByte(byte(0xE0 | (codeUnit >> 12))); err != nil {
			return err
		}
		if err := o.WriteByte(byte(0x80 | ((codeUnit >> 6) & 0x3F))); err != nil {
			return err
		}
		return o.WriteByte(byte(0x80 | (codeUnit & 0x3F)))
	}
}

// Append encodes units[start:end] the way AppendChar encodes a single code
// unit. A nil units is treated the way Java's StringBuilder.append(null)
// is: the four literal bytes "null" are written instead.
func (o *Output) Append(units []uint16, start, end int) error {
	if units == nil {
		_, err := o.WriteFully([]byte("null"))
		return err
	}
	if start < 0 || end > len(units) || start > end {
		return errArgumentf("append: invalid range [%d,%d) in sequence of length %d", start, end, len(units))
	}
	for i := start; i < end; i++ {
		if err := o.AppendChar(units[i]); err != nil {
			return err
		}
	}
	return nil
}

// WritePacket consumes p, appending its bytes to this Output. The first
// chunk is merged into the builder's own tail by copy (append-merge) when
// it is small and the tail has room, or by copying the tail's own small
// buffered content forward into the packet chunk's reserved head gap
// (prepend-merge) when that room exists instead; otherwise — and for
// every chunk after the first — it is spliced into the chain by reference.
func (o *Output) WritePacket(p *Packet) error {
	if p.consumed {
		return errStatef("packet already consumed")
	}
	p.consumed = true
	return o.writeChunks(p.head, p.length)
}

// WritePacketN consumes exactly n bytes from p the same way WritePacket
// does, and returns a new Packet holding whatever of p was left over. It
// reports ErrEOF, without consuming p, if p holds fewer than n bytes.
func (o *Output) WritePacketN(p *Packet, n int) (Packet, error) {
	if p.consumed {
		return Packet{}, errStatef("packet already consumed")
	}
	if n < 0 {
		return Packet{}, errArgumentf("writePacketN: negative n %d", n)
	}
	if n > p.length {
		return Packet{}, errEOF()
	}
	p.consumed = true

	if n == p.length {
		if err := o.writeChunks(p.head, p.length); err != nil {
			return Packet{}, err
		}
		return Packet{pool: p.pool, head: chunk.Sentinel(), length: 0, consumed: true}, nil
	}

	remaining := n
	first := true
	c := p.head
	for {
		avail := c.ReadRemaining()
		if avail > remaining {
			// Partial chunk: copy the needed prefix out (advancing c's own
			// cursor), leaving the rest of c as the remainder packet's head.
			prefix := make([]byte, remaining)
			c.ReadInto(prefix)
			if _, err := o.WriteFully(prefix); err != nil {
				return Packet{}, err
			}
			return Packet{pool: p.pool, head: c, length: p.length - n}, nil
		}

		next := c.Next()
		c.SetNext(nil)
		o.length += avail
		if first {
			first = false
			if o.tryAppendMerge(c) {
				remaining -= avail
				c = next
				continue
			}
			if o.tryPrependMerge(c) {
				remaining -= avail
				c = next
				continue
			}
		}
		o.spliceChunk(c)
		remaining -= avail
		c = next
	}
}

func (o *Output) writeChunks(head *chunk.Chunk, totalLen int) error {
	o.length += totalLen
	first := true
	for c := head; c != nil; {
		next := c.Next()
		c.SetNext(nil)
		if first {
			first = false
			if o.tryAppendMerge(c) {
				c = next
				continue
			}
			if o.tryPrependMerge(c) {
				c = next
				continue
			}
		}
		o.spliceChunk(c)
		c = next
	}
	return nil
}

func (o *Output) tryAppendMerge(c *chunk.Chunk) bool {
	if o.tail == chunk.Sentinel() || !o.tail.Exclusive() {
		return false
	}
	n := c.ReadRemaining()
	if n == 0 || n > defaultMergeThreshold || n > o.tail.WriteRemaining() {
		return false
	}
	o.tail.WriteFrom(c.ReadableSlice())
	o.releasePacketChunk(c)
	return true
}

func (o *Output) tryPrependMerge(c *chunk.Chunk) bool {
	if o.tail == chunk.Sentinel() || !o.tail.Exclusive() {
		return false
	}
	src := o.tail.ReadableSlice()
	buffered := len(src)
	if buffered == 0 || buffered > c.StartGap() {
		return false
	}
	dst := c.StartGapSlice()
	copy(dst[len(dst)-buffered:], src)
	newGap := c.StartGap() - buffered
	c.SetStartGap(newGap)
	c.SetPosition(newGap)

	old := o.tail
	o.replaceTail(c)
	o.pool.Recycle(old)
	return true
}

// spliceChunk links a foreign chunk onto the chain by reference. Since it
// may still be shared with another Packet.Copy, its write boundary is
// shrunk to what is already written so a later primitive write on this
// Output borrows a fresh chunk instead of mutating shared memory.
func (o *Output) spliceChunk(c *chunk.Chunk) {
	c.SetLimit(c.WritePos())
	o.linkChunk(c)
}

// releasePacketChunk drops this Output's reference to a packet chunk whose
// bytes were copied elsewhere (append-merge). Pool.Recycle itself handles
// the shared/exclusive refcount bookkeeping, recycling only once this was
// the last outstanding reference.
func (o *Output) releasePacketChunk(c *chunk.Chunk) {
	o.pool.Recycle(c)
}

// StealAll hands off this Output's entire chain as a raw chunk list plus
// its total length, without Build's read-only marking, and resets this
// Output to empty. Intended for a caller that wants to adopt the chain
// exclusively (e.g. seed a fresh Input) rather than share it via Packet.
func (o *Output) StealAll() (*chunk.Chunk, int) {
	head, length := o.head, o.length
	o.head, o.tail, o.prevTail = chunk.Sentinel(), chunk.Sentinel(), nil
	o.length = 0
	return head, length
}

// Build freezes this Output's chain into an immutable Packet and resets
// this Output to empty. Every chunk in the chain is marked read-only so
// the returned Packet's Copy can clone cheaply.
func (o *Output) Build() Packet {
	head, length := o.head, o.length
	for c := head; c != nil && c != chunk.Sentinel(); c = c.Next() {
		c.MakeReadOnly()
	}
	o.head, o.tail, o.prevTail = chunk.Sentinel(), chunk.Sentinel(), nil
	o.length = 0
	return Packet{pool: o.pool, head: head, length: length}
}

// Reset discards all buffered, not-yet-built content, recycling every
// chunk currently held. Release is an alias for Reset.
func (o *Output) Reset() {
	for c := o.head; c != nil && c != chunk.Sentinel(); {
		next := c.Next()
		o.pool.Recycle(c)
		c = next
	}
	o.head, o.tail, o.prevTail = chunk.Sentinel(), chunk.Sentinel(), nil
	o.length = 0
}

func (o *Output) Release() { o.Reset() }

// Flush drains every chunk currently buffered to the sink, in order,
// recycling each as it is drained, and leaves this Output empty.
func (o *Output) Flush() error {
	c := o.head
	for c != nil && c != chunk.Sentinel() {
		next := c.Next()
		err := o.sink.Flush(c.ReadableSlice())
		o.pool.Recycle(c)
		if err != nil {
			// The chunk that failed is already recycled above. Every chunk
			// still after it is undelivered but still exclusively ours:
			// drain and recycle them too, without flushing them again, so
			// this Output never leaks chunks on a failing sink.
			for c = next; c != nil && c != chunk.Sentinel(); {
				next = c.Next()
				o.pool.Recycle(c)
				c = next
			}
			o.head, o.tail, o.prevTail = chunk.Sentinel(), chunk.Sentinel(), nil
			o.length = 0
			return errors.Wrap(err, "bytesio: flush")
		}
		c = next
	}
	o.head, o.tail, o.prevTail = chunk.Sentinel(), chunk.Sentinel(), nil
	o.length = 0
	return nil
}

// Close flushes any remaining buffered content and closes the sink. It is
// an error to call Close twice.
func (o *Output) Close() error {
	if o.closed {
		return errStatef("output already closed")
	}
	o.closed = true
	if err := o.Flush(); err != nil {
		_ = o.sink.Close()
		return err
	}
	return o.sink.Close()
}

func (o *Output) sharesPool(p chunk.Pool) bool {
	return o.pool == p
}

func (o *Output) reserveWritable() []byte {
	if o.tail.Full() {
		o.appendChunk()
	}
	return o.tail.WritableSlice()
}

func (o *Output) commitWrite(n int) {
	o.tail.CommitWrite(n)
	o.length += n
}
