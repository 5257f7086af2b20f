package bytesio

import "github.com/mel2oo/bytesio/chunk"

// emptySource is the FillSource behind a Packet turned into an Input: a
// Packet's content is already complete, so any read past its end is a
// clean EOF, never a real fetch.
type emptySource struct{}

func (emptySource) Fill(_ []byte) (int, error) { return 0, nil }
func (emptySource) Close() error                { return nil }

var noMoreData FillSource = emptySource{}

// Packet is an immutable, pool-backed byte sequence produced by
// Output.Build. Its chunks are shared (reference-counted) rather than
// copied, so Copy is cheap: it acquires one reference per chunk in the
// chain, not a bytewise duplicate.
//
// A Packet is consumed exactly once, either by AsInput or by Release; a
// second call to either (or to WritePacket with this Packet) reports
// ErrState. Copy does not consume — it may be called any number of times
// before the original is itself consumed.
type Packet struct {
	pool     chunk.Pool
	head     *chunk.Chunk
	length   int
	consumed bool
}

// Len returns the number of bytes in this Packet.
func (p *Packet) Len() int {
	return p.length
}

// Copy returns an independent Packet referencing the same underlying
// chunks, incrementing each chunk's shared reference count by one.
func (p *Packet) Copy() Packet {
	var newHead, newTail *chunk.Chunk
	for c := p.head; c != nil; c = c.Next() {
		clone := c.Clone()
		if newHead == nil {
			newHead = clone
			newTail = clone
		} else {
			newTail.SetNext(clone)
			newTail = clone
		}
	}
	return Packet{pool: p.pool, head: newHead, length: p.length}
}

// AsInput consumes this Packet, handing its chunks to a fresh Input that
// reads them in order and reports EOF once they're exhausted.
func (p *Packet) AsInput() (*Input, error) {
	if p.consumed {
		return nil, errStatef("packet already consumed")
	}
	p.consumed = true

	var seed []*chunk.Chunk
	for c := p.head; c != nil; {
		next := c.Next()
		c.SetNext(nil)
		seed = append(seed, c)
		c = next
	}
	if len(seed) == 0 {
		return NewInput(p.pool, noMoreData), nil
	}
	return NewInput(p.pool, noMoreData, WithSeedChunks(seed...)), nil
}

// Release consumes this Packet, dropping its reference to every chunk in
// its chain and recycling any chunk whose reference count reaches zero.
func (p *Packet) Release() error {
	if p.consumed {
		return errStatef("packet already consumed")
	}
	p.consumed = true

	for c := p.head; c != nil; {
		next := c.Next()
		p.pool.Recycle(c)
		c = next
	}
	return nil
}
