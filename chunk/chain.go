package chunk

import "github.com/mel2oo/bytesio/slices"

// entry pairs a recorded chunk with the write limit Input observed on it at
// the time it was recorded, since a chunk that is still the active tail of
// a Fill source can keep growing after it is captured into the chain.
type entry struct {
	c     *Chunk
	limit int
}

// Chain is the recorded chain ("Bytes" in spec.md): an ordered, append-only-
// at-the-tail, drop-only-at-the-head sequence of (chunk, effective-limit)
// pairs that Input uses to remember chunks visited during an open preview
// session, so a nested preview can rewind and replay them.
//
// Chain owns every chunk it holds; Append takes ownership, DiscardFirst
// releases ownership to the caller.
type Chain struct {
	entries []entry
}

// NewChain returns an empty recorded chain.
func NewChain() *Chain {
	return &Chain{}
}

// Append takes ownership of c, recording it alongside the write limit
// observed at this instant.
func (ch *Chain) Append(c *Chunk, limit int) {
	ch.entries = append(ch.entries, entry{c: c, limit: limit})
}

// IsEmpty reports whether the chain currently holds no entries.
func (ch *Chain) IsEmpty() bool {
	return len(ch.entries) == 0
}

// Size returns the number of entries at or after fromIndex.
func (ch *Chain) Size(fromIndex int) int {
	if fromIndex >= len(ch.entries) {
		return 0
	}
	return len(ch.entries) - fromIndex
}

// IsAfterLast reports whether i is at or past the end of the chain.
func (ch *Chain) IsAfterLast(i int) bool {
	return i >= len(ch.entries)
}

// Pointed calls fn with a borrowed view of the i-th entry's chunk and
// recorded limit. The view is valid only during fn; fn must not retain the
// chunk pointer.
func (ch *Chain) Pointed(i int, fn func(c *Chunk, limit int)) {
	e := ch.entries[i]
	fn(e.c, e.limit)
}

// DiscardFirst releases ownership of the first entry to the caller, who is
// responsible for recycling it, and removes it from the chain.
func (ch *Chain) DiscardFirst() *Chunk {
	first := ch.entries[0].c
	ch.entries = ch.entries[1:]
	return first
}

// Sizes returns the recorded effective limit of every entry, in order; a
// diagnostic accessor used by tests and by Input.Prefetch.
func (ch *Chain) Sizes() []int {
	return slices.Map(ch.entries, func(e entry) int { return e.limit })
}

// ResetReadCursorsFrom rewinds every entry after fromIndex back to the
// start of its own content (its start gap). No real read has consumed any
// such entry: each was seeded, prefetched, or borrowed and filled ahead of
// the chunk at fromIndex; the preview's own forward reads through them must not count
// as real consumption once the preview ends, so Input calls this (with
// the ending preview's saved index) to make them replayable in full,
// whether by an enclosing preview continuing its own walk or, once the
// outermost preview ends, by real draining.
func (ch *Chain) ResetReadCursorsFrom(fromIndex int) {
	for i := fromIndex + 1; i < len(ch.entries); i++ {
		ch.entries[i].c.SetPosition(ch.entries[i].c.StartGap())
	}
}
