package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChainAppendAndDiscardFirst(t *testing.T) {
	ch := NewChain()
	assert.True(t, ch.IsEmpty())

	a := newChunk(4)
	b := newChunk(4)
	ch.Append(a, 4)
	ch.Append(b, 2)

	assert.False(t, ch.IsEmpty())
	assert.Equal(t, 2, ch.Size(0))
	assert.Equal(t, 1, ch.Size(1))
	assert.Equal(t, 0, ch.Size(2))
	assert.Equal(t, []int{4, 2}, ch.Sizes())

	assert.Same(t, a, ch.DiscardFirst())
	assert.Equal(t, 1, ch.Size(0))
	assert.Same(t, b, ch.DiscardFirst())
	assert.True(t, ch.IsEmpty())
}

func TestChainPointed(t *testing.T) {
	ch := NewChain()
	a := newChunk(4)
	ch.Append(a, 3)

	var got *Chunk
	var limit int
	ch.Pointed(0, func(c *Chunk, l int) {
		got = c
		limit = l
	})
	assert.Same(t, a, got)
	assert.Equal(t, 3, limit)
}

func TestChainIsAfterLast(t *testing.T) {
	ch := NewChain()
	assert.True(t, ch.IsAfterLast(0))

	ch.Append(newChunk(4), 4)
	assert.False(t, ch.IsAfterLast(0))
	assert.True(t, ch.IsAfterLast(1))
}

func TestChainResetReadCursorsFrom(t *testing.T) {
	ch := NewChain()
	a, b, c := newChunk(4), newChunk(4), newChunk(4)
	for _, x := range []*Chunk{a, b, c} {
		x.WriteFrom([]byte{1, 2, 3, 4})
		x.ReadByte()
		x.ReadByte()
	}
	ch.Append(a, 4)
	ch.Append(b, 4)
	ch.Append(c, 4)

	ch.ResetReadCursorsFrom(0)

	assert.Equal(t, 2, a.Position(), "entry at or before fromIndex is untouched")
	assert.Equal(t, 0, b.Position(), "entries after fromIndex are rewound")
	assert.Equal(t, 0, c.Position(), "entries after fromIndex are rewound")
}

func TestChainResetReadCursorsFromIsNoopWhenNothingFollows(t *testing.T) {
	ch := NewChain()
	a := newChunk(4)
	a.WriteFrom([]byte{1, 2, 3, 4})
	a.ReadByte()
	ch.Append(a, 4)

	ch.ResetReadCursorsFrom(0)

	assert.Equal(t, 1, a.Position())
}
