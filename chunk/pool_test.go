package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolBorrowReturnsEmptyChunk(t *testing.T) {
	p := NewPool(16)
	c := p.Borrow()
	assert.Equal(t, 16, c.Capacity())
	assert.Equal(t, 0, c.StartGap())
	assert.Equal(t, 0, c.Position())
	assert.Equal(t, 0, c.WritePos())
	assert.Equal(t, 16, c.WriteRemaining())
	assert.Equal(t, 16, p.ChunkCapacity())
}

func TestPoolRecycleReusesChunk(t *testing.T) {
	p := NewPool(8)
	c := p.Borrow()
	c.WriteFrom([]byte{1, 2, 3})
	p.Recycle(c)

	reused := p.Borrow()
	assert.Same(t, c, reused, "the only free chunk should be handed back out")
	assert.Equal(t, 0, reused.WritePos(), "recycled chunk must be reset to empty")
}

func TestPoolRecycleSentinelIsNoop(t *testing.T) {
	p := NewPool(8)
	assert.NotPanics(t, func() {
		p.Recycle(Sentinel())
	})
}

func TestPoolRecycleSharedChunkWaitsForLastReference(t *testing.T) {
	p := NewPool(8)
	c := p.Borrow()
	c.MakeReadOnly()
	clone := c.Clone()

	p.Recycle(c)
	// One reference (clone) is still outstanding; nothing should be pooled
	// yet, so the next Borrow must allocate a fresh chunk.
	fresh := p.Borrow()
	assert.NotSame(t, c, fresh)

	p.Recycle(clone)
	reused := p.Borrow()
	assert.Same(t, &c.mem.data[0], &reused.mem.data[0], "releasing the last shared reference returns the chunk's memory to the pool")
}

func TestPoolSoftCapDropsExcessChunks(t *testing.T) {
	p := NewPool(8, WithSoftCap(1))
	a := p.Borrow()
	b := p.Borrow()

	p.Recycle(a)
	p.Recycle(b) // dropped: pool already holds one idle chunk

	first := p.Borrow()
	assert.Same(t, a, first)

	second := p.Borrow()
	assert.NotSame(t, b, second, "b was dropped over the soft cap, so this must be freshly allocated")
}

func TestPoolDoubleRecyclePanicsUnderCheckInvariants(t *testing.T) {
	CheckInvariants = true
	defer func() { CheckInvariants = false }()

	p := NewPool(8)
	c := p.Borrow()
	p.Recycle(c)

	assert.PanicsWithValue(t, ErrDoubleRecycle, func() {
		p.Recycle(c)
	})
}

func TestPoolDoubleRecycleUndetectedWithoutCheckInvariants(t *testing.T) {
	require.False(t, CheckInvariants, "test depends on the package default")

	p := NewPool(8)
	c := p.Borrow()
	p.Recycle(c)

	assert.NotPanics(t, func() {
		p.Recycle(c)
	})
}
