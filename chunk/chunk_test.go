package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkReadWriteByte(t *testing.T) {
	c := newChunk(4)
	assert.True(t, c.WriteByte(1))
	assert.True(t, c.WriteByte(2))
	assert.False(t, c.Exhausted())

	b, ok := c.ReadByte()
	require.True(t, ok)
	assert.Equal(t, byte(1), b)

	b, ok = c.ReadByte()
	require.True(t, ok)
	assert.Equal(t, byte(2), b)

	_, ok = c.ReadByte()
	assert.False(t, ok, "chunk should be exhausted")
}

func TestChunkFullRejectsWrite(t *testing.T) {
	c := newChunk(1)
	assert.True(t, c.WriteByte(0xFF))
	assert.True(t, c.Full())
	assert.False(t, c.WriteByte(0x00))
}

func TestChunkPrimitiveRoundTrip(t *testing.T) {
	c := newChunk(32)
	c.WriteUint16(0x1234)
	c.WriteUint32(0xAABBCCDD)
	c.WriteUint64(0x0102030405060708)
	c.WriteFloat32(3.5)
	c.WriteFloat64(-2.25)

	assert.Equal(t, uint16(0x1234), c.ReadUint16())
	assert.Equal(t, uint32(0xAABBCCDD), c.ReadUint32())
	assert.Equal(t, uint64(0x0102030405060708), c.ReadUint64())
	assert.Equal(t, float32(3.5), c.ReadFloat32())
	assert.Equal(t, float64(-2.25), c.ReadFloat64())
}

func TestChunkReadIntoWriteFrom(t *testing.T) {
	c := newChunk(8)
	n := c.WriteFrom([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	assert.Equal(t, 8, n, "WriteFrom caps at WriteRemaining")
	assert.True(t, c.Full())

	dst := make([]byte, 5)
	n = c.ReadInto(dst)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, dst)

	dst = make([]byte, 5)
	n = c.ReadInto(dst)
	assert.Equal(t, 3, n, "ReadInto caps at ReadRemaining")
	assert.Equal(t, []byte{6, 7, 8, 0, 0}, dst)
}

func TestChunkReservations(t *testing.T) {
	c := newChunk(16)
	c.ReserveStart(4)
	c.ReserveEnd(2)

	assert.Equal(t, 4, c.StartGap())
	assert.Equal(t, 2, c.EndGap())
	assert.Equal(t, 4, c.Position())
	assert.Equal(t, 4, c.WritePos())
	assert.Equal(t, 10, c.WriteRemaining())

	assert.Equal(t, 4, len(c.StartGapSlice()))
}

func TestChunkRewindForRefillRespectsStartGap(t *testing.T) {
	c := newChunk(8)
	c.ReserveStart(2)
	c.WriteFrom([]byte{1, 2, 3, 4})
	c.ReadByte()

	c.RewindForRefill()
	assert.Equal(t, 2, c.Position())
	assert.Equal(t, 2, c.WritePos())
	assert.Equal(t, 6, c.WriteRemaining())
}

func TestChunkCommitWriteAdvancesCursorOnly(t *testing.T) {
	c := newChunk(8)
	slice := c.WritableSlice()
	copy(slice, []byte{9, 9, 9})
	c.CommitWrite(3)

	assert.Equal(t, 3, c.WritePos())
	assert.Equal(t, 3, c.ReadRemaining())
	b, _ := c.ReadByte()
	assert.Equal(t, byte(9), b)
}

func TestChunkExclusiveCloneReleaseShared(t *testing.T) {
	c := newChunk(4)
	c.WriteFrom([]byte{1, 2, 3, 4})
	assert.True(t, c.Exclusive(), "a fresh chunk has no refcount and is exclusive")

	c.MakeReadOnly()
	assert.True(t, c.Exclusive(), "sole reference is still exclusive")

	clone := c.Clone()
	assert.False(t, c.Exclusive())
	assert.False(t, clone.Exclusive())

	assert.False(t, c.ReleaseShared(), "one reference remains after releasing the original")
	assert.True(t, clone.ReleaseShared(), "releasing the last reference reports true")
}

func TestChunkCloneIndependentNext(t *testing.T) {
	c := newChunk(4)
	other := newChunk(4)
	c.MakeReadOnly()
	c.SetNext(other)

	clone := c.Clone()
	assert.Nil(t, clone.Next(), "Clone must not carry over the source's next link")
	assert.Equal(t, other, c.Next())
}

func TestSentinelNeverWritableOrReadable(t *testing.T) {
	s := Sentinel()
	assert.True(t, s.Exhausted())
	assert.True(t, s.Full())
}
