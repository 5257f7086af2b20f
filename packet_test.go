package bytesio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mel2oo/bytesio/chunk"
)

func buildTestPacket(t *testing.T, pool chunk.Pool, data []byte) Packet {
	t.Helper()
	out := NewOutput(pool, &sliceSink{})
	_, err := out.WriteFully(data)
	require.NoError(t, err)
	return out.Build()
}

func TestPacketAsInputReadsBackContent(t *testing.T) {
	pool := chunk.NewPool(8)
	p := buildTestPacket(t, pool, []byte{1, 2, 3, 4, 5, 6})

	in, err := p.AsInput()
	require.NoError(t, err)

	dst := make([]byte, 6)
	require.NoError(t, in.ReadFully(dst))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, dst)
}

func TestPacketConsumedOnce(t *testing.T) {
	pool := chunk.NewPool(8)
	p := buildTestPacket(t, pool, []byte{1, 2, 3})

	_, err := p.AsInput()
	require.NoError(t, err)

	_, err = p.AsInput()
	assert.ErrorIs(t, err, ErrState)

	err = p.Release()
	assert.ErrorIs(t, err, ErrState)
}

func TestPacketReleaseRecyclesChunks(t *testing.T) {
	chunk.CheckInvariants = true
	defer func() { chunk.CheckInvariants = false }()

	pool := chunk.NewPool(8)
	p := buildTestPacket(t, pool, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})

	require.NoError(t, p.Release())

	err := p.Release()
	assert.ErrorIs(t, err, ErrState)
}

func TestPacketCopyIndependentConsumption(t *testing.T) {
	pool := chunk.NewPool(8)
	p := buildTestPacket(t, pool, []byte{1, 2, 3, 4})

	copy1 := p.Copy()
	assert.Equal(t, p.Len(), copy1.Len())

	// Original consumed via AsInput; the copy must still be independently
	// readable afterward.
	in, err := p.AsInput()
	require.NoError(t, err)
	dst := make([]byte, 4)
	require.NoError(t, in.ReadFully(dst))
	assert.Equal(t, []byte{1, 2, 3, 4}, dst)

	in2, err := copy1.AsInput()
	require.NoError(t, err)
	dst2 := make([]byte, 4)
	require.NoError(t, in2.ReadFully(dst2))
	assert.Equal(t, []byte{1, 2, 3, 4}, dst2)
}

func TestPacketCopyBothReleasedRecyclesOnLastReference(t *testing.T) {
	chunk.CheckInvariants = true
	defer func() { chunk.CheckInvariants = false }()

	pool := chunk.NewPool(8)
	p := buildTestPacket(t, pool, []byte{1, 2, 3})

	copy1 := p.Copy()

	require.NoError(t, p.Release())
	require.NoError(t, copy1.Release())
}

func TestPacketLen(t *testing.T) {
	pool := chunk.NewPool(4)
	p := buildTestPacket(t, pool, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	assert.Equal(t, 9, p.Len())
	require.NoError(t, p.Release())
}
