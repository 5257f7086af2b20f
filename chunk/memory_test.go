package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryIntegerRoundTrip(t *testing.T) {
	m := NewMemory(32)

	m.PutByte(0, 0xAB)
	assert.Equal(t, byte(0xAB), m.GetByte(0))

	m.PutUint16(2, 0x1234)
	assert.Equal(t, uint16(0x1234), m.GetUint16(2))
	assert.Equal(t, []byte{0x12, 0x34}, m.Slice(2, 4))

	m.PutUint32(4, 0xAABBCCDD)
	assert.Equal(t, uint32(0xAABBCCDD), m.GetUint32(4))
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, m.Slice(4, 8))

	m.PutUint64(8, 0x0102030405060708)
	assert.Equal(t, uint64(0x0102030405060708), m.GetUint64(8))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, m.Slice(8, 16))
}

func TestMemoryFloatRoundTrip(t *testing.T) {
	m := NewMemory(16)

	m.PutFloat32(0, 3.25)
	assert.Equal(t, float32(3.25), m.GetFloat32(0))

	m.PutFloat64(4, -12.5)
	assert.Equal(t, float64(-12.5), m.GetFloat64(4))
}

func TestMemoryCopyInOut(t *testing.T) {
	m := NewMemory(8)

	n := m.CopyIn(2, []byte{1, 2, 3})
	assert.Equal(t, 3, n)

	dst := make([]byte, 3)
	n = m.CopyOut(dst, 2, 5)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{1, 2, 3}, dst)
}
