// Package chunk implements the pooled, fixed-capacity memory substrate that
// Input and Output are built on: a byte-addressable Memory region, a Chunk
// that reserves head/tail gaps within it and links into singly-linked
// chains, a Pool of chunks of one fixed capacity, and the recorded Chain
// that Input uses to support nested, rewindable preview.
package chunk

import (
	"encoding/binary"
	"math"
)

// Memory is a contiguous, fixed-size byte region with byte-addressable
// load/store of 8/16/32/64-bit integers and 32/64-bit floats in big-endian
// encoding. Little-endian is obtained by byte-reversing the loaded
// primitive; Memory itself never stores a byte-order preference.
//
// A Memory value is never resized after allocation.
type Memory struct {
	data []byte
}

// NewMemory allocates a Memory region of the given capacity.
func NewMemory(capacity int) Memory {
	return Memory{data: make([]byte, capacity)}
}

// Cap returns the fixed capacity of this region.
func (m Memory) Cap() int {
	return len(m.data)
}

// Slice returns the raw bytes in [start, end). The returned slice aliases
// the Memory's storage; callers must not retain it past the owning chunk's
// lifetime.
func (m Memory) Slice(start, end int) []byte {
	return m.data[start:end]
}

func (m Memory) GetByte(at int) byte {
	return m.data[at]
}

func (m Memory) PutByte(at int, v byte) {
	m.data[at] = v
}

func (m Memory) GetUint16(at int) uint16 {
	return binary.BigEndian.Uint16(m.data[at : at+2])
}

func (m Memory) PutUint16(at int, v uint16) {
	binary.BigEndian.PutUint16(m.data[at:at+2], v)
}

func (m Memory) GetUint32(at int) uint32 {
	return binary.BigEndian.Uint32(m.data[at : at+4])
}

func (m Memory) PutUint32(at int, v uint32) {
	binary.BigEndian.PutUint32(m.data[at:at+4], v)
}

func (m Memory) GetUint64(at int) uint64 {
	return binary.BigEndian.Uint64(m.data[at : at+8])
}

func (m Memory) PutUint64(at int, v uint64) {
	binary.BigEndian.PutUint64(m.data[at:at+8], v)
}

func (m Memory) GetFloat32(at int) float32 {
	return math.Float32frombits(m.GetUint32(at))
}

func (m Memory) PutFloat32(at int, v float32) {
	m.PutUint32(at, math.Float32bits(v))
}

func (m Memory) GetFloat64(at int) float64 {
	return math.Float64frombits(m.GetUint64(at))
}

func (m Memory) PutFloat64(at int, v float64) {
	m.PutUint64(at, math.Float64bits(v))
}

// CopyIn copies src into this region starting at offset, returning the
// number of bytes copied (capped at the region's remaining capacity).
func (m Memory) CopyIn(offset int, src []byte) int {
	return copy(m.data[offset:], src)
}

// CopyOut copies this region's [start, end) into dst, returning the number
// of bytes copied.
func (m Memory) CopyOut(dst []byte, start, end int) int {
	return copy(dst, m.data[start:end])
}

