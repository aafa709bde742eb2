// Package buffer provides the byte-store and backend plumbing for bstream.
//
// A Fixed is a fixed-capacity byte store with offset-addressed access to every
// primitive type. A View is a borrowed window into a Fixed with a read/write
// cursor; it never owns the underlying storage. Source and Sink are the
// backend capabilities that supply and consume views on behalf of a stream,
// and Memory is the default in-memory backend implementing both.
package buffer

import (
	"math"

	"github.com/arloliu/bstream/endian"
)

// Fixed is a fixed-capacity byte store with offset-addressed get/put of every
// primitive type. All multi-byte accesses use the store's endian engine.
//
// Offsets are not range-checked beyond Go's slice bounds; an out-of-range
// access panics, which is a programmer error rather than a stream error.
type Fixed struct {
	data   []byte
	engine endian.EndianEngine
}

// NewFixed allocates a store of the given capacity.
func NewFixed(capacity int, engine endian.EndianEngine) *Fixed {
	return &Fixed{
		data:   make([]byte, capacity),
		engine: engine,
	}
}

// WrapFixed wraps an existing byte slice without copying. The slice's full
// length becomes the store's capacity.
func WrapFixed(data []byte, engine endian.EndianEngine) *Fixed {
	return &Fixed{data: data, engine: engine}
}

// Capacity returns the store's capacity in bytes.
func (b *Fixed) Capacity() int {
	return len(b.data)
}

// Engine returns the endian engine used for multi-byte accesses.
func (b *Fixed) Engine() endian.EndianEngine {
	return b.engine
}

// Bytes returns the underlying storage. The returned slice is shared with the
// store; callers must not grow it.
func (b *Fixed) Bytes() []byte {
	return b.data
}

func (b *Fixed) PutUint8(offset int, v uint8) {
	b.data[offset] = v
}

func (b *Fixed) GetUint8(offset int) uint8 {
	return b.data[offset]
}

func (b *Fixed) PutInt8(offset int, v int8) {
	b.data[offset] = uint8(v)
}

func (b *Fixed) GetInt8(offset int) int8 {
	return int8(b.data[offset])
}

func (b *Fixed) PutBool(offset int, v bool) {
	if v {
		b.data[offset] = 1
	} else {
		b.data[offset] = 0
	}
}

func (b *Fixed) GetBool(offset int) bool {
	return b.data[offset] != 0
}

func (b *Fixed) PutUint16(offset int, v uint16) {
	b.engine.PutUint16(b.data[offset:], v)
}

func (b *Fixed) GetUint16(offset int) uint16 {
	return b.engine.Uint16(b.data[offset:])
}

func (b *Fixed) PutInt16(offset int, v int16) {
	b.engine.PutUint16(b.data[offset:], uint16(v))
}

func (b *Fixed) GetInt16(offset int) int16 {
	return int16(b.engine.Uint16(b.data[offset:]))
}

func (b *Fixed) PutUint32(offset int, v uint32) {
	b.engine.PutUint32(b.data[offset:], v)
}

func (b *Fixed) GetUint32(offset int) uint32 {
	return b.engine.Uint32(b.data[offset:])
}

func (b *Fixed) PutInt32(offset int, v int32) {
	b.engine.PutUint32(b.data[offset:], uint32(v))
}

func (b *Fixed) GetInt32(offset int) int32 {
	return int32(b.engine.Uint32(b.data[offset:]))
}

func (b *Fixed) PutUint64(offset int, v uint64) {
	b.engine.PutUint64(b.data[offset:], v)
}

func (b *Fixed) GetUint64(offset int) uint64 {
	return b.engine.Uint64(b.data[offset:])
}

func (b *Fixed) PutInt64(offset int, v int64) {
	b.engine.PutUint64(b.data[offset:], uint64(v))
}

func (b *Fixed) GetInt64(offset int) int64 {
	return int64(b.engine.Uint64(b.data[offset:]))
}

func (b *Fixed) PutFloat32(offset int, v float32) {
	b.engine.PutUint32(b.data[offset:], math.Float32bits(v))
}

func (b *Fixed) GetFloat32(offset int) float32 {
	return math.Float32frombits(b.engine.Uint32(b.data[offset:]))
}

func (b *Fixed) PutFloat64(offset int, v float64) {
	b.engine.PutUint64(b.data[offset:], math.Float64bits(v))
}

func (b *Fixed) GetFloat64(offset int) float64 {
	return math.Float64frombits(b.engine.Uint64(b.data[offset:]))
}

// PutBytes copies src into the store starting at offset.
func (b *Fixed) PutBytes(offset int, src []byte) {
	copy(b.data[offset:], src)
}

// GetBytes fills dst from the store starting at offset.
func (b *Fixed) GetBytes(offset int, dst []byte) {
	copy(dst, b.data[offset:])
}

// Copy transfers n bytes from src starting at srcOffset into this store
// starting at dstOffset. This is the bulk transfer between two stores.
func (b *Fixed) Copy(dstOffset int, src *Fixed, srcOffset, n int) {
	copy(b.data[dstOffset:dstOffset+n], src.data[srcOffset:srcOffset+n])
}
