// Package register provides an append-only, concurrently readable table that
// assigns each appended entry a permanent integer handle.
//
// A Register is backed by a matrix of pre-allocated fixed-size chunks, so its
// capacity (chunkCount x chunkSize) is fixed at construction and storage never
// moves. That is what makes lock-free reads safe: Add is serialized, but Get
// and Size never lock because a slot is fully populated before the size
// counter that publishes it is incremented.
//
// Handles are insertion indices. Once assigned, a handle never changes and is
// never reused; entries live until process teardown. This permanence is the
// invariant the published-register stream protocol builds on: a receiver's
// mirror never needs to revalidate an entry it already holds, even while the
// sender's table keeps growing from other goroutines.
package register

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/bstream/errs"
)

// Listener is called whenever an entry is added to a register. Listeners run
// inside Add's critical section; they must not call Add on the same register.
type Listener[T any] func(r *Register[T], entry T)

// Register is a chunked append-only table with stable integer handles.
type Register[T any] struct {
	chunkCount  int
	chunkSize   int
	handleWidth int

	// Outer slice is fully pre-allocated; inner chunks are allocated lazily
	// under the Add lock, before the size counter publishes them.
	chunks [][]T

	size      atomic.Int64
	mu        sync.Mutex
	listeners []Listener[T]
}

// New creates a register with the given chunk geometry.
//
// handleWidth is the serialized width of a handle in bytes and must be 1, 2,
// or 4. Capacity is chunkCount*chunkSize and cannot grow afterwards.
func New[T any](chunkCount, chunkSize, handleWidth int) (*Register[T], error) {
	if chunkCount <= 0 || chunkSize <= 0 {
		return nil, fmt.Errorf("invalid register geometry: %d x %d", chunkCount, chunkSize)
	}
	if handleWidth != 1 && handleWidth != 2 && handleWidth != 4 {
		return nil, fmt.Errorf("invalid handle width %d (must be 1, 2, or 4)", handleWidth)
	}

	r := &Register[T]{
		chunkCount:  chunkCount,
		chunkSize:   chunkSize,
		handleWidth: handleWidth,
		chunks:      make([][]T, chunkCount),
	}
	r.chunks[0] = make([]T, chunkSize)

	return r, nil
}

// Add appends an entry and returns its permanent handle. Concurrent Add calls
// are serialized; concurrent Get/Size calls need no coordination.
//
// Exceeding the fixed capacity returns errs.ErrRegisterFull and leaves the
// register unchanged.
func (r *Register[T]) Add(entry T) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := int(r.size.Load())
	chunkIndex := size / r.chunkSize
	if chunkIndex >= r.chunkCount {
		return 0, fmt.Errorf("%w: capacity %d (consider a larger chunkCount or chunkSize)",
			errs.ErrRegisterFull, r.Capacity())
	}
	elementIndex := size % r.chunkSize
	if chunkIndex > 0 && elementIndex == 0 {
		r.chunks[chunkIndex] = make([]T, r.chunkSize)
	}
	r.chunks[chunkIndex][elementIndex] = entry

	// Publish after the slot is populated; Get relies on this ordering.
	r.size.Store(int64(size + 1))

	for _, listener := range r.listeners {
		listener(r, entry)
	}

	return size, nil
}

// Get returns the entry at the given handle. The handle must be less than
// Size(); Get performs no locking.
func (r *Register[T]) Get(handle int) T {
	return r.chunks[handle/r.chunkSize][handle%r.chunkSize]
}

// Entry returns the entry at the given handle as an untyped value. It exists
// so registers of different entry types can stand behind one directory
// interface.
func (r *Register[T]) Entry(handle int) any {
	return r.Get(handle)
}

// Size returns the current number of entries. Safe to call concurrently with Add.
func (r *Register[T]) Size() int {
	return int(r.size.Load())
}

// Capacity returns the fixed maximum number of entries.
func (r *Register[T]) Capacity() int {
	return r.chunkCount * r.chunkSize
}

// ChunkCount returns the number of chunks.
func (r *Register[T]) ChunkCount() int {
	return r.chunkCount
}

// ChunkSize returns the number of entries per chunk.
func (r *Register[T]) ChunkSize() int {
	return r.chunkSize
}

// HandleWidth returns the serialized width of a handle in bytes (1, 2, or 4).
func (r *Register[T]) HandleWidth() int {
	return r.handleWidth
}

// AddListener registers a callback invoked for every subsequently added entry.
func (r *Register[T]) AddListener(listener Listener[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, listener)
}
