package buffer

import (
	"errors"
	"fmt"

	"github.com/arloliu/bstream/endian"
	"github.com/arloliu/bstream/errs"
	"github.com/arloliu/bstream/internal/options"
)

const (
	// DefaultMemorySize is the initial capacity of a Memory backend.
	DefaultMemorySize = 8192

	// DefaultResizeReserveFactor is the growth multiplier applied when a
	// Memory backend must reallocate.
	DefaultResizeReserveFactor = 2.0
)

// Memory is an in-memory byte buffer usable as both Source and Sink. It is
// the default backend for in-memory round trips.
//
// When used as a sink it grows on demand: a reallocation multiplies the
// required size by the resize reserve factor to keep bytes in reserve. A
// factor <= 1 makes the buffer fixed-size; an attempted overflow then fails
// with a capacity error instead of truncating.
//
// Reading and writing concurrently is not supported, because a resize
// replaces the backing storage.
type Memory struct {
	backend *Fixed
	factor  float64
	size    int
}

// MemoryOption configures a Memory backend.
type MemoryOption = options.Option[*Memory]

// WithCapacity sets the initial capacity in bytes.
func WithCapacity(capacity int) MemoryOption {
	return options.New(func(m *Memory) error {
		if capacity <= 0 {
			return fmt.Errorf("invalid memory capacity: %d", capacity)
		}
		m.backend = NewFixed(capacity, m.backend.Engine())

		return nil
	})
}

// WithResizeFactor sets the resize reserve factor. A factor <= 1 disables
// growth and makes overflow a capacity error.
func WithResizeFactor(factor float64) MemoryOption {
	return options.NoError(func(m *Memory) {
		m.factor = factor
	})
}

// WithEngine sets the endian engine of the backing store. The default is the
// host-native engine.
func WithEngine(engine endian.EndianEngine) MemoryOption {
	return options.New(func(m *Memory) error {
		if engine == nil {
			return errors.New("nil endian engine")
		}
		m.backend = NewFixed(m.backend.Capacity(), engine)

		return nil
	})
}

// NewMemory creates a Memory backend with the given options.
func NewMemory(opts ...MemoryOption) (*Memory, error) {
	m := &Memory{
		backend: NewFixed(DefaultMemorySize, endian.GetNativeEngine()),
		factor:  DefaultResizeReserveFactor,
	}
	if err := options.Apply(m, opts...); err != nil {
		return nil, err
	}

	return m, nil
}

// Size returns the used length in bytes.
func (m *Memory) Size() int {
	return m.size
}

// Capacity returns the allocated capacity in bytes.
func (m *Memory) Capacity() int {
	return m.backend.Capacity()
}

// Backend returns the backing store.
func (m *Memory) Backend() *Fixed {
	return m.backend
}

// Bytes returns the used portion of the backing store. The slice is shared
// with the buffer and invalidated by the next resize.
func (m *Memory) Bytes() []byte {
	return m.backend.Bytes()[:m.size]
}

// Clear resets the used length to zero without releasing storage.
func (m *Memory) Clear() {
	m.size = 0
}

// SetSize sets the used length, growing capacity if necessary.
func (m *Memory) SetSize(newSize int) error {
	if newSize > m.Capacity() {
		if err := m.ensureCapacity(newSize, true, m.size); err != nil {
			return err
		}
	}
	m.size = newSize

	return nil
}

// Equal reports whether two buffers hold the same used-length and identical
// byte content, regardless of allocated capacity.
func (m *Memory) Equal(other *Memory) bool {
	if other == nil || m.size != other.size {
		return false
	}
	for i := 0; i < m.size; i++ {
		if m.backend.GetUint8(i) != other.backend.GetUint8(i) {
			return false
		}
	}

	return true
}

// ensureCapacity reallocates the backend to hold at least newSize bytes,
// optionally preserving the first oldSize bytes.
func (m *Memory) ensureCapacity(newSize int, keepContents bool, oldSize int) error {
	if m.factor <= 1 {
		return fmt.Errorf("%w: need %d bytes, capacity %d", errs.ErrFixedCapacity, newSize, m.Capacity())
	}
	m.reallocate(newSize, keepContents, oldSize)

	return nil
}

func (m *Memory) reallocate(newSize int, keepContents bool, oldSize int) {
	if newSize <= m.backend.Capacity() {
		return
	}
	replacement := NewFixed(newSize, m.backend.Engine())
	if keepContents {
		replacement.Copy(0, m.backend, 0, oldSize)
	}
	m.backend = replacement
}

// Source implementation.

// Reset points the view at the buffer's used content.
func (m *Memory) Reset(v *View) error {
	v.Buf = m.backend
	v.Pos = 0
	v.SetRange(0, m.size)

	return nil
}

// Fetch extends the view to the full used length, re-pointing it at the
// current backend in case a writer reallocated it since the last fetch. A
// Memory source holds all of its data up front, so a fetch past the end
// means the caller read beyond the written content.
func (m *Memory) Fetch(v *View, minBytes int) error {
	v.Buf = m.backend
	v.SetRange(0, m.size)
	if v.Pos >= m.size {
		return errs.ErrBufferExhausted
	}

	return nil
}

// MoreDataAvailable reports whether the view's window ends before the used
// length.
func (m *Memory) MoreDataAvailable(v *View) bool {
	return v.End < m.size
}

// DirectReadSupport reports false; all reads go through the view.
func (m *Memory) DirectReadSupport() bool {
	return false
}

// DirectRead is unsupported for Memory.
func (m *Memory) DirectRead(v *View, dst *Fixed, offset, length int) error {
	return errors.New("memory buffer: direct read unsupported")
}

// Close detaches the view. The buffer itself stays usable.
func (m *Memory) Close(v *View) error {
	v.Reset()

	return nil
}

// Sink implementation. Memory deliberately has a single Close method serving
// both roles; a buffer is driven by either a reader or a writer at a time.

// ResetWrite points the view at the full capacity for writing from scratch.
func (m *Memory) ResetWrite(v *View) error {
	v.Buf = m.backend
	v.Pos = 0
	v.SetRange(0, m.backend.Capacity())

	return nil
}

// Write grows the buffer when a size hint demands it and re-extends the
// view's window to the new capacity. Content already written stays at its
// position, so pending skip-offset placeholders remain patchable and the
// returned bool is always false.
func (m *Memory) Write(v *View, sizeHint int) (bool, error) {
	if sizeHint >= 0 {
		newSize := int(float64(m.backend.Capacity()+sizeHint) * m.factor)
		if newSize < 8 {
			newSize = 8
		}
		if err := m.ensureCapacity(newSize, true, v.Pos); err != nil {
			return false, err
		}
		v.Buf = m.backend
	}
	v.End = m.backend.Capacity() // window start is left untouched

	return false, nil
}

// DirectWriteSupport reports false; all writes go through the view.
func (m *Memory) DirectWriteSupport() bool {
	return false
}

// DirectWrite is unsupported for Memory.
func (m *Memory) DirectWrite(v *View, src *Fixed, offset, length int) error {
	return errors.New("memory buffer: direct write unsupported")
}

// Flush records the view's position as the buffer's used length.
func (m *Memory) Flush(v *View) error {
	m.size = v.Pos

	return nil
}
