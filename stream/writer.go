package stream

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf16"

	"github.com/arloliu/bstream/buffer"
	"github.com/arloliu/bstream/errs"
	"github.com/arloliu/bstream/internal/options"
)

// Committed buffers are copied through the view instead of handed to the sink
// directly when smaller than this fraction of the view capacity.
const bufferCopyFraction = 0.25

const (
	// handleEmpty is the well-known sentinel resolved to the directory's
	// configured empty entry.
	handleEmpty = -1

	// handleUpdateFollows signals that a register update block precedes the
	// actual handle.
	handleUpdateFollows = -2

	// updateBlockTerminator ends the sequence of per-registry update blocks.
	updateBlockTerminator = 0xFF
)

// Writer is the binary encoding engine. It fills buffer views supplied by a
// Sink with primitives, strings, skip-offsets, and register-backed
// references, committing the view back to the sink whenever a value does not
// fit.
//
// A Writer is not safe for concurrent use; exactly one goroutine may drive it
// at a time. It owns its Sink and closes it exactly once.
type Writer struct {
	sink buffer.Sink
	view buffer.View

	target Settings
	dir    *Directory

	// Highest entry count already published to this stream's receiver, per
	// registry id.
	published [MaxPublishedRegisters]int

	// Buffer position of the pending skip-offset placeholder, -1 when none.
	skipOffsetPos int
	shortSkip     bool

	copyFraction int
	directWrite  bool
	closed       bool
}

// WriterOption configures a Writer.
type WriterOption = options.Option[*Writer]

// WithTargetSettings sets the negotiation descriptor describing what the
// receiving peer supports. The default is DefaultSettings().
func WithTargetSettings(s Settings) WriterOption {
	return options.NoError(func(w *Writer) {
		w.target = s
	})
}

// WithWriterDirectory sets the published-register directory used to resolve
// registry ids. Required when the target settings use any encoding other
// than Identifier.
func WithWriterDirectory(d *Directory) WriterOption {
	return options.NoError(func(w *Writer) {
		w.dir = d
	})
}

// NewWriter creates a Writer driving the given sink.
func NewWriter(sink buffer.Sink, opts ...WriterOption) (*Writer, error) {
	w := &Writer{
		target:        DefaultSettings(),
		skipOffsetPos: -1,
		closed:        true,
	}
	if err := options.Apply(w, opts...); err != nil {
		return nil, err
	}
	if w.target.HasPublishedRegisters() {
		if w.target.Revision() == LegacyRevision {
			return nil, errors.New("revision 0 register update framing is read-only; writers require a newer revision")
		}
		if w.dir == nil {
			return nil, fmt.Errorf("%w: target settings publish registers", errs.ErrNoDirectory)
		}
	}
	if err := w.Reset(sink); err != nil {
		return nil, err
	}

	return w, nil
}

// Reset closes the current sink (if any) and starts writing to a new one.
// Published-entry tracking restarts: the new sink's receiver has seen nothing.
func (w *Writer) Reset(sink buffer.Sink) error {
	if err := w.Close(); err != nil {
		return err
	}
	w.sink = sink
	w.published = [MaxPublishedRegisters]int{}

	return w.reset()
}

func (w *Writer) reset() error {
	if err := w.sink.ResetWrite(&w.view); err != nil {
		return fmt.Errorf("sink reset: %w", err)
	}
	if w.view.Remaining() < 8 {
		return fmt.Errorf("sink provided initial buffer of %d bytes, need at least 8", w.view.Remaining())
	}
	w.closed = false
	w.skipOffsetPos = -1
	w.copyFraction = int(float64(w.view.Capacity()) * bufferCopyFraction)
	w.directWrite = w.sink.DirectWriteSupport()

	return nil
}

// TargetSettings returns the negotiation descriptor this writer encodes for.
func (w *Writer) TargetSettings() Settings {
	return w.target
}

// WriteSize returns the bytes written to the current view since its start.
func (w *Writer) WriteSize() int {
	return w.view.WriteLen()
}

// Remaining returns the writable bytes left in the current view.
func (w *Writer) Remaining() int {
	return w.view.Remaining()
}

// Flush commits the current view to the sink and asks it to flush.
func (w *Writer) Flush() error {
	if err := w.commitData(-1); err != nil {
		return err
	}
	if err := w.sink.Flush(&w.view); err != nil {
		return fmt.Errorf("sink flush: %w", err)
	}

	return nil
}

// Close flushes and closes the sink. Closing is idempotent past the first
// call. Closing while a skip-offset placeholder is outstanding is a caller
// error and reported as such after the sink is closed.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	var pending error
	if w.skipOffsetPos >= 0 {
		pending = fmt.Errorf("%w: stream closed before SkipTargetHere", errs.ErrPlaceholderPending)
		w.skipOffsetPos = -1
	}
	if err := w.Flush(); err != nil {
		w.closed = true
		return err
	}
	if err := w.sink.Close(&w.view); err != nil {
		w.closed = true
		return fmt.Errorf("sink close: %w", err)
	}
	w.closed = true

	return pending
}

// commitData writes the current view contents to the sink and prepares the
// view for further writing. sizeHint is the number of additional bytes about
// to be written; -1 indicates a manual flush.
func (w *Writer) commitData(sizeHint int) error {
	if w.view.WriteLen() == 0 {
		return nil
	}
	invalidated, err := w.sink.Write(&w.view, sizeHint)
	if err != nil {
		return fmt.Errorf("sink write: %w", err)
	}
	if invalidated && w.skipOffsetPos >= 0 {
		return fmt.Errorf("%w: sink replaced the buffer holding the placeholder", errs.ErrPlaceholderPending)
	}
	if sizeHint >= 0 && w.view.Remaining() < 8 {
		return fmt.Errorf("sink provided buffer of %d bytes after commit, need at least 8", w.view.Remaining())
	}
	w.copyFraction = int(float64(w.view.Capacity()) * bufferCopyFraction)

	return nil
}

// ensureAdditionalCapacity makes room for n more bytes in the view, possibly
// committing current contents so the sink can flush or grow.
func (w *Writer) ensureAdditionalCapacity(n int) error {
	if w.view.Remaining() < n {
		return w.commitData(n - w.view.Remaining())
	}

	return nil
}

// WriteBool writes a boolean as one byte.
func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.WriteUint8(1)
	}

	return w.WriteUint8(0)
}

// WriteUint8 writes an unsigned 8-bit integer.
func (w *Writer) WriteUint8(v uint8) error {
	if err := w.ensureAdditionalCapacity(1); err != nil {
		return err
	}
	w.view.Buf.PutUint8(w.view.Pos, v)
	w.view.Pos++

	return nil
}

// WriteInt8 writes a signed 8-bit integer.
func (w *Writer) WriteInt8(v int8) error {
	return w.WriteUint8(uint8(v))
}

// WriteUint16 writes an unsigned 16-bit integer.
func (w *Writer) WriteUint16(v uint16) error {
	if err := w.ensureAdditionalCapacity(2); err != nil {
		return err
	}
	w.view.Buf.PutUint16(w.view.Pos, v)
	w.view.Pos += 2

	return nil
}

// WriteInt16 writes a signed 16-bit integer.
func (w *Writer) WriteInt16(v int16) error {
	return w.WriteUint16(uint16(v))
}

// WriteUint32 writes an unsigned 32-bit integer.
func (w *Writer) WriteUint32(v uint32) error {
	if err := w.ensureAdditionalCapacity(4); err != nil {
		return err
	}
	w.view.Buf.PutUint32(w.view.Pos, v)
	w.view.Pos += 4

	return nil
}

// WriteInt32 writes a signed 32-bit integer.
func (w *Writer) WriteInt32(v int32) error {
	return w.WriteUint32(uint32(v))
}

// WriteUint64 writes an unsigned 64-bit integer.
func (w *Writer) WriteUint64(v uint64) error {
	if err := w.ensureAdditionalCapacity(8); err != nil {
		return err
	}
	w.view.Buf.PutUint64(w.view.Pos, v)
	w.view.Pos += 8

	return nil
}

// WriteInt64 writes a signed 64-bit integer.
func (w *Writer) WriteInt64(v int64) error {
	return w.WriteUint64(uint64(v))
}

// WriteFloat32 writes an IEEE-754 32-bit float.
func (w *Writer) WriteFloat32(v float32) error {
	if err := w.ensureAdditionalCapacity(4); err != nil {
		return err
	}
	w.view.Buf.PutFloat32(w.view.Pos, v)
	w.view.Pos += 4

	return nil
}

// WriteFloat64 writes an IEEE-754 64-bit float.
func (w *Writer) WriteFloat64(v float64) error {
	if err := w.ensureAdditionalCapacity(8); err != nil {
		return err
	}
	w.view.Buf.PutFloat64(w.view.Pos, v)
	w.view.Pos += 8

	return nil
}

// WriteIntN writes a signed integer of the given byte width (1, 2, 4, or 8).
func (w *Writer) WriteIntN(v int64, width int) error {
	switch width {
	case 1:
		return w.WriteInt8(int8(v))
	case 2:
		return w.WriteInt16(int16(v))
	case 4:
		return w.WriteInt32(int32(v))
	case 8:
		return w.WriteInt64(v)
	default:
		return fmt.Errorf("invalid integer width %d", width)
	}
}

// WriteEnum writes an enum ordinal with a width chosen by the constant count:
// one byte up to 256 constants, two bytes up to 65536, four bytes otherwise
// (including the unbounded case constantCount == 0).
func (w *Writer) WriteEnum(value int, constantCount int) error {
	switch {
	case constantCount == 0 || constantCount > 0x10000:
		return w.WriteInt32(int32(value))
	case constantCount <= 0x100:
		return w.WriteUint8(uint8(value))
	default:
		return w.WriteUint16(uint16(value))
	}
}

// WriteString writes a null-terminated byte string.
func (w *Writer) WriteString(s string) error {
	if err := w.WriteRawString(s); err != nil {
		return err
	}

	return w.WriteUint8(0)
}

// WriteRawString writes a byte string without termination.
func (w *Writer) WriteRawString(s string) error {
	return w.WriteBytes([]byte(s))
}

// WriteLine writes a byte string terminated by a newline.
func (w *Writer) WriteLine(s string) error {
	if err := w.WriteRawString(s); err != nil {
		return err
	}

	return w.WriteUint8('\n')
}

// WriteWideString writes a null-terminated wide string (2-byte UTF-16 code
// units).
func (w *Writer) WriteWideString(s string) error {
	if err := w.WriteRawWideString(s); err != nil {
		return err
	}

	return w.WriteUint16(0)
}

// WriteRawWideString writes a wide string without termination.
func (w *Writer) WriteRawWideString(s string) error {
	for _, unit := range utf16.Encode([]rune(s)) {
		if err := w.WriteUint16(unit); err != nil {
			return err
		}
	}

	return nil
}

// WriteBytes writes a raw byte range, committing to the sink as the view
// fills.
func (w *Writer) WriteBytes(p []byte) error {
	for len(p) > 0 {
		n := min(len(p), w.view.Remaining())
		w.view.Buf.PutBytes(w.view.Pos, p[:n])
		w.view.Pos += n
		p = p[n:]
		if len(p) == 0 {
			return nil
		}
		if err := w.commitData(len(p)); err != nil {
			return err
		}
	}

	return nil
}

// WriteBuffer writes length bytes of an external store starting at offset.
//
// Ranges at least as large as the copy fraction of the view are handed
// straight to the sink when it supports direct writes. A pending skip-offset
// placeholder disables the bypass, since patching it requires the written
// bytes to remain addressable in the view.
func (w *Writer) WriteBuffer(src *buffer.Fixed, offset, length int) error {
	if length >= w.copyFraction && w.directWrite && w.skipOffsetPos < 0 {
		if err := w.commitData(-1); err != nil {
			return err
		}
		if err := w.sink.DirectWrite(&w.view, src, offset, length); err != nil {
			return fmt.Errorf("sink direct write: %w", err)
		}

		return nil
	}

	if w.view.Remaining() >= length {
		w.view.Buf.Copy(w.view.Pos, src, offset, length)
		w.view.Pos += length

		return nil
	}

	for length > 0 {
		n := min(length, w.view.Remaining())
		w.view.Buf.Copy(w.view.Pos, src, offset, n)
		w.view.Pos += n
		offset += n
		length -= n
		if length == 0 {
			return nil
		}
		if err := w.commitData(length); err != nil {
			return err
		}
	}

	return nil
}

// WriteWholeBuffer writes the entire contents of an external store.
func (w *Writer) WriteWholeBuffer(src *buffer.Fixed) error {
	return w.WriteBuffer(src, 0, src.Capacity())
}

// WriteAllAvailable drains every byte the reader can currently supply into
// this stream.
func (w *Writer) WriteAllAvailable(r *Reader) error {
	for r.MoreDataAvailable() {
		if err := r.ensureAvailable(1); err != nil {
			return err
		}
		n := r.cur.Remaining()
		if err := w.WriteBuffer(r.cur.Buf, r.cur.Pos, n); err != nil {
			return err
		}
		r.cur.Pos = r.cur.End
	}

	return nil
}

// WriteSkipOffsetPlaceholder reserves four bytes for a forward skip offset.
// Only one placeholder may be outstanding at a time; call SkipTargetHere once
// the stream reaches the position readers may skip to.
func (w *Writer) WriteSkipOffsetPlaceholder() error {
	return w.writeSkipOffsetPlaceholder(false)
}

// WriteShortSkipOffsetPlaceholder reserves a single byte for a forward skip
// offset whose distance is known to stay below 256 bytes, making the stream
// three bytes shorter.
func (w *Writer) WriteShortSkipOffsetPlaceholder() error {
	return w.writeSkipOffsetPlaceholder(true)
}

func (w *Writer) writeSkipOffsetPlaceholder(short bool) error {
	if w.skipOffsetPos >= 0 {
		return fmt.Errorf("%w: placeholders cannot nest", errs.ErrPlaceholderPending)
	}
	width := 4
	if short {
		width = 1
	}
	// Reserve space first so recording the position happens after any commit
	// the reservation may trigger.
	if err := w.ensureAdditionalCapacity(width); err != nil {
		return err
	}
	w.skipOffsetPos = w.view.Pos
	w.shortSkip = short
	if short {
		w.view.Buf.PutInt8(w.view.Pos, math.MinInt8)
		w.view.Pos++
	} else {
		w.view.Buf.PutInt32(w.view.Pos, math.MinInt32)
		w.view.Pos += 4
	}

	return nil
}

// SkipTargetHere patches the pending placeholder with the distance from the
// placeholder to the current position and clears it.
func (w *Writer) SkipTargetHere() error {
	if w.skipOffsetPos < 0 {
		return errors.New("no skip offset placeholder outstanding")
	}
	if w.shortSkip {
		distance := w.view.Pos - w.skipOffsetPos - 1
		if distance > math.MaxUint8 {
			return fmt.Errorf("short skip offset distance %d exceeds 255 bytes", distance)
		}
		w.view.Buf.PutUint8(w.skipOffsetPos, uint8(distance))
	} else {
		distance := w.view.Pos - w.skipOffsetPos - 4
		w.view.Buf.PutInt32(w.skipOffsetPos, int32(distance))
	}
	w.skipOffsetPos = -1

	return nil
}

// WriteRegisterEntry writes a reference to a register entry using the
// encoding negotiated for its registry id.
//
// The returned bool reports Identifier encoding: nothing was written here and
// the caller must serialize the entry's globally-unique identifier itself.
func (w *Writer) WriteRegisterEntry(uid, handle int) (bool, error) {
	if uid < 0 || uid >= MaxPublishedRegisters {
		return false, fmt.Errorf("%w: %d", errs.ErrInvalidRegistryID, uid)
	}
	encoding := w.target.EncodingFor(uid)
	if encoding == Identifier {
		return true, nil
	}
	if w.dir == nil {
		return false, errs.ErrNoDirectory
	}
	entry := w.dir.lookup(uid)
	if entry == nil {
		return false, fmt.Errorf("%w: registry %d not in directory", errs.ErrInvalidRegistryID, uid)
	}
	width := entry.reg.HandleWidth()
	if encoding == PublishOnDemand || encoding == PublishOnChange {
		if _, err := w.WriteRegisterUpdates(uid, handle, width); err != nil {
			return false, err
		}
	}

	return false, w.WriteIntN(int64(handle), width)
}

// WriteLastRegisterEntry writes a reference to the most recently added entry
// of a registry. With a publish encoding this brings the receiver's entire
// mirror up to date as a side effect.
func (w *Writer) WriteLastRegisterEntry(uid int) (bool, error) {
	if uid < 0 || uid >= MaxPublishedRegisters {
		return false, fmt.Errorf("%w: %d", errs.ErrInvalidRegistryID, uid)
	}
	if w.target.EncodingFor(uid) == Identifier {
		return true, nil
	}
	if w.dir == nil {
		return false, errs.ErrNoDirectory
	}
	entry := w.dir.lookup(uid)
	if entry == nil {
		return false, fmt.Errorf("%w: registry %d not in directory", errs.ErrInvalidRegistryID, uid)
	}

	return w.WriteRegisterEntry(uid, entry.reg.Size()-1)
}

// pendingUpdate describes one registry's backlog of unpublished entries.
type pendingUpdate struct {
	uid      int
	from, to int
	binding  *publishedRegister
}

// WriteRegisterUpdates publishes unpublished register entries the receiver
// needs before it can resolve the given handle.
//
// For the referenced registry, entries up to the handle (PublishOnDemand) or
// up to the current size (PublishOnChange) are included; every other
// PublishOnChange registry with a backlog is flushed alongside. When anything
// is published, the block is preceded by the update sentinel in handleWidth
// bytes (omitted for width 0) and closed with the terminator id.
//
// Returns whether anything was written. Most callers use WriteRegisterEntry
// instead; this is exported for explicit update records.
func (w *Writer) WriteRegisterUpdates(uid, handle, handleWidth int) (bool, error) {
	if w.target.Revision() == LegacyRevision {
		return false, errors.New("revision 0 register update framing is read-only")
	}
	if w.dir == nil {
		return false, errs.ErrNoDirectory
	}
	if uid < 0 || uid >= MaxPublishedRegisters {
		return false, fmt.Errorf("%w: %d", errs.ErrInvalidRegistryID, uid)
	}

	var updates []pendingUpdate

	appendBacklog := func(u int, limitToHandle bool) {
		binding := w.dir.lookup(u)
		if binding == nil {
			return
		}
		upTo := binding.reg.Size()
		if limitToHandle && handle+1 < upTo {
			upTo = handle + 1
		}
		if upTo > w.published[u] {
			updates = append(updates, pendingUpdate{uid: u, from: w.published[u], to: upTo, binding: binding})
		}
	}

	// The referenced registry publishes first, then any other on-change
	// registry with a backlog.
	if enc := w.target.EncodingFor(uid); enc == PublishOnDemand || enc == PublishOnChange {
		appendBacklog(uid, enc == PublishOnDemand)
	}
	for u := 0; u < MaxPublishedRegisters; u++ {
		if u == uid {
			continue
		}
		if w.target.EncodingFor(u) == PublishOnChange {
			appendBacklog(u, false)
		}
	}

	if len(updates) == 0 {
		return false, nil
	}

	if handleWidth > 0 {
		if err := w.WriteIntN(handleUpdateFollows, handleWidth); err != nil {
			return false, err
		}
	}
	for _, up := range updates {
		if err := w.WriteUint8(uint8(up.uid)); err != nil {
			return false, err
		}
		if err := w.WriteInt32(int32(up.to - up.from)); err != nil {
			return false, err
		}
		for i := up.from; i < up.to; i++ {
			if err := up.binding.codec.EncodeEntry(w, up.binding.reg.Entry(i)); err != nil {
				return false, fmt.Errorf("registry %d entry %d: %w", up.uid, i, err)
			}
		}
		w.published[up.uid] = up.to
	}
	if err := w.WriteUint8(updateBlockTerminator); err != nil {
		return false, err
	}

	return true, nil
}
