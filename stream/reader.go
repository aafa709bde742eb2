package stream

import (
	"bytes"
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/arloliu/bstream/buffer"
	"github.com/arloliu/bstream/endian"
	"github.com/arloliu/bstream/errs"
	"github.com/arloliu/bstream/internal/options"
	"github.com/arloliu/bstream/internal/pool"
	"github.com/arloliu/bstream/register"
)

// The boundary buffer straddles fetches: up to boundaryHalf trailing bytes of
// the old window plus the leading bytes of the next one. Its size covers the
// worst case of a 7-byte tail followed by the 7 bytes completing an 8-byte
// primitive.
const boundaryHalf = 7

// Reader is the binary decoding engine. It pulls buffer views from a Source
// and decodes primitives, strings, skip-offsets, and register-backed
// references, fetching the next window whenever a value is not fully
// available.
//
// Values straddling a window boundary are assembled in a small internal
// boundary buffer, so sources may hand out windows of any size (down to a
// single byte) without affecting decoded results.
//
// A Reader is not safe for concurrent use; exactly one goroutine may drive it
// at a time. It owns its Source and closes it exactly once.
type Reader struct {
	source buffer.Source

	sourceView      buffer.View
	boundaryView    buffer.View
	boundaryBackend *buffer.Fixed
	cur             *buffer.View

	// Base offset of the active cursor: absoluteReadPos + cur.Pos is the
	// stream position of the next byte. Rebased whenever the cursor moves
	// between the source window and the boundary buffer.
	absoluteReadPos int64

	// Absolute stream position of the most recently read skip offset's
	// target, -1 when none.
	skipTarget int64

	settings Settings
	dir      *Directory

	// Per-registry mirrors of the sender's published registers. The slice is
	// shared between readers that share a serialization context.
	mirrors []*remoteRegister

	timeout    time.Duration
	directRead bool
	closed     bool
}

// ReaderOption configures a Reader.
type ReaderOption = options.Option[*Reader]

// WithSourceSettings sets the negotiation descriptor the data was encoded
// with. The default is DefaultSettings().
func WithSourceSettings(s Settings) ReaderOption {
	return options.NoError(func(r *Reader) {
		r.settings = s
	})
}

// WithReaderDirectory sets the published-register directory used to resolve
// registry ids. Required when the source settings use any encoding other
// than Identifier.
func WithReaderDirectory(d *Directory) ReaderOption {
	return options.NoError(func(r *Reader) {
		r.dir = d
	})
}

// WithTimeout sets how long blocking reads poll a source that reports no data
// before giving up with errs.ErrReadTimeout. Zero (the default) blocks in the
// source itself.
func WithTimeout(timeout time.Duration) ReaderOption {
	return options.NoError(func(r *Reader) {
		r.timeout = timeout
	})
}

// NewReader creates a Reader draining the given source.
func NewReader(source buffer.Source, opts ...ReaderOption) (*Reader, error) {
	r := &Reader{
		boundaryBackend: buffer.NewFixed(2*boundaryHalf, endian.GetNativeEngine()),
		skipTarget:      -1,
		settings:        DefaultSettings(),
		mirrors:         make([]*remoteRegister, MaxPublishedRegisters),
		closed:          true,
	}
	if err := options.Apply(r, opts...); err != nil {
		return nil, err
	}
	if r.settings.HasPublishedRegisters() && r.dir == nil {
		return nil, fmt.Errorf("%w: source settings publish registers", errs.ErrNoDirectory)
	}
	if err := r.Reset(source); err != nil {
		return nil, err
	}

	return r, nil
}

// Reset closes the current source (if any) and starts reading from a new one.
// Register mirrors survive a reset: they belong to the sending peer, not to
// an individual buffer exchanged with it.
func (r *Reader) Reset(source buffer.Source) error {
	if err := r.Close(); err != nil {
		return err
	}
	r.source = source
	if err := r.source.Reset(&r.sourceView); err != nil {
		return fmt.Errorf("source reset: %w", err)
	}
	r.boundaryView = buffer.View{Buf: r.boundaryBackend}
	r.cur = &r.sourceView
	r.absoluteReadPos = 0
	r.skipTarget = -1
	r.directRead = r.source.DirectReadSupport()
	r.closed = false

	return nil
}

// SourceSettings returns the negotiation descriptor this reader decodes with.
func (r *Reader) SourceSettings() Settings {
	return r.settings
}

// ShareSerializationContext makes this reader decode with the same settings
// and register mirrors as another reader. Use it when several buffers from
// the same sending peer are decoded by separate readers: published entries
// arriving on one stay resolvable on all of them.
func (r *Reader) ShareSerializationContext(from *Reader) {
	r.settings = from.settings
	r.dir = from.dir
	r.mirrors = from.mirrors
}

// Timeout returns the blocking-read timeout (zero when disabled).
func (r *Reader) Timeout() time.Duration {
	return r.timeout
}

// SetTimeout changes the blocking-read timeout (zero disables it).
func (r *Reader) SetTimeout(timeout time.Duration) {
	r.timeout = timeout
}

// Remaining returns the unread bytes left in the current window. More data
// may still be fetchable from the source.
func (r *Reader) Remaining() int {
	return r.cur.Remaining()
}

// MoreDataAvailable reports whether at least one more byte can be read
// without blocking on an empty source.
func (r *Reader) MoreDataAvailable() bool {
	if r.cur.Remaining() > 0 {
		return true
	}

	return r.source.MoreDataAvailable(&r.sourceView)
}

// AbsoluteReadPosition returns the number of bytes ever consumed from this
// stream.
func (r *Reader) AbsoluteReadPosition() int64 {
	return r.absoluteReadPos + int64(r.cur.Pos)
}

// Close releases the source. Closing is idempotent past the first call.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.source.Close(&r.sourceView); err != nil {
		return fmt.Errorf("source close: %w", err)
	}

	return nil
}

func (r *Reader) usingBoundary() bool {
	return r.cur == &r.boundaryView
}

// ensureAvailable guarantees n contiguous readable bytes at the cursor,
// fetching from the source if needed. n must not exceed 8.
func (r *Reader) ensureAvailable(n int) error {
	if r.closed {
		return errs.ErrStreamClosed
	}
	if r.cur.Remaining() < n {
		return r.fetchNextBytes(n - r.cur.Remaining())
	}

	return nil
}

// fetchNextBytes obtains at least minRequired further bytes from the source.
//
// If the current window still holds a partial value, its tail is copied into
// the first half of the boundary buffer and the head of the freshly fetched
// window into the second half, so the value can be decoded contiguously. The
// boundary buffer is always consumed exactly: every ensure/decode pair reads
// precisely the ensured width, leaving the cursor at the old/new seam or at
// the window end when the next fetch happens.
//
// Position bookkeeping keeps the invariant absoluteReadPos + cur.Pos ==
// total bytes consumed across every cursor move here. Adjustments are
// derived from how far the active cursor actually moved, so sources that
// replace the window on Fetch and sources that extend it in place (Memory)
// both stay exact.
func (r *Reader) fetchNextBytes(minRequired int) error {
	// Done with the boundary buffer? Resume on the source window. The source
	// cursor already sits past the bytes mirrored into the boundary's second
	// half; rewind it by whatever the boundary did not consume (a bulk read
	// may stop mid-buffer), then rebase the absolute position onto the
	// source cursor.
	if r.usingBoundary() && r.boundaryView.Pos >= boundaryHalf {
		r.sourceView.Pos -= r.boundaryView.End - r.boundaryView.Pos
		r.absoluteReadPos += int64(r.boundaryView.Pos - r.sourceView.Pos)
		r.cur = &r.sourceView

		return r.ensureAvailable(minRequired)
	}

	remain := r.cur.Remaining()
	if remain > 0 {
		r.boundaryView.Start = 0
		r.boundaryView.Pos = boundaryHalf - remain
		r.boundaryBackend.Copy(boundaryHalf-remain, r.sourceView.Buf, r.sourceView.Pos, remain)
		// The tail now lives in the boundary buffer; rebase the absolute
		// position onto the boundary cursor and consume the tail from the
		// source so in-place refills do not serve it twice.
		r.absoluteReadPos += int64(r.sourceView.Pos - r.boundaryView.Pos)
		r.sourceView.Pos += remain
		r.cur = &r.boundaryView
	}

	if r.timeout > 0 {
		if err := r.waitForData(); err != nil {
			return err
		}
	}

	posBeforeFetch := r.sourceView.Pos
	if err := r.source.Fetch(&r.sourceView, minRequired); err != nil {
		return fmt.Errorf("source fetch: %w", err)
	}
	if r.sourceView.Remaining() < minRequired {
		return fmt.Errorf("%w: source delivered %d of %d bytes",
			errs.ErrBufferExhausted, r.sourceView.Remaining(), minRequired)
	}

	if remain > 0 {
		r.boundaryBackend.Copy(boundaryHalf, r.sourceView.Buf, r.sourceView.Pos, minRequired)
		r.boundaryView.End = boundaryHalf + minRequired
		r.sourceView.Pos += minRequired
	} else {
		// A replacing source rewinds the cursor on Fetch; the bytes consumed
		// before the refill move into the absolute base. An in-place refill
		// keeps the cursor, so nothing moves.
		r.absoluteReadPos += int64(posBeforeFetch - r.sourceView.Pos)
	}

	return nil
}

// waitForData polls the source with exponential backoff until it reports
// data or the timeout elapses.
func (r *Reader) waitForData() error {
	sleep := 20 * time.Millisecond
	var slept time.Duration
	for !r.source.MoreDataAvailable(&r.sourceView) {
		sleep *= 2
		time.Sleep(sleep)
		slept += sleep
		if slept > r.timeout {
			return fmt.Errorf("%w: no data within %v", errs.ErrReadTimeout, r.timeout)
		}
	}

	return nil
}

// ReadBool reads one byte and compares it against zero.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadUint8()

	return b != 0, err
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.ensureAvailable(1); err != nil {
		return 0, err
	}
	b := r.cur.Buf.GetUint8(r.cur.Pos)
	r.cur.Pos++

	return b, nil
}

// ReadInt8 reads a signed 8-bit integer.
func (r *Reader) ReadInt8() (int8, error) {
	b, err := r.ReadUint8()

	return int8(b), err
}

// Peek returns the next byte without advancing the cursor.
func (r *Reader) Peek() (uint8, error) {
	if err := r.ensureAvailable(1); err != nil {
		return 0, err
	}

	return r.cur.Buf.GetUint8(r.cur.Pos), nil
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.ensureAvailable(2); err != nil {
		return 0, err
	}
	v := r.cur.Buf.GetUint16(r.cur.Pos)
	r.cur.Pos += 2

	return v, nil
}

// ReadInt16 reads a signed 16-bit integer.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()

	return int16(v), err
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.ensureAvailable(4); err != nil {
		return 0, err
	}
	v := r.cur.Buf.GetUint32(r.cur.Pos)
	r.cur.Pos += 4

	return v, nil
}

// ReadInt32 reads a signed 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()

	return int32(v), err
}

// ReadUint64 reads an unsigned 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.ensureAvailable(8); err != nil {
		return 0, err
	}
	v := r.cur.Buf.GetUint64(r.cur.Pos)
	r.cur.Pos += 8

	return v, nil
}

// ReadInt64 reads a signed 64-bit integer.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()

	return int64(v), err
}

// ReadFloat32 reads an IEEE-754 32-bit float.
func (r *Reader) ReadFloat32() (float32, error) {
	if err := r.ensureAvailable(4); err != nil {
		return 0, err
	}
	v := r.cur.Buf.GetFloat32(r.cur.Pos)
	r.cur.Pos += 4

	return v, nil
}

// ReadFloat64 reads an IEEE-754 64-bit float.
func (r *Reader) ReadFloat64() (float64, error) {
	if err := r.ensureAvailable(8); err != nil {
		return 0, err
	}
	v := r.cur.Buf.GetFloat64(r.cur.Pos)
	r.cur.Pos += 8

	return v, nil
}

// ReadIntN reads a signed integer of the given byte width (1, 2, 4, or 8),
// sign-extended to int64.
func (r *Reader) ReadIntN(width int) (int64, error) {
	switch width {
	case 1:
		v, err := r.ReadInt8()
		return int64(v), err
	case 2:
		v, err := r.ReadInt16()
		return int64(v), err
	case 4:
		v, err := r.ReadInt32()
		return int64(v), err
	case 8:
		return r.ReadInt64()
	default:
		return 0, fmt.Errorf("invalid integer width %d", width)
	}
}

// ReadEnum reads an enum ordinal with the width implied by the constant
// count, matching Writer.WriteEnum.
func (r *Reader) ReadEnum(constantCount int) (int, error) {
	switch {
	case constantCount == 0 || constantCount > 0x10000:
		v, err := r.ReadInt32()
		return int(v), err
	case constantCount <= 0x100:
		v, err := r.ReadUint8()
		return int(v), err
	default:
		v, err := r.ReadUint16()
		return int(v), err
	}
}

// ReadString reads a null-terminated byte string, consuming the terminator.
func (r *Reader) ReadString() (string, error) {
	buf := pool.GetScratchBuffer()
	defer pool.PutScratchBuffer(buf)

	for {
		if err := r.ensureAvailable(1); err != nil {
			return "", err
		}
		window := r.cur.Buf.Bytes()[r.cur.Pos:r.cur.End]
		if i := bytes.IndexByte(window, 0); i >= 0 {
			buf.Write(window[:i])
			r.cur.Pos += i + 1

			return buf.String(), nil
		}
		buf.Write(window)
		r.cur.Pos = r.cur.End
	}
}

// ReadStringN reads exactly n bytes as a byte string with no terminator. The
// result is truncated at the first embedded null, but all n bytes are
// consumed.
func (r *Reader) ReadStringN(n int) (string, error) {
	raw := make([]byte, n)
	if err := r.ReadBytes(raw); err != nil {
		return "", err
	}
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}

	return string(raw), nil
}

// SkipString consumes a null-terminated byte string without materializing it.
func (r *Reader) SkipString() error {
	for {
		if err := r.ensureAvailable(1); err != nil {
			return err
		}
		window := r.cur.Buf.Bytes()[r.cur.Pos:r.cur.End]
		if i := bytes.IndexByte(window, 0); i >= 0 {
			r.cur.Pos += i + 1

			return nil
		}
		r.cur.Pos = r.cur.End
	}
}

// ReadLine reads a byte string terminated by a newline or a null byte,
// consuming the terminator.
func (r *Reader) ReadLine() (string, error) {
	buf := pool.GetScratchBuffer()
	defer pool.PutScratchBuffer(buf)

	for {
		b, err := r.ReadUint8()
		if err != nil {
			return "", err
		}
		if b == 0 || b == '\n' {
			return buf.String(), nil
		}
		buf.WriteByte(b)
	}
}

// ReadWideString reads a null-terminated wide string (2-byte UTF-16 code
// units), consuming the terminator.
func (r *Reader) ReadWideString() (string, error) {
	var units []uint16
	for {
		unit, err := r.ReadUint16()
		if err != nil {
			return "", err
		}
		if unit == 0 {
			return string(utf16.Decode(units)), nil
		}
		units = append(units, unit)
	}
}

// ReadWideStringN reads exactly n unterminated UTF-16 code units.
func (r *Reader) ReadWideStringN(n int) (string, error) {
	units := make([]uint16, n)
	for i := range units {
		unit, err := r.ReadUint16()
		if err != nil {
			return "", err
		}
		units[i] = unit
	}

	return string(utf16.Decode(units)), nil
}

// ReadBytes fills dst completely, fetching as many windows as necessary.
func (r *Reader) ReadBytes(dst []byte) error {
	for {
		n := min(r.cur.Remaining(), len(dst))
		r.cur.Buf.GetBytes(r.cur.Pos, dst[:n])
		r.cur.Pos += n
		dst = dst[n:]
		if len(dst) == 0 {
			return nil
		}
		if err := r.fetchNextBytes(1); err != nil {
			return err
		}
	}
}

// ReadBuffer fills length bytes of an external store starting at offset.
// Large remainders bypass the window when the source supports direct reads.
func (r *Reader) ReadBuffer(dst *buffer.Fixed, offset, length int) error {
	for {
		n := min(r.cur.Remaining(), length)
		dst.Copy(offset, r.cur.Buf, r.cur.Pos, n)
		r.cur.Pos += n
		offset += n
		length -= n
		if length == 0 {
			return nil
		}
		if r.usingBoundary() || !r.directRead {
			if err := r.fetchNextBytes(1); err != nil {
				return err
			}

			continue
		}
		if err := r.source.DirectRead(&r.sourceView, dst, offset, length); err != nil {
			return fmt.Errorf("source direct read: %w", err)
		}
		r.absoluteReadPos += int64(length)

		return nil
	}
}

// Skip discards n bytes.
func (r *Reader) Skip(n int) error {
	for {
		if r.cur.Remaining() >= n {
			r.cur.Pos += n

			return nil
		}
		n -= r.cur.Remaining()
		r.cur.Pos = r.cur.End
		if err := r.fetchNextBytes(1); err != nil {
			return err
		}
	}
}

// ReadSkipOffset reads a 4-byte skip offset at the current position and
// stores its absolute target for a later ToSkipTarget.
func (r *Reader) ReadSkipOffset() error {
	base := r.absoluteReadPos + int64(r.cur.Pos)
	distance, err := r.ReadInt32()
	if err != nil {
		return err
	}
	r.skipTarget = base + 4 + int64(distance)

	return nil
}

// ReadShortSkipOffset reads a 1-byte skip offset (unsigned distance) at the
// current position and stores its absolute target.
func (r *Reader) ReadShortSkipOffset() error {
	base := r.absoluteReadPos + int64(r.cur.Pos)
	distance, err := r.ReadUint8()
	if err != nil {
		return err
	}
	r.skipTarget = base + 1 + int64(distance)

	return nil
}

// ToSkipTarget advances to the target of the most recently read skip offset.
// The target is never behind the cursor; rewinding is a stream corruption.
func (r *Reader) ToSkipTarget() error {
	if r.skipTarget < 0 {
		return fmt.Errorf("%w: no skip offset has been read", errs.ErrInvalidSkipTarget)
	}
	pos := r.absoluteReadPos + int64(r.cur.Pos)
	if r.skipTarget < pos {
		return fmt.Errorf("%w: target %d behind position %d", errs.ErrInvalidSkipTarget, r.skipTarget, pos)
	}
	if err := r.Skip(int(r.skipTarget - pos)); err != nil {
		return err
	}
	r.skipTarget = -1

	return nil
}

// ReadRegisterEntry reads a reference to a register entry using the encoding
// negotiated for its registry id and resolves it.
//
// The returned bool reports Identifier encoding: nothing was consumed here
// and the caller must read the entry's globally-unique identifier itself.
func (r *Reader) ReadRegisterEntry(uid int) (any, bool, error) {
	if uid < 0 || uid >= MaxPublishedRegisters {
		return nil, false, fmt.Errorf("%w: %d", errs.ErrInvalidRegistryID, uid)
	}
	encoding := r.settings.EncodingFor(uid)
	if encoding == Identifier {
		return nil, true, nil
	}
	if r.dir == nil {
		return nil, false, errs.ErrNoDirectory
	}
	binding := r.dir.lookup(uid)
	if binding == nil {
		return nil, false, fmt.Errorf("%w: registry %d not in directory", errs.ErrInvalidRegistryID, uid)
	}

	handle, err := r.ReadIntN(binding.reg.HandleWidth())
	if err != nil {
		return nil, false, err
	}

	if encoding == LocalHandle {
		if handle == handleEmpty {
			return r.dir.EmptyEntry(), false, nil
		}
		if handle < 0 || int(handle) >= binding.reg.Size() {
			return nil, false, fmt.Errorf("%w: handle %d, registry %d holds %d entries",
				errs.ErrHandleOutOfBounds, handle, uid, binding.reg.Size())
		}

		return binding.reg.Entry(int(handle)), false, nil
	}

	if handle == handleUpdateFollows {
		if err := r.ReadRegisterUpdates(); err != nil {
			return nil, false, err
		}
		handle, err = r.ReadIntN(binding.reg.HandleWidth())
		if err != nil {
			return nil, false, err
		}
	}
	if handle == handleEmpty {
		return r.dir.EmptyEntry(), false, nil
	}

	mirror := r.mirrors[uid]
	if mirror == nil {
		return nil, false, fmt.Errorf("%w: registry %d referenced before any update block", errs.ErrProtocol, uid)
	}
	if handle < 0 || int(handle) >= mirror.entries.Size() {
		return nil, false, fmt.Errorf("%w: handle %d, mirror of registry %d holds %d entries",
			errs.ErrHandleOutOfBounds, handle, uid, mirror.entries.Size())
	}

	return mirror.entries.Get(int(handle)), false, nil
}

// ReadRegisterUpdates consumes register update blocks at the current
// position, appending the decoded entries to the per-registry mirrors.
//
// Revision 0 streams carry the legacy framing: entries of registry 0 only,
// with 2-byte markers instead of per-registry blocks. Most callers never use
// this directly; ReadRegisterEntry consumes update blocks on its own.
func (r *Reader) ReadRegisterUpdates() error {
	if r.dir == nil {
		return errs.ErrNoDirectory
	}

	if r.settings.Revision() == LegacyRevision {
		mirror, err := r.mirror(0)
		if err != nil {
			return err
		}

		return mirror.deserializeEntries(r, true)
	}

	for {
		uid, err := r.ReadUint8()
		if err != nil {
			return err
		}
		if uid == updateBlockTerminator {
			return nil
		}
		if int(uid) >= MaxPublishedRegisters {
			return fmt.Errorf("%w: update block for registry %d", errs.ErrInvalidRegistryID, uid)
		}
		mirror, err := r.mirror(int(uid))
		if err != nil {
			return err
		}
		if err := mirror.deserializeEntries(r, false); err != nil {
			return fmt.Errorf("registry %d update block: %w", uid, err)
		}
	}
}

// mirror returns the mirror for a registry id, creating it with the geometry
// of the locally published register on first use.
func (r *Reader) mirror(uid int) (*remoteRegister, error) {
	if m := r.mirrors[uid]; m != nil {
		return m, nil
	}
	binding := r.dir.lookup(uid)
	if binding == nil {
		return nil, fmt.Errorf("%w: registry %d not in directory", errs.ErrInvalidRegistryID, uid)
	}
	m, err := binding.newRemoteRegister()
	if err != nil {
		return nil, err
	}
	r.mirrors[uid] = m

	return m, nil
}

// RemoteRegister returns this reader's mirror of a published registry, or nil
// if no update block for it has arrived yet.
func (r *Reader) RemoteRegister(uid int) *register.Register[any] {
	if uid < 0 || uid >= MaxPublishedRegisters || r.mirrors[uid] == nil {
		return nil
	}

	return r.mirrors[uid].entries
}
