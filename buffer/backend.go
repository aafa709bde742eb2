package buffer

// Source supplies buffer views to a decoding stream on demand.
//
// A Source is responsible for the storage it hands out through the view; the
// stream only moves the cursor. A single Source instance may be driven by at
// most one stream at a time.
type Source interface {
	// Reset points the view at the initial data window. It is called when a
	// stream is associated with the source. Supporting more than one reset is
	// optional; one-shot streaming sources may return an error on the second
	// call.
	Reset(v *View) error

	// Fetch makes at least minBytes available for reading, replacing or
	// refilling the view's window. It may block until that many bytes exist.
	// A finite source that is exhausted returns a protocol error.
	Fetch(v *View, minBytes int) error

	// MoreDataAvailable reports whether any bytes beyond the current window
	// can be fetched. It must not block.
	MoreDataAvailable(v *View) bool

	// DirectReadSupport reports whether DirectRead may be called. This is an
	// optional copy-avoidance fast path.
	DirectReadSupport() bool

	// DirectRead copies exactly length bytes from the source into dst at
	// offset, bypassing the view's window.
	DirectRead(v *View, dst *Fixed, offset, length int) error

	// Close releases source resources. Closing is idempotent.
	Close(v *View) error
}

// Sink consumes buffer views filled by an encoding stream.
//
// A single Sink instance may be driven by at most one stream at a time.
type Sink interface {
	// ResetWrite points the view at an initial writable window of at least 8
	// bytes. It is called when a stream is associated with the sink. The name
	// differs from Source.Reset so one backend can implement both roles.
	ResetWrite(v *View) error

	// Write persists the bytes between the view's Start and Pos and prepares
	// the view for further writing. sizeHint is the number of additional
	// bytes the stream intends to write; -1 indicates a manual flush with no
	// need to grow. The returned bool reports whether a pending skip-offset
	// placeholder in the old window became unpatchable (true whenever the
	// window's byte positions are no longer addressable).
	Write(v *View, sizeHint int) (bool, error)

	// DirectWriteSupport reports whether DirectWrite may be called. This is
	// an optional copy-avoidance fast path.
	DirectWriteSupport() bool

	// DirectWrite hands length bytes of src starting at offset straight to
	// the sink, bypassing the view. Only called after the view has been
	// committed via Write.
	DirectWrite(v *View, src *Fixed, offset, length int) error

	// Flush commits all written data to the underlying device.
	Flush(v *View) error

	// Close releases sink resources. Closing is idempotent.
	Close(v *View) error
}
