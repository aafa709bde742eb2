package buffer

// View is a borrowed window [Start,End) over a Fixed store with a read/write
// cursor. It is passed by reference between a stream and its backend: the
// backend points it at storage on Reset/Fetch/Write, the stream moves Pos on
// every primitive operation. A View never owns the storage it describes.
//
// Invariant: Start <= Pos <= End <= Buf.Capacity().
type View struct {
	// Buf is the store this view currently operates on.
	Buf *Fixed

	// Start of the window (inclusive).
	Start int

	// End of the window (exclusive).
	End int

	// Pos is the current read or write position.
	Pos int

	// BackendTag is opaque per-view state owned by the Source/Sink managing
	// this view.
	BackendTag any
}

// Remaining returns the bytes left between the cursor and the window end.
func (v *View) Remaining() int {
	return v.End - v.Pos
}

// WriteLen returns the number of bytes written so far (for sinks).
func (v *View) WriteLen() int {
	return v.Pos - v.Start
}

// Capacity returns the total window size End - Start.
func (v *View) Capacity() int {
	return v.End - v.Start
}

// SetRange sets the window boundaries.
func (v *View) SetRange(start, end int) {
	v.Start = start
	v.End = end
}

// Assign copies all fields from another view.
func (v *View) Assign(other *View) {
	*v = *other
}

// Reset detaches the view from any storage.
func (v *View) Reset() {
	*v = View{}
}
