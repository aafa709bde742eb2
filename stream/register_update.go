package stream

import "math"

// RegisterUpdate is a standalone update record for published registers. Writing
// one brings the receiver's mirror of the named registry fully up to date, along
// with every PublishOnChange registry with a backlog, without referencing any
// particular entry.
//
// Use it to push register contents ahead of data that depends on them, or as a
// periodic refresh on long-lived connections.
type RegisterUpdate struct {
	uid int
}

// NewRegisterUpdate creates an update record for the given registry id.
func NewRegisterUpdate(uid int) RegisterUpdate {
	return RegisterUpdate{uid: uid}
}

// UID returns the registry id this record updates.
func (u RegisterUpdate) UID() int {
	return u.uid
}

// Serialize writes all unpublished entries of the registry (and of every
// PublishOnChange registry with a backlog). With nothing to publish, a lone
// terminator keeps the record decodable.
func (u RegisterUpdate) Serialize(w *Writer) error {
	// Handle width 0 suppresses the update sentinel; the record consists of
	// the blocks and terminator alone.
	wrote, err := w.WriteRegisterUpdates(u.uid, math.MaxInt32, 0)
	if err != nil {
		return err
	}
	if !wrote {
		return w.WriteUint8(updateBlockTerminator)
	}

	return nil
}

// Deserialize consumes one update record, appending entries to the reader's
// mirrors.
func (u RegisterUpdate) Deserialize(r *Reader) error {
	return r.ReadRegisterUpdates()
}
