package stream

import (
	"fmt"
	"sync"

	"github.com/arloliu/bstream/register"
)

// EntryCodec serializes and deserializes entries of one published register.
// Handles are never part of the entry payload; they are implied by order.
type EntryCodec interface {
	// EncodeEntry writes one local register entry to the stream.
	EncodeEntry(w *Writer, entry any) error

	// DecodeEntry reads one entry and returns its remote representation. The
	// returned value is appended to the reader's mirror at the next handle.
	DecodeEntry(r *Reader) (any, error)
}

// LocalRegister is the view of a register the directory needs: size, handle
// geometry, and untyped entry access. *register.Register[T] satisfies it for
// any T.
type LocalRegister interface {
	Size() int
	Entry(handle int) any
	HandleWidth() int
	ChunkCount() int
	ChunkSize() int
}

// publishedRegister binds one registry id to its local register and codec.
type publishedRegister struct {
	reg   LocalRegister
	codec EntryCodec
}

// Directory is the published-register directory: it binds registry ids
// (0 to MaxPublishedRegisters-1) to local registers and entry codecs.
//
// Ids must be consistent across every process that reads or writes the same
// serialized data, so a high-level entity that knows all relevant registers
// should assign them. A Directory is an explicit context passed to streams;
// create one per process, or one per test for isolation.
type Directory struct {
	mu         sync.RWMutex
	registers  [MaxPublishedRegisters]*publishedRegister
	emptyEntry any
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{}
}

// Publish binds a registry id to a register and its codec. Binding an id
// already occupied by a different register is an error; re-binding the same
// register is a no-op.
func (d *Directory) Publish(uid int, reg LocalRegister, codec EntryCodec) error {
	if uid < 0 || uid >= MaxPublishedRegisters {
		return fmt.Errorf("registry id %d out of range [0,%d)", uid, MaxPublishedRegisters)
	}
	if reg == nil || codec == nil {
		return fmt.Errorf("registry id %d: nil register or codec", uid)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing := d.registers[uid]; existing != nil {
		if existing.reg != reg {
			return fmt.Errorf("registry id %d already occupied by a different register", uid)
		}

		return nil
	}
	d.registers[uid] = &publishedRegister{reg: reg, codec: codec}

	return nil
}

// Register returns the local register bound to a registry id.
func (d *Directory) Register(uid int) (LocalRegister, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if uid < 0 || uid >= MaxPublishedRegisters || d.registers[uid] == nil {
		return nil, false
	}

	return d.registers[uid].reg, true
}

// SetEmptyEntry configures the entry substituted whenever the well-known -1
// handle sentinel is read from a stream.
func (d *Directory) SetEmptyEntry(entry any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emptyEntry = entry
}

// EmptyEntry returns the configured -1 sentinel substitute.
func (d *Directory) EmptyEntry() any {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.emptyEntry
}

// lookup returns the binding for a uid, or nil.
func (d *Directory) lookup(uid int) *publishedRegister {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if uid < 0 || uid >= MaxPublishedRegisters {
		return nil
	}

	return d.registers[uid]
}

// remoteRegister is a per-reader mirror of one published registry, populated
// strictly in arrival order from update blocks so its handle numbering
// matches the sender's local numbering.
type remoteRegister struct {
	entries *register.Register[any]
	codec   EntryCodec
}

// newRemoteRegister creates a mirror with the same geometry as the sender's
// local register.
func (p *publishedRegister) newRemoteRegister() (*remoteRegister, error) {
	entries, err := register.New[any](p.reg.ChunkCount(), p.reg.ChunkSize(), p.reg.HandleWidth())
	if err != nil {
		return nil, err
	}

	return &remoteRegister{entries: entries, codec: p.codec}, nil
}

// deserializeEntries consumes one update block's entries and appends them to
// the mirror. The legacy (revision 0) framing is a terminated sequence of
// 2-byte markers instead of a leading count.
func (m *remoteRegister) deserializeEntries(r *Reader, legacy bool) error {
	if legacy {
		if m.entries.Size() == 0 {
			// Legacy streams open the very first exchange with an extra
			// 2-byte header that carries no entry data.
			if _, err := r.ReadInt16(); err != nil {
				return err
			}
		}
		for {
			marker, err := r.ReadInt16()
			if err != nil {
				return err
			}
			if marker == -1 {
				return nil
			}
			entry, err := m.codec.DecodeEntry(r)
			if err != nil {
				return err
			}
			if _, err := m.entries.Add(entry); err != nil {
				return err
			}
		}
	}

	count, err := r.ReadInt32()
	if err != nil {
		return err
	}
	for i := int32(0); i < count; i++ {
		entry, err := m.codec.DecodeEntry(r)
		if err != nil {
			return err
		}
		if _, err := m.entries.Add(entry); err != nil {
			return err
		}
	}

	return nil
}
