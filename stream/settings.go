package stream

import "fmt"

// RegisterEncoding specifies how entries of one published register are
// referenced on a stream, trading bandwidth against portability.
type RegisterEncoding uint8

const (
	// LocalHandle transmits raw in-process handles. Fastest, but only
	// decodable by a peer sharing the identical table, and unsuitable for
	// persisted data.
	LocalHandle RegisterEncoding = iota

	// Identifier transmits no handle at all; the caller serializes a
	// globally-unique identifier out of band and resolves it independently.
	// Most portable and most expensive; required across incompatible registry
	// versions.
	Identifier

	// PublishOnDemand transmits handles, publishing every not-yet-sent entry
	// up to and including a handle the first time it is referenced on the
	// stream. Afterwards only the raw handle travels.
	PublishOnDemand

	// PublishOnChange has the same wire shape as PublishOnDemand, but any
	// write of any value from the registry flushes all unpublished entries,
	// keeping the receiver's mirror complete.
	PublishOnChange
)

func (e RegisterEncoding) String() string {
	switch e {
	case LocalHandle:
		return "local-handle"
	case Identifier:
		return "identifier"
	case PublishOnDemand:
		return "publish-on-demand"
	case PublishOnChange:
		return "publish-on-change"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

const (
	// MaxPublishedRegisters is the number of registry ids (0-14) a stream can
	// negotiate encodings for.
	MaxPublishedRegisters = 15

	// LegacyRevision is the protocol revision using the legacy register
	// update framing (short-terminated, registry 0 only). Supported read-only.
	LegacyRevision = 0

	// DefaultRevision is the revision new writers emit.
	DefaultRevision = 1
)

// Settings is the immutable stream encoding negotiation descriptor shared
// between peers: a protocol revision, a packed 2-bit-per-registry encoding
// table (16 slots, slot 0 is the default encoding), and opaque custom info.
//
// Settings values are exchanged by a mechanism outside this package (the
// three int32 fields in wire order: revision, encodings, custom info) and are
// never mutated after construction.
type Settings struct {
	revision   int32
	encodings  uint32
	customInfo int32
}

// NewSettings creates a descriptor from its three wire fields.
func NewSettings(revision int32, encodings uint32, customInfo int32) Settings {
	return Settings{revision: revision, encodings: encodings, customInfo: customInfo}
}

// NewSettingsWithDefault creates a descriptor applying one encoding to every
// registry slot including the default slot.
func NewSettingsWithDefault(revision int32, defaultEncoding RegisterEncoding, customInfo int32) Settings {
	return Settings{
		revision:   revision,
		encodings:  EncodingsWithDefault(defaultEncoding),
		customInfo: customInfo,
	}
}

// DefaultSettings returns the descriptor used when none is negotiated:
// the current revision with Identifier encoding everywhere, which keeps
// streams portable and publishes nothing implicitly.
func DefaultSettings() Settings {
	return NewSettingsWithDefault(DefaultRevision, Identifier, 0)
}

// Revision returns the protocol revision.
func (s Settings) Revision() int32 {
	return s.revision
}

// Encodings returns the packed 2-bit-per-registry encoding table.
func (s Settings) Encodings() uint32 {
	return s.encodings
}

// CustomInfo returns the user-attached info field.
func (s Settings) CustomInfo() int32 {
	return s.customInfo
}

// EncodingFor returns the encoding negotiated for a registry id.
// Passing -1 returns the default encoding (slot 0).
func (s Settings) EncodingFor(uid int) RegisterEncoding {
	return RegisterEncoding((s.encodings >> (2 * uint(uid+1))) & 0x3)
}

// HasPublishedRegisters reports whether any slot uses a publish encoding.
// Both publish encodings have the high bit of their 2-bit slot set.
func (s Settings) HasPublishedRegisters() bool {
	return s.encodings&0xAAAAAAAA != 0
}

// EncodingsWithDefault builds an encoding table with every slot set to the
// given encoding.
func EncodingsWithDefault(encoding RegisterEncoding) uint32 {
	return uint32(encoding) * 0x55555555
}

// SetRegisterEncoding returns a copy of the encoding table with the slot for
// one registry id replaced.
func SetRegisterEncoding(encodings uint32, uid int, encoding RegisterEncoding) uint32 {
	shift := uint(uid+1) * 2
	encodings &^= 0x3 << shift
	encodings |= uint32(encoding) << shift

	return encodings
}

// Serialize writes the descriptor's three wire fields. This is the payload
// peers exchange during negotiation, before any stream data flows.
func (s Settings) Serialize(w *Writer) error {
	if err := w.WriteInt32(s.revision); err != nil {
		return err
	}
	if err := w.WriteUint32(s.encodings); err != nil {
		return err
	}

	return w.WriteInt32(s.customInfo)
}

// DeserializeSettings reads a descriptor from its three wire fields.
func DeserializeSettings(r *Reader) (Settings, error) {
	revision, err := r.ReadInt32()
	if err != nil {
		return Settings{}, err
	}
	encodings, err := r.ReadUint32()
	if err != nil {
		return Settings{}, err
	}
	customInfo, err := r.ReadInt32()
	if err != nil {
		return Settings{}, err
	}

	return NewSettings(revision, encodings, customInfo), nil
}
