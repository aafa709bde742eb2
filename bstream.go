// Package bstream provides a compact binary stream format with
// published-register support for exchanging structured data between processes
// that share type knowledge.
//
// Data travels as raw fixed-width primitives in host-native byte order, with
// null-terminated strings, forward skip offsets for partial deserialization,
// and four negotiable encodings for references into append-only registers
// (see the stream and register packages).
//
// # Basic Usage
//
// Encoding into a growable in-memory buffer:
//
//	import "github.com/arloliu/bstream"
//
//	w, buf, _ := bstream.NewBufferWriter()
//	w.WriteInt32(42)
//	w.WriteString("cpu.usage")
//	w.WriteFloat64(0.93)
//	w.Flush()
//
// Decoding it back:
//
//	r, _ := bstream.NewBufferReader(buf)
//	v, _ := r.ReadInt32()
//	name, _ := r.ReadString()
//	load, _ := r.ReadFloat64()
//
// One-shot round trips without managing buffers:
//
//	data, _ := bstream.Marshal(func(w *stream.Writer) error {
//	    return w.WriteString("hello")
//	})
//	_ = bstream.Unmarshal(data, func(r *stream.Reader) error {
//	    s, err := r.ReadString()
//	    ...
//	})
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the stream and
// buffer packages, simplifying the most common use cases. For published
// registers, streaming sources, and fine-grained control, use those packages
// directly.
package bstream

import (
	"github.com/arloliu/bstream/buffer"
	"github.com/arloliu/bstream/internal/hash"
	"github.com/arloliu/bstream/stream"
)

// NewBufferWriter creates a Writer backed by a fresh growable in-memory
// buffer and returns both. Flush the writer before handing the buffer to a
// reader.
func NewBufferWriter(opts ...stream.WriterOption) (*stream.Writer, *buffer.Memory, error) {
	buf, err := buffer.NewMemory()
	if err != nil {
		return nil, nil, err
	}
	w, err := stream.NewWriter(buf, opts...)
	if err != nil {
		return nil, nil, err
	}

	return w, buf, nil
}

// NewBufferReader creates a Reader over an in-memory buffer's current
// contents.
func NewBufferReader(buf *buffer.Memory, opts ...stream.ReaderOption) (*stream.Reader, error) {
	return stream.NewReader(buf, opts...)
}

// Marshal runs an encoding function against a fresh in-memory stream and
// returns the written bytes.
func Marshal(encode func(w *stream.Writer) error) ([]byte, error) {
	w, buf, err := NewBufferWriter()
	if err != nil {
		return nil, err
	}
	if err := encode(w); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Unmarshal runs a decoding function against a stream over a copy of the
// given bytes.
func Unmarshal(data []byte, decode func(r *stream.Reader) error) error {
	buf, err := buffer.NewMemory(buffer.WithCapacity(max(len(data), 1)))
	if err != nil {
		return err
	}
	if err := buf.SetSize(len(data)); err != nil {
		return err
	}
	buf.Backend().PutBytes(0, data)
	r, err := NewBufferReader(buf)
	if err != nil {
		return err
	}
	if err := decode(r); err != nil {
		return err
	}

	return r.Close()
}

// IdentifierHash hashes a globally-unique name into the 64-bit identifier
// used with Identifier-encoded register references.
func IdentifierHash(name string) uint64 {
	return hash.ID(name)
}
