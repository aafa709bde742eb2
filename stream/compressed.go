package stream

import (
	"fmt"

	"github.com/arloliu/bstream/compress"
	"github.com/arloliu/bstream/errs"
)

// WriteCompressedBlock writes a self-describing compressed payload: the codec
// name as a null-terminated string, the compressed size as an int32, and the
// compressed bytes. compress.TypeNone produces an empty codec name and stores
// the payload verbatim, so cheap-to-copy data needs no special casing at the
// call site.
func (w *Writer) WriteCompressedBlock(typ compress.Type, payload []byte) error {
	codec, err := compress.GetCodec(typ)
	if err != nil {
		return err
	}
	compressed, err := codec.Compress(payload)
	if err != nil {
		return fmt.Errorf("compress %q block: %w", typ, err)
	}
	if err := w.WriteString(string(typ)); err != nil {
		return err
	}
	if err := w.WriteInt32(int32(len(compressed))); err != nil {
		return err
	}

	return w.WriteBytes(compressed)
}

// ReadCompressedBlock reads a block written by WriteCompressedBlock and
// returns the decompressed payload. Unknown codec names are an error before
// any payload bytes are consumed.
func (r *Reader) ReadCompressedBlock() ([]byte, error) {
	format, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	codec, err := compress.GetCodec(compress.Type(format))
	if err != nil {
		return nil, err
	}
	size, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: negative compressed block size %d", errs.ErrProtocol, size)
	}
	raw := make([]byte, size)
	if size > 0 {
		if err := r.ReadBytes(raw); err != nil {
			return nil, err
		}
	}

	return codec.Decompress(raw)
}
