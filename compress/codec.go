// Package compress provides the block compression codecs consumed by the
// stream engines' compressed-block encoding.
//
// The stream core does not define a compression framework; it consumes
// compressors through the narrow Codec interface only. A compressed block on
// the wire carries the codec's format name, so both peers must register the
// same codec names.
package compress

import "fmt"

// Type identifies a built-in compression codec by its wire format name.
type Type string

const (
	// TypeNone passes data through uncompressed.
	TypeNone Type = ""

	// TypeLZ4 selects LZ4 block compression.
	TypeLZ4 Type = "lz4"

	// TypeS2 selects S2 (Snappy-compatible) compression.
	TypeS2 Type = "s2"

	// TypeZstd selects Zstandard compression.
	TypeZstd Type = "zstd"
)

// Compressor compresses byte payloads.
type Compressor interface {
	// Compress compresses the input data and returns the compressed result.
	// The returned slice is owned by the caller; the input is not modified.
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor of the same format.
type Decompressor interface {
	// Decompress decompresses the input data and returns the original bytes.
	// Returns an error if the data is corrupt or was compressed with an
	// incompatible format.
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both compression and decompression capabilities.
type Codec interface {
	Compressor
	Decompressor
}

// CreateCodec is a factory function that creates a Codec for the given type.
func CreateCodec(compressionType Type) (Codec, error) {
	switch compressionType {
	case TypeNone:
		return NewNoOpCompressor(), nil
	case TypeLZ4:
		return NewLZ4Compressor(), nil
	case TypeS2:
		return NewS2Compressor(), nil
	case TypeZstd:
		return NewZstdCompressor(), nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %q", compressionType)
	}
}

var builtinCodecs = map[Type]Codec{
	TypeNone: NewNoOpCompressor(),
	TypeLZ4:  NewLZ4Compressor(),
	TypeS2:   NewS2Compressor(),
	TypeZstd: NewZstdCompressor(),
}

// GetCodec retrieves a shared built-in Codec for the specified type.
func GetCodec(compressionType Type) (Codec, error) {
	if codec, ok := builtinCodecs[compressionType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported compression type: %q", compressionType)
}
