package compress

// ZstdCompressor provides Zstandard compression. Zstd favors ratio over
// speed, which suits persisted streams and bandwidth-limited links.
//
// The implementation is selected at build time: cgo builds use the valyala
// gozstd bindings, pure-Go builds fall back to klauspost/compress/zstd. Both
// produce and consume the standard zstd frame format.
type ZstdCompressor struct{}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd compressor with default settings.
func NewZstdCompressor() ZstdCompressor {
	return ZstdCompressor{}
}
