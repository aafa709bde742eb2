package stream

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/bstream/compress"
)

func TestCompressedBlockRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("register entry payload "), 64)

	for _, typ := range []compress.Type{compress.TypeNone, compress.TypeLZ4, compress.TypeS2, compress.TypeZstd} {
		t.Run(string(typ), func(t *testing.T) {
			w, buf := newMemoryWriter(t)
			require.NoError(t, w.WriteCompressedBlock(typ, payload))
			require.NoError(t, w.WriteUint8(0x17)) // data after the block stays aligned
			require.NoError(t, w.Flush())

			if typ != compress.TypeNone {
				require.Less(t, buf.Size(), len(payload))
			}

			r := newMemoryReader(t, buf)
			restored, err := r.ReadCompressedBlock()
			require.NoError(t, err)
			require.Equal(t, payload, restored)

			u8, err := r.ReadUint8()
			require.NoError(t, err)
			require.Equal(t, uint8(0x17), u8)
		})
	}
}

func TestCompressedBlockEmptyPayload(t *testing.T) {
	w, buf := newMemoryWriter(t)
	require.NoError(t, w.WriteCompressedBlock(compress.TypeNone, nil))
	require.NoError(t, w.Flush())

	r := newMemoryReader(t, buf)
	restored, err := r.ReadCompressedBlock()
	require.NoError(t, err)
	require.Empty(t, restored)
}

func TestCompressedBlockUnknownCodec(t *testing.T) {
	w, buf := newMemoryWriter(t)
	require.Error(t, w.WriteCompressedBlock(compress.Type("gzip"), []byte("x")))

	// a stream carrying an unknown codec name fails before payload bytes
	require.NoError(t, w.WriteString("gzip"))
	require.NoError(t, w.Flush())
	r := newMemoryReader(t, buf)
	_, err := r.ReadCompressedBlock()
	require.Error(t, err)
}
