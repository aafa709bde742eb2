package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testPayload() []byte {
	var buf bytes.Buffer
	for i := 0; i < 512; i++ {
		buf.WriteString("published register entry payload ")
	}

	return buf.Bytes()
}

func TestCodecRoundTrip(t *testing.T) {
	payload := testPayload()

	for _, typ := range []Type{TypeNone, TypeLZ4, TypeS2, TypeZstd} {
		t.Run(string(typ), func(t *testing.T) {
			codec, err := GetCodec(typ)
			require.NoError(t, err)

			compressed, err := codec.Compress(payload)
			require.NoError(t, err)

			restored, err := codec.Decompress(compressed)
			require.NoError(t, err)
			require.Equal(t, payload, restored)

			if typ != TypeNone {
				require.Less(t, len(compressed), len(payload))
			}
		})
	}
}

func TestCodecEmptyInput(t *testing.T) {
	for _, typ := range []Type{TypeNone, TypeLZ4, TypeS2, TypeZstd} {
		t.Run(string(typ), func(t *testing.T) {
			codec, err := CreateCodec(typ)
			require.NoError(t, err)

			compressed, err := codec.Compress(nil)
			require.NoError(t, err)

			restored, err := codec.Decompress(compressed)
			require.NoError(t, err)
			require.Empty(t, restored)
		})
	}
}

func TestUnknownCodec(t *testing.T) {
	_, err := GetCodec(Type("gzip"))
	require.Error(t, err)

	_, err = CreateCodec(Type("gzip"))
	require.Error(t, err)
}
