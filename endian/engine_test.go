package endian

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckEndianness(t *testing.T) {
	order := CheckEndianness()
	require.NotNil(t, order)
	require.True(t, order == binary.LittleEndian || order == binary.BigEndian)
}

func TestNativeEngineMatchesProbe(t *testing.T) {
	engine := GetNativeEngine()
	require.True(t, CompareNativeEndian(engine))
	require.Equal(t, IsNativeLittleEndian(), engine == binary.LittleEndian)
	require.Equal(t, IsNativeBigEndian(), engine == binary.BigEndian)
}

func TestEngineRoundTrip(t *testing.T) {
	engines := []EndianEngine{
		GetNativeEngine(),
		GetLittleEndianEngine(),
		GetBigEndianEngine(),
	}

	for _, engine := range engines {
		buf := make([]byte, 8)
		engine.PutUint64(buf, 0x1122334455667788)
		require.Equal(t, uint64(0x1122334455667788), engine.Uint64(buf))

		engine.PutUint32(buf, 0xdeadbeef)
		require.Equal(t, uint32(0xdeadbeef), engine.Uint32(buf))

		engine.PutUint16(buf, 0xbeef)
		require.Equal(t, uint16(0xbeef), engine.Uint16(buf))

		appended := engine.AppendUint32(nil, 0x12345678)
		require.Equal(t, uint32(0x12345678), engine.Uint32(appended))
	}
}
