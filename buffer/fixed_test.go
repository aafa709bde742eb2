package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/bstream/endian"
)

func TestFixedPrimitiveAccess(t *testing.T) {
	buf := NewFixed(64, endian.GetNativeEngine())

	buf.PutUint8(0, 0xAB)
	require.Equal(t, uint8(0xAB), buf.GetUint8(0))

	buf.PutInt8(1, -5)
	require.Equal(t, int8(-5), buf.GetInt8(1))

	buf.PutBool(2, true)
	require.True(t, buf.GetBool(2))
	buf.PutBool(2, false)
	require.False(t, buf.GetBool(2))

	buf.PutUint16(4, 0xBEEF)
	require.Equal(t, uint16(0xBEEF), buf.GetUint16(4))

	buf.PutInt16(6, -12345)
	require.Equal(t, int16(-12345), buf.GetInt16(6))

	buf.PutUint32(8, 0xDEADBEEF)
	require.Equal(t, uint32(0xDEADBEEF), buf.GetUint32(8))

	buf.PutInt32(12, -123456789)
	require.Equal(t, int32(-123456789), buf.GetInt32(12))

	buf.PutUint64(16, 0xCAFEBABEDEADBEEF)
	require.Equal(t, uint64(0xCAFEBABEDEADBEEF), buf.GetUint64(16))

	buf.PutInt64(24, -1234567890123456789)
	require.Equal(t, int64(-1234567890123456789), buf.GetInt64(24))

	buf.PutFloat32(32, 3.25)
	require.Equal(t, float32(3.25), buf.GetFloat32(32))

	buf.PutFloat64(40, -2.5e17)
	require.Equal(t, float64(-2.5e17), buf.GetFloat64(40))
}

func TestFixedBytesAndCopy(t *testing.T) {
	src := NewFixed(16, endian.GetNativeEngine())
	src.PutBytes(0, []byte("hello world"))

	dst := NewFixed(16, endian.GetNativeEngine())
	dst.Copy(4, src, 6, 5)

	out := make([]byte, 5)
	dst.GetBytes(4, out)
	require.Equal(t, []byte("world"), out)
}

func TestWrapFixedSharesStorage(t *testing.T) {
	raw := make([]byte, 8)
	buf := WrapFixed(raw, endian.GetNativeEngine())
	require.Equal(t, 8, buf.Capacity())

	buf.PutUint8(3, 0x7F)
	require.Equal(t, byte(0x7F), raw[3])
}

func TestViewInvariants(t *testing.T) {
	buf := NewFixed(32, endian.GetNativeEngine())
	v := View{Buf: buf}
	v.SetRange(4, 20)
	v.Pos = 10

	require.Equal(t, 10, v.Remaining())
	require.Equal(t, 6, v.WriteLen())
	require.Equal(t, 16, v.Capacity())

	var other View
	other.Assign(&v)
	require.Equal(t, v, other)

	v.Reset()
	require.Nil(t, v.Buf)
	require.Zero(t, v.Capacity())
}
