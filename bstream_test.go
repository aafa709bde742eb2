package bstream

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/bstream/stream"
)

func TestBufferWriterReaderRoundTrip(t *testing.T) {
	w, buf, err := NewBufferWriter()
	require.NoError(t, err)
	require.NoError(t, w.WriteInt32(42))
	require.NoError(t, w.WriteString("cpu.usage"))
	require.NoError(t, w.WriteFloat64(0.93))
	require.NoError(t, w.Flush())

	r, err := NewBufferReader(buf)
	require.NoError(t, err)

	v, err := r.ReadInt32()
	require.NoError(t, err)
	require.Equal(t, int32(42), v)

	name, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "cpu.usage", name)

	load, err := r.ReadFloat64()
	require.NoError(t, err)
	require.Equal(t, 0.93, load)
	require.NoError(t, r.Close())
}

func TestMarshalUnmarshal(t *testing.T) {
	data, err := Marshal(func(w *stream.Writer) error {
		if err := w.WriteUint16(0xABCD); err != nil {
			return err
		}

		return w.WriteString("hello")
	})
	require.NoError(t, err)
	require.Len(t, data, 2+len("hello")+1)

	err = Unmarshal(data, func(r *stream.Reader) error {
		v, err := r.ReadUint16()
		require.NoError(t, err)
		require.Equal(t, uint16(0xABCD), v)

		s, err := r.ReadString()
		require.NoError(t, err)
		require.Equal(t, "hello", s)

		return nil
	})
	require.NoError(t, err)
}

func TestUnmarshalEmpty(t *testing.T) {
	err := Unmarshal(nil, func(r *stream.Reader) error {
		require.False(t, r.MoreDataAvailable())

		return nil
	})
	require.NoError(t, err)
}

func TestIdentifierHashIsStable(t *testing.T) {
	h := IdentifierHash("rrlib.time.duration")
	require.Equal(t, h, IdentifierHash("rrlib.time.duration"))
	require.NotEqual(t, h, IdentifierHash("rrlib.time.timestamp"))
	require.NotZero(t, h)
}
