package stream

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/bstream/buffer"
)

func TestSettingsDefaults(t *testing.T) {
	s := DefaultSettings()
	require.Equal(t, int32(DefaultRevision), s.Revision())
	require.Zero(t, s.CustomInfo())
	require.False(t, s.HasPublishedRegisters())

	for uid := -1; uid < MaxPublishedRegisters; uid++ {
		require.Equal(t, Identifier, s.EncodingFor(uid), "uid %d", uid)
	}
}

func TestSettingsEncodingTable(t *testing.T) {
	encodings := EncodingsWithDefault(LocalHandle)
	encodings = SetRegisterEncoding(encodings, 0, Identifier)
	encodings = SetRegisterEncoding(encodings, 7, PublishOnDemand)
	encodings = SetRegisterEncoding(encodings, 14, PublishOnChange)
	s := NewSettings(DefaultRevision, encodings, 42)

	require.Equal(t, Identifier, s.EncodingFor(0))
	require.Equal(t, PublishOnDemand, s.EncodingFor(7))
	require.Equal(t, PublishOnChange, s.EncodingFor(14))
	require.Equal(t, LocalHandle, s.EncodingFor(3))
	require.Equal(t, LocalHandle, s.EncodingFor(-1))
	require.Equal(t, int32(42), s.CustomInfo())
	require.True(t, s.HasPublishedRegisters())
}

func TestSettingsHasPublishedRegisters(t *testing.T) {
	require.False(t, NewSettingsWithDefault(DefaultRevision, LocalHandle, 0).HasPublishedRegisters())
	require.False(t, NewSettingsWithDefault(DefaultRevision, Identifier, 0).HasPublishedRegisters())
	require.True(t, NewSettingsWithDefault(DefaultRevision, PublishOnDemand, 0).HasPublishedRegisters())
	require.True(t, NewSettingsWithDefault(DefaultRevision, PublishOnChange, 0).HasPublishedRegisters())

	one := SetRegisterEncoding(EncodingsWithDefault(Identifier), 9, PublishOnChange)
	require.True(t, NewSettings(DefaultRevision, one, 0).HasPublishedRegisters())
}

func TestRegisterEncodingString(t *testing.T) {
	require.Equal(t, "local-handle", LocalHandle.String())
	require.Equal(t, "identifier", Identifier.String())
	require.Equal(t, "publish-on-demand", PublishOnDemand.String())
	require.Equal(t, "publish-on-change", PublishOnChange.String())
	require.Contains(t, RegisterEncoding(9).String(), "unknown")
}

func TestSettingsWireRoundTrip(t *testing.T) {
	buf, err := buffer.NewMemory(buffer.WithCapacity(64))
	require.NoError(t, err)
	w, err := NewWriter(buf)
	require.NoError(t, err)

	s := NewSettings(3, SetRegisterEncoding(EncodingsWithDefault(Identifier), 2, PublishOnChange), -7)
	require.NoError(t, s.Serialize(w))
	require.NoError(t, w.Flush())
	require.Equal(t, 12, buf.Size())

	r, err := NewReader(buf)
	require.NoError(t, err)
	got, err := DeserializeSettings(r)
	require.NoError(t, err)
	require.Equal(t, s, got)
}
