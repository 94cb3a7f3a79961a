package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinefabric/tensorconv-go/caps"
	"github.com/machinefabric/tensorconv-go/tensor"
)

func TestParseVideoInfoPackedFormats(t *testing.T) {
	cases := []struct {
		format   string
		channels uint32
		typ      tensor.Type
	}{
		{"GRAY8", 1, tensor.Uint8},
		{"GRAY16_LE", 1, tensor.Uint16},
		{"RGB", 3, tensor.Uint8},
		{"BGRx", 4, tensor.Uint8},
		{"ABGR", 4, tensor.Uint8},
	}
	for _, c := range cases {
		vi, err := ParseVideoInfo(caps.MustParse("video/x-raw;format=" + c.format + ";width=640;height=480;framerate=30/1"))
		require.NoError(t, err, c.format)
		assert.Equal(t, tensor.Dimension{c.channels, 640, 480, 1}, vi.Dimension(), c.format)
		assert.Equal(t, c.typ, vi.Format.Type)
		assert.Equal(t, tensor.Fraction{Num: 30, Den: 1}, vi.Rate)
		assert.False(t, vi.NeedsRowPadding())
		assert.Equal(t, vi.TensorSize(), vi.Size())
	}
}

func TestParseVideoInfoPlanar(t *testing.T) {
	vi, err := ParseVideoInfo(caps.MustParse("video/x-raw;format=RGBP;width=8;height=2"))
	require.NoError(t, err)
	assert.Equal(t, tensor.Dimension{8, 2, 3, 1}, vi.Dimension())
	assert.False(t, vi.Rate.Known())
	assert.Equal(t, 8*2*3, vi.Size())

	vi, err = ParseVideoInfo(caps.MustParse("video/x-raw;format=BGRP;width=5;height=2"))
	require.NoError(t, err)
	assert.True(t, vi.NeedsRowPadding())
}

func TestVideoRowPadding(t *testing.T) {
	vi, err := ParseVideoInfo(caps.MustParse("video/x-raw;format=GRAY8;width=5;height=3"))
	require.NoError(t, err)
	assert.True(t, vi.NeedsRowPadding())
	assert.Equal(t, 8, vi.Stride())
	assert.Equal(t, 24, vi.Size())
	assert.Equal(t, 15, vi.TensorSize())

	vi, err = ParseVideoInfo(caps.MustParse("video/x-raw;format=RGB;width=3;height=2"))
	require.NoError(t, err)
	assert.True(t, vi.NeedsRowPadding())
	assert.Equal(t, 12, vi.Stride())

	vi, err = ParseVideoInfo(caps.MustParse("video/x-raw;format=RGBA;width=3;height=2"))
	require.NoError(t, err)
	assert.False(t, vi.NeedsRowPadding())
}

func TestParseVideoInfoErrors(t *testing.T) {
	for _, s := range []string{
		"video/x-raw;format=NV12;width=4;height=4",
		"video/x-raw;format=RGB|BGR;width=4;height=4",
		"video/x-raw;format=RGB;height=4",
		"video/x-raw;format=RGB;width=0;height=4",
		"audio/x-raw;format=S16LE",
	} {
		_, err := ParseVideoInfo(caps.MustParse(s))
		assert.Error(t, err, s)
	}

	f, ok := LookupVideoFormat("I420")
	require.True(t, ok)
	assert.False(t, f.Convertible)
	assert.NotContains(t, VideoFormatNames(), "I420")
}

func TestI420Size(t *testing.T) {
	vi, err := ParseVideoInfo(caps.MustParse("video/x-raw;format=I420;width=6;height=4"))
	require.NoError(t, err)
	// Y: stride 8 * 4 rows; U and V: stride 4 * 2 rows each.
	assert.Equal(t, 8*4+2*4*2, vi.Size())
}

func TestReverseVideoTables(t *testing.T) {
	assert.Equal(t, []string{"GRAY8", "GRAY16_BE", "GRAY16_LE"}, PackedVideoFormats(1))
	assert.Equal(t, []string{"RGB", "BGR"}, PackedVideoFormats(3))
	assert.Len(t, PackedVideoFormats(4), 8)
	assert.Empty(t, PackedVideoFormats(2))
	assert.Equal(t, []string{"RGBP", "BGRP"}, PlanarVideoFormats(3))

	tmpl := VideoTemplate()
	assert.False(t, tmpl.IsFixed())
	assert.True(t, tmpl.CanIntersect(caps.MustParse("video/x-raw;format=RGB;width=4;height=4")))
}

func TestParseAudioInfo(t *testing.T) {
	ai, err := ParseAudioInfo(caps.MustParse("audio/x-raw;format=S16LE;channels=2;rate=16000;layout=interleaved"))
	require.NoError(t, err)
	assert.Equal(t, tensor.Int16, ai.Format.Type)
	assert.Equal(t, 4, ai.BytesPerFrame())
	assert.Equal(t, tensor.Dimension{2, 1}, ai.Dimension())

	ai, err = ParseAudioInfo(caps.MustParse("audio/x-raw;format=F64LE;channels=1;rate=8000"))
	require.NoError(t, err)
	assert.False(t, ai.Format.BigEndian)
	assert.Equal(t, 8, ai.BytesPerFrame())
}

func TestParseAudioInfoRejectsBigEndian(t *testing.T) {
	for _, name := range []string{"S16BE", "U16BE", "S32BE", "U32BE", "F32BE", "F64BE"} {
		f, err := LookupAudioFormat(name)
		require.NoError(t, err, name)
		assert.True(t, f.BigEndian, name)

		_, err = ParseAudioInfo(caps.MustParse("audio/x-raw;format=" + name + ";channels=1;rate=8000"))
		assert.ErrorIs(t, err, ErrBigEndianAudio, name)
		assert.NotContains(t, AudioFormatNames(), name)
	}
	assert.Contains(t, AudioFormatNames(), "S16LE")
	assert.Contains(t, AudioFormatNames(), "U8")
}

func TestParseAudioInfoErrors(t *testing.T) {
	_, err := ParseAudioInfo(caps.MustParse("audio/x-raw;format=F16LE;channels=1;rate=8000"))
	assert.ErrorIs(t, err, ErrHalfFloatAudio)

	for _, s := range []string{
		"audio/x-raw;format=S24LE;channels=1;rate=8000",
		"audio/x-raw;format=S16LE;rate=8000",
		"audio/x-raw;format=S16LE;channels=1",
		"audio/x-raw;format=S16LE;channels=1;rate=8000;layout=non-interleaved",
	} {
		_, err := ParseAudioInfo(caps.MustParse(s))
		assert.Error(t, err, s)
	}
}

func TestAudioFormatFor(t *testing.T) {
	name, err := AudioFormatFor(tensor.Float32)
	require.NoError(t, err)
	assert.Equal(t, "F32LE", name)

	name, err = AudioFormatFor(tensor.Int8)
	require.NoError(t, err)
	assert.Equal(t, "S8", name)

	_, err = AudioFormatFor(tensor.Float16)
	assert.ErrorIs(t, err, ErrHalfFloatAudio)
	_, err = AudioFormatFor(tensor.Int64)
	assert.Error(t, err)
}
