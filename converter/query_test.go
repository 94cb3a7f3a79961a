package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinefabric/tensorconv-go/caps"
)

func field(t *testing.T, c *caps.Caps, key string) string {
	t.Helper()
	v, ok := c.Field(key)
	require.True(t, ok, "%s has no %s", c, key)
	return v
}

func TestQueryCapsTemplates(t *testing.T) {
	c := newConverter(t, &fakePeer{})
	sink := c.QueryCaps(PadSink, nil)
	assert.Equal(t, []string{caps.MediaVideo, caps.MediaAudio, caps.MediaText, caps.MediaOctet, caps.MediaTensors},
		sink.Names())

	src := c.QueryCaps(PadSrc, nil)
	require.Len(t, src, 1)
	assert.Equal(t, "static|flexible", field(t, src[0], caps.FieldFormat))
}

func TestQueryCapsFromDownstreamVideo(t *testing.T) {
	peer := &fakePeer{accept: caps.MustParseSet(
		"other/tensors;format=static;num_tensors=1;dimensions=3:640:480:1;types=uint8;framerate=30/1")}
	c := newConverter(t, peer)

	set := c.QueryCaps(PadSink, nil)
	require.NotEmpty(t, set)
	video := set[0]
	assert.Equal(t, caps.MediaVideo, video.MediaType())
	assert.Equal(t, "RGB|BGR", field(t, video, "format"))
	assert.Equal(t, "640", field(t, video, "width"))
	assert.Equal(t, "480", field(t, video, "height"))
	assert.Equal(t, "30/1", field(t, video, "framerate"))

	var audio *caps.Caps
	for _, e := range set {
		if e.MediaType() == caps.MediaAudio {
			audio = e
		}
	}
	require.NotNil(t, audio)
	assert.Equal(t, "U8", field(t, audio, "format"))
	assert.Equal(t, "3", field(t, audio, "channels"))
	assert.Equal(t, "30", field(t, audio, "rate"))
}

func TestQueryCapsAddsPlanarVariant(t *testing.T) {
	peer := &fakePeer{accept: caps.MustParseSet(
		"other/tensors;format=static;num_tensors=1;dimensions=224:224:3:1;types=uint8;framerate=0/1")}
	c := newConverter(t, peer)

	set := c.QueryCaps(PadSink, nil)
	require.GreaterOrEqual(t, len(set), 2)
	planar := set[1]
	assert.Equal(t, caps.MediaVideo, planar.MediaType())
	assert.Equal(t, "RGBP|BGRP", field(t, planar, "format"))
	assert.Equal(t, "224", field(t, planar, "width"))
	assert.Equal(t, "224", field(t, planar, "height"))
}

func TestQueryCapsFilter(t *testing.T) {
	c := newConverter(t, &fakePeer{})
	filter := caps.MustParseSet("audio/x-raw;format=S16LE|F32LE;channels=2")
	set := c.QueryCaps(PadSink, filter)
	require.Len(t, set, 1)
	assert.Equal(t, "S16LE|F32LE", field(t, set[0], "format"))

	assert.Empty(t, c.QueryCaps(PadSink, caps.MustParseSet("image/png")))
}

func TestQueryCapsAfterNegotiation(t *testing.T) {
	c := newConverter(t, &fakePeer{})
	in := caps.MustParse("video/x-raw;format=RGB;width=4;height=2;framerate=30/1")
	require.NoError(t, c.SetCaps(in))

	sink := c.QueryCaps(PadSink, nil)
	require.Len(t, sink, 1)
	assert.True(t, in.Equal(sink[0]))

	src := c.QueryCaps(PadSrc, nil)
	require.Len(t, src, 1)
	assert.Equal(t, "3:4:2:1", field(t, src[0], caps.FieldDimensions))
}

func TestAcceptCaps(t *testing.T) {
	c := newConverter(t, &fakePeer{})
	assert.True(t, c.AcceptCaps(PadSink, caps.MustParse("video/x-raw;format=RGB;width=4;height=2;framerate=30/1")))
	assert.True(t, c.AcceptCaps(PadSink, caps.MustParse("other/tensors;format=flexible;framerate=0/1")))
	assert.False(t, c.AcceptCaps(PadSink, caps.MustParse("video/x-raw;format=RGB|BGR;width=4;height=2")))
	assert.False(t, c.AcceptCaps(PadSink, caps.MustParse("video/x-raw;format=NV12;width=4;height=2")))
	assert.False(t, c.AcceptCaps(PadSink, caps.MustParse("image/png")))
	assert.True(t, c.AcceptCaps(PadSink, caps.MustParse("audio/x-raw;format=S16LE;channels=1;rate=100;layout=interleaved")))
	assert.False(t, c.AcceptCaps(PadSink, caps.MustParse("audio/x-raw;format=S16BE;channels=1;rate=100;layout=interleaved")))
	assert.False(t, c.AcceptCaps(PadSink, nil))

	assert.True(t, c.AcceptCaps(PadSrc, caps.MustParse("other/tensors;format=static;framerate=30/1")))
	assert.False(t, c.AcceptCaps(PadSrc, caps.MustParse("video/x-raw;format=RGB")))
}
