package caps

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinefabric/tensorconv-go/tensor"
)

func TestParseCanonicalForm(t *testing.T) {
	c, err := Parse("video/x-raw;width=640;format=RGB;height=480;framerate=30/1;")
	require.NoError(t, err)
	assert.Equal(t, MediaVideo, c.MediaType())
	assert.Equal(t, "video/x-raw;format=RGB;framerate=30/1;height=480;width=640", c.String())
	assert.True(t, c.IsFixed())

	w, ok := c.Int("width")
	assert.True(t, ok)
	assert.Equal(t, 640, w)

	rate, ok := c.Fraction("framerate")
	assert.True(t, ok)
	assert.Equal(t, tensor.Fraction{Num: 30, Den: 1}, rate)

	_, ok = c.Int("format")
	assert.False(t, ok)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]int{
		"":                       ErrorInvalidFormat,
		"video":                  ErrorInvalidMediaType,
		"video/x-raw;width":      ErrorInvalidField,
		"video/x-raw;width=":     ErrorEmptyField,
		"video/x-raw;wi dth=640": ErrorInvalidCharacter,
		"video/x-raw;width=6 40": ErrorInvalidCharacter,
	}
	for in, code := range cases {
		_, err := Parse(in)
		require.Error(t, err, in)
		var capsErr *Error
		require.ErrorAs(t, err, &capsErr)
		assert.Equal(t, code, capsErr.Code, in)
	}
}

func TestWildcardAndListAreNotFixed(t *testing.T) {
	c := MustParse("audio/x-raw;format=S16LE|F32LE;rate=*;channels=2")
	assert.False(t, c.IsFixed())
	_, ok := c.FixedField("format")
	assert.False(t, ok)
	_, ok = c.Int("rate")
	assert.False(t, ok)
	ch, ok := c.Int("channels")
	assert.True(t, ok)
	assert.Equal(t, 2, ch)
	assert.Equal(t, 1, c.Specificity())

	fixed := c.Fixate()
	assert.True(t, fixed.IsFixed())
	assert.Equal(t, "audio/x-raw;channels=2;format=S16LE", fixed.String())
}

func TestWithWithout(t *testing.T) {
	c := MustParse("video/x-raw;format=RGB")
	d := c.With("width", "10")
	assert.False(t, c.Equal(d), "With must not mutate the receiver")
	assert.True(t, d.HasField("width", "10"))
	assert.True(t, d.Without("width").Equal(c))
	assert.Equal(t, "video/x-raw;format=GRAY8|RGB", c.WithList("format", []string{"GRAY8", "RGB"}).String())
}

func TestIntersect(t *testing.T) {
	a := MustParse("video/x-raw;format=RGB|BGR|GRAY8;width=*")
	b := MustParse("video/x-raw;format=GRAY8|RGB;width=320;height=240")

	c, ok := a.Intersect(b)
	require.True(t, ok)
	assert.Equal(t, "video/x-raw;format=RGB|GRAY8;height=240;width=320", c.String())

	_, ok = a.Intersect(MustParse("video/x-raw;format=I420"))
	assert.False(t, ok)
	assert.False(t, a.CanIntersect(MustParse("audio/x-raw")))
	assert.True(t, a.CanIntersect(nil))
}

func TestSetIntersect(t *testing.T) {
	tmpl := MustParseSet(
		"video/x-raw;format=RGB|GRAY8",
		"audio/x-raw;format=S16LE",
		"text/x-raw;format=utf8",
	)
	filter := MustParseSet("audio/x-raw;rate=44100", "video/x-raw;format=GRAY8")

	got := tmpl.Intersect(filter)
	require.Len(t, got, 2)
	assert.Equal(t, "video/x-raw;format=GRAY8", got[0].String())
	assert.Equal(t, "audio/x-raw;format=S16LE;rate=44100", got[1].String())
	assert.True(t, tmpl.CanIntersect(filter))

	assert.Equal(t, tmpl, tmpl.Intersect(nil))
	assert.True(t, tmpl.Intersect(MustParseSet("other/tensors")).IsEmpty())
	assert.Equal(t, []string{MediaVideo, MediaAudio, MediaText}, tmpl.Names())
}

func TestJSON(t *testing.T) {
	c := MustParse("text/x-raw;format=utf8")
	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, `"text/x-raw;format=utf8"`, string(data))

	var back Caps
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equal(c))
}

func TestBuilder(t *testing.T) {
	c, err := NewBuilder(MediaAudio).
		Field("format", "S16LE").
		Int("channels", 2).
		Int("rate", 16000).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "audio/x-raw;channels=2;format=S16LE;rate=16000", c.String())

	_, err = NewBuilder("bad").Build()
	assert.Error(t, err)
}

func TestMediaTypeOf(t *testing.T) {
	assert.Equal(t, tensor.MediaVideo, MediaTypeOf(MustParse("video/x-raw")))
	assert.Equal(t, tensor.MediaAudio, MediaTypeOf(MustParse("audio/x-raw")))
	assert.Equal(t, tensor.MediaText, MediaTypeOf(MustParse("text/x-raw")))
	assert.Equal(t, tensor.MediaOctet, MediaTypeOf(MustParse("application/octet-stream")))
	assert.Equal(t, tensor.MediaTensor, MediaTypeOf(MustParse("other/tensors;format=flexible")))
	assert.Equal(t, tensor.MediaAny, MediaTypeOf(MustParse("application/x-protobuf")))
	assert.Equal(t, tensor.MediaInvalid, MediaTypeOf(nil))
}

func TestTensorCapsRoundTrip(t *testing.T) {
	cfg := tensor.Config{
		Format: tensor.Static,
		Tensors: []tensor.Info{
			tensor.NewInfo(tensor.Uint8, 3, 640, 480, 1),
			tensor.NewInfo(tensor.Float32, 10),
		},
		Rate: tensor.Fraction{Num: 30, Den: 1},
	}
	c := FromConfig(cfg)
	assert.Equal(t,
		"other/tensors;dimensions=3:640:480:1,10;format=static;framerate=30/1;num_tensors=2;types=uint8,float32",
		c.String())
	assert.True(t, c.IsFixed())

	back, err := ToConfig(c)
	require.NoError(t, err)
	require.NoError(t, back.Validate())
	assert.True(t, cfg.Equal(back))
}

func TestFlexibleTensorCaps(t *testing.T) {
	c := FromConfig(tensor.FlexibleConfig(tensor.UnknownRate))
	assert.Equal(t, "other/tensors;format=flexible;framerate=0/1", c.String())
	assert.True(t, IsFlexible(c))

	cfg, err := ToConfig(FlexibleTemplate())
	require.NoError(t, err)
	assert.True(t, cfg.IsFlexible())
	assert.NoError(t, cfg.Validate())

	assert.True(t, AcceptsOnlyFlexible(Set{c, FlexibleTemplate()}))
	assert.False(t, AcceptsOnlyFlexible(Set{c, MustParse("other/tensors;format=static")}))
	assert.False(t, AcceptsOnlyFlexible(nil))
}

func TestPartialTensorCaps(t *testing.T) {
	cfg, err := ToConfig(MustParse("other/tensors;format=static;num_tensors=2;types=uint8"))
	require.NoError(t, err)
	require.Len(t, cfg.Tensors, 2)
	assert.Error(t, cfg.Validate())
	assert.False(t, cfg.Rate.Known())

	cfg, err = ToConfig(MustParse("other/tensors;format=*"))
	require.NoError(t, err)
	assert.Equal(t, tensor.Static, cfg.Format)
	assert.Empty(t, cfg.Tensors)

	_, err = ToConfig(MustParse("video/x-raw"))
	assert.Error(t, err)
	_, err = ToConfig(MustParse("other/tensors;types=bogus"))
	assert.Error(t, err)
}
