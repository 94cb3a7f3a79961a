package media

import (
	"errors"
	"fmt"

	"github.com/machinefabric/tensorconv-go/caps"
	"github.com/machinefabric/tensorconv-go/tensor"
)

// ErrHalfFloatAudio is returned for F16 sample formats, which raw audio
// streams cannot carry.
var ErrHalfFloatAudio = errors.New("half float audio is not supported, use F32 or F64 and convert later")

// ErrBigEndianAudio is returned for big-endian sample formats. Tensor
// elements are little-endian and samples are never byte swapped.
var ErrBigEndianAudio = errors.New("big-endian audio is not supported, convert to the LE format first")

// AudioFormat describes one interleaved raw audio sample format.
type AudioFormat struct {
	Name      string
	Type      tensor.Type
	BigEndian bool
}

var audioFormats = []AudioFormat{
	{Name: "S8", Type: tensor.Int8},
	{Name: "U8", Type: tensor.Uint8},
	{Name: "S16LE", Type: tensor.Int16},
	{Name: "S16BE", Type: tensor.Int16, BigEndian: true},
	{Name: "U16LE", Type: tensor.Uint16},
	{Name: "U16BE", Type: tensor.Uint16, BigEndian: true},
	{Name: "S32LE", Type: tensor.Int32},
	{Name: "S32BE", Type: tensor.Int32, BigEndian: true},
	{Name: "U32LE", Type: tensor.Uint32},
	{Name: "U32BE", Type: tensor.Uint32, BigEndian: true},
	{Name: "F32LE", Type: tensor.Float32},
	{Name: "F32BE", Type: tensor.Float32, BigEndian: true},
	{Name: "F64LE", Type: tensor.Float64},
	{Name: "F64BE", Type: tensor.Float64, BigEndian: true},
}

// LookupAudioFormat returns the table entry for a format name.
func LookupAudioFormat(name string) (AudioFormat, error) {
	switch name {
	case "F16LE", "F16BE":
		return AudioFormat{}, ErrHalfFloatAudio
	}
	for _, f := range audioFormats {
		if f.Name == name {
			return f, nil
		}
	}
	return AudioFormat{}, fmt.Errorf("unknown audio format %q", name)
}

// AudioFormatNames lists the convertible formats in table order.
func AudioFormatNames() []string {
	var names []string
	for _, f := range audioFormats {
		if !f.BigEndian {
			names = append(names, f.Name)
		}
	}
	return names
}

// AudioFormatFor returns the little-endian format carrying samples of type t.
func AudioFormatFor(t tensor.Type) (string, error) {
	if t == tensor.Float16 {
		return "", ErrHalfFloatAudio
	}
	for _, f := range audioFormats {
		if f.Type == t && !f.BigEndian {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("no audio format for tensor type %s", t)
}

// AudioTemplate returns caps accepting every supported interleaved format.
func AudioTemplate() *caps.Caps {
	return caps.New(caps.MediaAudio, map[string]string{
		"channels": caps.Wildcard,
		"rate":     caps.Wildcard,
		"layout":   "interleaved",
	}).WithList("format", AudioFormatNames())
}

// AudioInfo is the fixed audio layout parsed from caps.
type AudioInfo struct {
	Format   AudioFormat
	Channels int
	Rate     int
}

// ParseAudioInfo reads format, channels and rate from fixed audio caps.
func ParseAudioInfo(c *caps.Caps) (AudioInfo, error) {
	var ai AudioInfo
	if c == nil || c.MediaType() != caps.MediaAudio {
		return ai, fmt.Errorf("not audio caps: %s", c)
	}
	if layout, ok := c.Field("layout"); ok && layout != "interleaved" {
		return ai, fmt.Errorf("unsupported audio layout %q", layout)
	}
	name, ok := c.FixedField("format")
	if !ok {
		return ai, fmt.Errorf("audio caps without fixed format: %s", c)
	}
	f, err := LookupAudioFormat(name)
	if err != nil {
		return ai, err
	}
	if f.BigEndian {
		return ai, fmt.Errorf("audio format %s: %w", f.Name, ErrBigEndianAudio)
	}
	ai.Format = f
	if ai.Channels, ok = c.Int("channels"); !ok || ai.Channels <= 0 {
		return ai, fmt.Errorf("audio caps without valid channels: %s", c)
	}
	if ai.Rate, ok = c.Int("rate"); !ok || ai.Rate <= 0 {
		return ai, fmt.Errorf("audio caps without valid rate: %s", c)
	}
	return ai, nil
}

// BytesPerFrame is the size of one sample for every channel.
func (ai AudioInfo) BytesPerFrame() int {
	return ai.Channels * ai.Format.Type.Size()
}

// Dimension returns [channels, 1]; the frame slot is filled in later.
func (ai AudioInfo) Dimension() tensor.Dimension {
	var d tensor.Dimension
	d[0], d[1] = uint32(ai.Channels), 1
	return d
}

// TextTemplate accepts utf8 text.
func TextTemplate() *caps.Caps {
	return caps.MustParse(caps.MediaText + ";format=utf8")
}

// OctetTemplate accepts any byte stream.
func OctetTemplate() *caps.Caps {
	return caps.MustParse(caps.MediaOctet)
}
