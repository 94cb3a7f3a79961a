package converter

import (
	"strconv"

	"github.com/machinefabric/tensorconv-go/caps"
	"github.com/machinefabric/tensorconv-go/media"
	"github.com/machinefabric/tensorconv-go/tensor"
)

// Pad selects the input or the output side of the converter.
type Pad int

const (
	PadSink Pad = iota
	PadSrc
)

func (p Pad) String() string {
	if p == PadSink {
		return "sink"
	}
	return "src"
}

// SinkTemplate returns every input the converter can take: the built-in
// media kinds, flexible tensors and the caps of each registered external
// converter.
func (c *Converter) SinkTemplate() caps.Set {
	set := caps.Set{
		media.VideoTemplate(),
		media.AudioTemplate(),
		media.TextTemplate(),
		media.OctetTemplate(),
		caps.FlexibleTemplate(),
	}
	for _, name := range c.registry.Names() {
		conv, err := c.registry.Find(name)
		if err != nil {
			// unregistered in between
			continue
		}
		set = set.Append(conv.QueryCaps()...)
	}
	return set
}

// SrcTemplate returns the output caps: static or flexible tensors.
func SrcTemplate() caps.Set {
	return caps.Set{caps.New(caps.MediaTensors, map[string]string{
		caps.FieldFormat:    tensor.Static.String() + "|" + tensor.Flexible.String(),
		caps.FieldFramerate: caps.Wildcard,
	})}
}

func (c *Converter) template(pad Pad) caps.Set {
	if pad == PadSink {
		return c.SinkTemplate()
	}
	return SrcTemplate()
}

// QueryCaps answers a caps query on pad. The current caps are returned once
// negotiated, the template otherwise. On the sink side, media caps derived
// from the tensors downstream accepts narrow the result and take precedence.
// A nil filter leaves the result unrestricted.
func (c *Converter) QueryCaps(pad Pad, filter caps.Set) caps.Set {
	var current caps.Set
	if pad == PadSink {
		if cc := c.SinkCaps(); cc != nil {
			current = caps.Set{cc}
		}
	} else if cc := c.SrcCaps(); cc != nil {
		current = caps.Set{cc}
	}
	if current == nil {
		current = c.template(pad)
	}

	if pad == PadSink {
		if mediaCaps := c.possibleMediaCaps(); mediaCaps != nil {
			current = mediaCaps.Intersect(current)
		}
	}

	result := current
	if filter != nil {
		result = filter.Intersect(current)
	}
	if !c.Properties().Silent {
		c.logger.Debug("caps query", "pad", pad, "filter", filter, "result", result)
	}
	return result
}

// possibleMediaCaps rewrites the sink template with the shape downstream
// expects, so upstream can produce matching video or audio. It returns nil
// when downstream does not describe tensors.
func (c *Converter) possibleMediaCaps() caps.Set {
	cfg, ok, _ := c.peerConfig()
	if !ok {
		return nil
	}
	info := tensor.Info{Type: tensor.End}
	if len(cfg.Tensors) > 0 {
		info = cfg.Tensors[0]
	}
	dim := info.Dimension

	var out caps.Set
	for _, tmpl := range c.SinkTemplate() {
		switch caps.MediaTypeOf(tmpl) {
		case tensor.MediaVideo:
			out = append(out, videoCapsFor(tmpl, dim, cfg.Rate)...)
		case tensor.MediaAudio:
			out = append(out, audioCapsFor(tmpl, info, cfg.Rate))
		default:
			out = append(out, tmpl)
		}
	}
	return out
}

// videoCapsFor narrows the video template to [channels, width, height]
// and, for three channels in the third slot, adds the planar variant
// reading [width, height, channels].
func videoCapsFor(tmpl *caps.Caps, dim tensor.Dimension, rate tensor.Fraction) caps.Set {
	packed := tmpl
	if formats := media.PackedVideoFormats(int(dim[0])); len(formats) > 0 {
		packed = packed.WithList("format", formats)
	}
	packed = withPositive(packed, "width", dim[1])
	packed = withPositive(packed, "height", dim[2])
	if rate.Den > 0 && rate.Num >= 0 {
		packed = packed.With(caps.FieldFramerate, rate.String())
	}
	out := caps.Set{packed}

	if dim[2] == 3 {
		planar := packed.WithList("format", media.PlanarVideoFormats(3))
		planar = withPositive(planar, "width", dim[0])
		planar = withPositive(planar, "height", dim[1])
		out = append(out, planar)
	}
	return out
}

func audioCapsFor(tmpl *caps.Caps, info tensor.Info, rate tensor.Fraction) *caps.Caps {
	if info.Type == tensor.End {
		return tmpl
	}
	format, err := media.AudioFormatFor(info.Type)
	if err != nil {
		return tmpl
	}
	out := tmpl.With("format", format)
	out = withPositive(out, "channels", info.Dimension[0])
	if rate.Num > 0 {
		out = out.With("rate", strconv.Itoa(rate.Num))
	}
	return out
}

func withPositive(c *caps.Caps, key string, v uint32) *caps.Caps {
	if v == 0 {
		return c
	}
	return c.With(key, strconv.FormatUint(uint64(v), 10))
}

// AcceptCaps reports whether in is fixed and within the template of pad.
func (c *Converter) AcceptCaps(pad Pad, in *caps.Caps) bool {
	if in == nil || !in.IsFixed() {
		return false
	}
	return c.template(pad).CanIntersect(caps.Set{in})
}
