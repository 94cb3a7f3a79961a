// Package media holds the raw video and audio format tables used to derive
// tensor shapes from media caps, and the reverse tables used to answer caps
// queries from a tensor descriptor.
package media

import (
	"fmt"

	"github.com/machinefabric/tensorconv-go/caps"
	"github.com/machinefabric/tensorconv-go/tensor"
)

// VideoFormat describes the memory layout of one raw video pixel format.
type VideoFormat struct {
	Name     string
	Channels int
	Type     tensor.Type
	// Planar formats store each channel in its own plane and use the
	// dimension order [width, height, channels].
	Planar bool
	// Convertible is false for formats that are only known for stride
	// calculation.
	Convertible bool
}

var videoFormats = []VideoFormat{
	{Name: "GRAY8", Channels: 1, Type: tensor.Uint8, Convertible: true},
	{Name: "GRAY16_BE", Channels: 1, Type: tensor.Uint16, Convertible: true},
	{Name: "GRAY16_LE", Channels: 1, Type: tensor.Uint16, Convertible: true},
	{Name: "RGB", Channels: 3, Type: tensor.Uint8, Convertible: true},
	{Name: "BGR", Channels: 3, Type: tensor.Uint8, Convertible: true},
	{Name: "RGBx", Channels: 4, Type: tensor.Uint8, Convertible: true},
	{Name: "BGRx", Channels: 4, Type: tensor.Uint8, Convertible: true},
	{Name: "xRGB", Channels: 4, Type: tensor.Uint8, Convertible: true},
	{Name: "xBGR", Channels: 4, Type: tensor.Uint8, Convertible: true},
	{Name: "RGBA", Channels: 4, Type: tensor.Uint8, Convertible: true},
	{Name: "BGRA", Channels: 4, Type: tensor.Uint8, Convertible: true},
	{Name: "ARGB", Channels: 4, Type: tensor.Uint8, Convertible: true},
	{Name: "ABGR", Channels: 4, Type: tensor.Uint8, Convertible: true},
	{Name: "RGBP", Channels: 3, Type: tensor.Uint8, Planar: true, Convertible: true},
	{Name: "BGRP", Channels: 3, Type: tensor.Uint8, Planar: true, Convertible: true},
	{Name: "I420", Channels: 3, Type: tensor.Uint8, Planar: true},
}

// LookupVideoFormat returns the table entry for a format name.
func LookupVideoFormat(name string) (VideoFormat, bool) {
	for _, f := range videoFormats {
		if f.Name == name {
			return f, true
		}
	}
	return VideoFormat{}, false
}

// VideoFormatNames lists the convertible formats in table order.
func VideoFormatNames() []string {
	var names []string
	for _, f := range videoFormats {
		if f.Convertible {
			names = append(names, f.Name)
		}
	}
	return names
}

// PackedVideoFormats returns the packed formats with the given channel count.
func PackedVideoFormats(channels int) []string {
	var names []string
	for _, f := range videoFormats {
		if f.Convertible && !f.Planar && f.Channels == channels {
			names = append(names, f.Name)
		}
	}
	return names
}

// PlanarVideoFormats returns the planar formats with the given channel count.
func PlanarVideoFormats(channels int) []string {
	var names []string
	for _, f := range videoFormats {
		if f.Convertible && f.Planar && f.Channels == channels {
			names = append(names, f.Name)
		}
	}
	return names
}

// VideoTemplate returns caps accepting every convertible video format.
func VideoTemplate() *caps.Caps {
	return caps.New(caps.MediaVideo, map[string]string{
		"width":     caps.Wildcard,
		"height":    caps.Wildcard,
		"framerate": caps.Wildcard,
	}).WithList("format", VideoFormatNames())
}

// VideoInfo is the fixed video layout parsed from caps.
type VideoInfo struct {
	Format VideoFormat
	Width  int
	Height int
	Rate   tensor.Fraction
	Views  int
}

// ParseVideoInfo reads format, width, height, framerate and views from fixed
// video caps.
func ParseVideoInfo(c *caps.Caps) (VideoInfo, error) {
	var vi VideoInfo
	if c == nil || c.MediaType() != caps.MediaVideo {
		return vi, fmt.Errorf("not video caps: %s", c)
	}
	name, ok := c.FixedField("format")
	if !ok {
		return vi, fmt.Errorf("video caps without fixed format: %s", c)
	}
	f, ok := LookupVideoFormat(name)
	if !ok {
		return vi, fmt.Errorf("unknown video format %q", name)
	}
	vi.Format = f
	if vi.Width, ok = c.Int("width"); !ok || vi.Width <= 0 {
		return vi, fmt.Errorf("video caps without valid width: %s", c)
	}
	if vi.Height, ok = c.Int("height"); !ok || vi.Height <= 0 {
		return vi, fmt.Errorf("video caps without valid height: %s", c)
	}
	vi.Rate = tensor.UnknownRate
	if r, ok := c.Fraction("framerate"); ok {
		vi.Rate = r
	}
	vi.Views = 1
	if v, ok := c.Int("views"); ok && v > 0 {
		vi.Views = v
	}
	return vi, nil
}

func roundUp4(n int) int {
	return (n + 3) &^ 3
}

// PackedRowSize is the tightly packed byte count of one row.
func (vi VideoInfo) PackedRowSize() int {
	return vi.Width * vi.Format.Channels * vi.Format.Type.Size()
}

// Stride is the padded byte count of one row of the first plane.
func (vi VideoInfo) Stride() int {
	if vi.Format.Planar {
		return roundUp4(vi.Width * vi.Format.Type.Size())
	}
	return roundUp4(vi.PackedRowSize())
}

// Size is the byte size of one frame including row padding.
func (vi VideoInfo) Size() int {
	switch {
	case vi.Format.Name == "I420":
		cw := roundUp4((vi.Width + 1) / 2)
		ch := (vi.Height + 1) / 2
		return vi.Stride()*vi.Height + 2*cw*ch
	case vi.Format.Planar:
		return vi.Stride() * vi.Height * vi.Format.Channels
	default:
		return vi.Stride() * vi.Height
	}
}

// TensorSize is the byte size of one frame once padding is removed.
func (vi VideoInfo) TensorSize() int {
	return vi.PackedRowSize() * vi.Height
}

// NeedsRowPadding reports whether rows in memory carry alignment padding
// that must be removed before the frame is a tensor.
func (vi VideoInfo) NeedsRowPadding() bool {
	if vi.Format.Planar {
		return vi.Width%4 != 0
	}
	return vi.PackedRowSize()%4 != 0
}

// Dimension returns the tensor dimension of one frame: [channels, width,
// height, 1] for packed formats and [width, height, channels, 1] for planar.
func (vi VideoInfo) Dimension() tensor.Dimension {
	var d tensor.Dimension
	if vi.Format.Planar {
		d[0], d[1], d[2] = uint32(vi.Width), uint32(vi.Height), uint32(vi.Format.Channels)
	} else {
		d[0], d[1], d[2] = uint32(vi.Format.Channels), uint32(vi.Width), uint32(vi.Height)
	}
	d[3] = 1
	return d
}
