// Package tensor provides the tensor descriptor model shared by every stage of
// the conversion element: element types, dimensions, per-tensor descriptors
// and the tensor-set configuration negotiated between stream elements.
package tensor

import (
	"fmt"
	"strings"
)

// Fixed limits of the descriptor model.
const (
	// RankLimit is the maximum number of dimensions of a tensor.
	RankLimit = 16
	// SizeLimit is the maximum number of tensors in a tensor set.
	SizeLimit = 16
)

// Type is the element type of a tensor.
// The numeric values are part of the flexible wire header.
type Type uint32

const (
	Int32 Type = iota
	Uint32
	Int16
	Uint16
	Int8
	Uint8
	Float64
	Float32
	Int64
	Uint64
	Float16
	// End is the "unset" sentinel.
	End
)

var (
	typeToString = [...]string{
		Int32:   "int32",
		Uint32:  "uint32",
		Int16:   "int16",
		Uint16:  "uint16",
		Int8:    "int8",
		Uint8:   "uint8",
		Float64: "float64",
		Float32: "float32",
		Int64:   "int64",
		Uint64:  "uint64",
		Float16: "float16",
	}
	typeToSize = [...]int{
		Int32:   4,
		Uint32:  4,
		Int16:   2,
		Uint16:  2,
		Int8:    1,
		Uint8:   1,
		Float64: 8,
		Float32: 4,
		Int64:   8,
		Uint64:  8,
		Float16: 2,
	}
)

// Validate returns an error if the Type is the unset sentinel or out of range.
func (t Type) Validate() error {
	if t >= End {
		return fmt.Errorf("invalid tensor type(%d)", uint32(t))
	}
	return nil
}

// String returns the lower-case name of the type, or "unknown".
func (t Type) String() string {
	if t.Validate() != nil {
		return "unknown"
	}
	return typeToString[t]
}

// Size returns the size in bytes of one element, or 0 for an invalid type.
func (t Type) Size() int {
	if t.Validate() != nil {
		return 0
	}
	return typeToSize[t]
}

// ParseType parses a type name such as "uint8" or "float32".
// Unknown names yield End and an error.
func ParseType(s string) (Type, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range typeToString {
		if n == name {
			return Type(t), nil
		}
	}
	return End, fmt.Errorf("unknown tensor type %q", s)
}

// MarshalText satisfies encoding.TextMarshaler interface.
func (t Type) MarshalText() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return []byte(typeToString[t]), nil
}

// UnmarshalText satisfies encoding.TextUnmarshaler interface.
func (t *Type) UnmarshalText(text []byte) error {
	v, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Format is the wire format of a tensor stream.
type Format uint32

const (
	// Static streams carry shapes fixed at negotiation time.
	Static Format = iota
	// Flexible streams prefix each tensor with a self-describing header.
	Flexible
)

func (f Format) String() string {
	switch f {
	case Static:
		return "static"
	case Flexible:
		return "flexible"
	default:
		return fmt.Sprintf("format(%d)", uint32(f))
	}
}

// ParseFormat parses "static" or "flexible".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "static":
		return Static, nil
	case "flexible":
		return Flexible, nil
	}
	return Static, fmt.Errorf("unknown tensor format %q", s)
}

// MediaType identifies the kind of media a stream was converted from.
// The numeric values are part of the flexible wire header.
type MediaType int32

const (
	MediaInvalid MediaType = -1
	MediaVideo   MediaType = 0
	MediaAudio   MediaType = 1
	MediaText    MediaType = 2
	MediaOctet   MediaType = 3
	MediaTensor  MediaType = 4
	// MediaAny covers every stream handled by a custom or external converter.
	MediaAny MediaType = 0x1000
)

func (m MediaType) String() string {
	switch m {
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	case MediaText:
		return "text"
	case MediaOctet:
		return "octet"
	case MediaTensor:
		return "tensor"
	case MediaAny:
		return "any"
	default:
		return "invalid"
	}
}
