package caps

import (
	"fmt"
	"strconv"

	"github.com/machinefabric/tensorconv-go/tensor"
)

// Tensor caps field keys.
const (
	FieldFormat     = "format"
	FieldNumTensors = "num_tensors"
	FieldDimensions = "dimensions"
	FieldTypes      = "types"
	FieldFramerate  = "framerate"
)

// MediaTypeOf maps caps to the media kind handled by a converter.
func MediaTypeOf(c *Caps) tensor.MediaType {
	if c == nil {
		return tensor.MediaInvalid
	}
	switch c.name {
	case MediaVideo:
		return tensor.MediaVideo
	case MediaAudio:
		return tensor.MediaAudio
	case MediaText:
		return tensor.MediaText
	case MediaOctet:
		return tensor.MediaOctet
	case MediaTensors:
		return tensor.MediaTensor
	default:
		return tensor.MediaAny
	}
}

// FromConfig builds tensor caps for cfg. Tensor fields that are not valid
// are left out, so a partial config yields unfixed caps.
func FromConfig(cfg tensor.Config) *Caps {
	b := NewBuilder(MediaTensors).Field(FieldFormat, cfg.Format.String())
	rate := cfg.Rate
	if !rate.Valid() || rate.Den == 0 {
		rate = tensor.UnknownRate
	}
	b.Fraction(FieldFramerate, rate)

	if cfg.Format == tensor.Static && len(cfg.Tensors) > 0 {
		b.Int(FieldNumTensors, len(cfg.Tensors))
		dimsOK, typesOK := true, true
		for _, info := range cfg.Tensors {
			dimsOK = dimsOK && info.Dimension.IsValid()
			typesOK = typesOK && info.Type.Validate() == nil
		}
		if dimsOK {
			b.Field(FieldDimensions, tensor.DimensionsString(cfg.Tensors))
		}
		if typesOK {
			b.Field(FieldTypes, tensor.TypesString(cfg.Tensors))
		}
	}
	return New(b.name, b.fields)
}

// FlexibleTemplate returns flexible tensor caps accepting any frame rate.
func FlexibleTemplate() *Caps {
	return New(MediaTensors, map[string]string{
		FieldFormat:    tensor.Flexible.String(),
		FieldFramerate: Wildcard,
	})
}

// ToConfig parses tensor caps. Missing or unfixed fields leave the
// corresponding parts of the config unset; the result must be validated by
// the caller before use.
func ToConfig(c *Caps) (tensor.Config, error) {
	cfg := tensor.Config{Format: tensor.Static, Rate: tensor.UnknownRate}
	if c == nil || c.name != MediaTensors {
		return cfg, &Error{
			Code:    ErrorInvalidMediaType,
			Message: fmt.Sprintf("not tensor caps: %s", c),
		}
	}

	if rate, ok := c.Fraction(FieldFramerate); ok {
		cfg.Rate = rate
	}
	if v, ok := c.FixedField(FieldFormat); ok {
		f, err := tensor.ParseFormat(v)
		if err != nil {
			return cfg, &Error{Code: ErrorInvalidField, Message: err.Error()}
		}
		cfg.Format = f
	}
	if cfg.Format == tensor.Flexible {
		return tensor.FlexibleConfig(cfg.Rate), nil
	}

	dims, _ := c.FixedField(FieldDimensions)
	types, _ := c.FixedField(FieldTypes)
	infos, err := tensor.ParseInfos(dims, types)
	if err != nil {
		return cfg, &Error{Code: ErrorInvalidField, Message: err.Error()}
	}
	if n, ok := c.Int(FieldNumTensors); ok {
		if n < 0 || n > tensor.SizeLimit {
			return cfg, &Error{
				Code:    ErrorInvalidField,
				Message: "invalid num_tensors " + strconv.Itoa(n),
			}
		}
		if len(infos) > n {
			infos = infos[:n]
		}
		for len(infos) < n {
			infos = append(infos, tensor.Info{Type: tensor.End})
		}
	}
	cfg.Tensors = infos
	return cfg, nil
}

// IsFlexible reports whether the caps fix the flexible tensor format.
func IsFlexible(c *Caps) bool {
	return c != nil && c.name == MediaTensors && c.HasField(FieldFormat, tensor.Flexible.String())
}

// AcceptsOnlyFlexible reports whether every entry of s is flexible tensor
// caps. An unrestricted or empty set returns false.
func AcceptsOnlyFlexible(s Set) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if !IsFlexible(c) {
			return false
		}
	}
	return true
}
