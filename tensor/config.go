package tensor

import (
	"fmt"
	"strconv"
	"strings"
)

// Fraction is a frame rate. 0/1 and 0/0 both mean "unknown".
type Fraction struct {
	Num int
	Den int
}

// UnknownRate is the rate assigned when the input does not declare one.
var UnknownRate = Fraction{Num: 0, Den: 1}

// Valid reports whether the fraction is usable as a frame rate.
func (f Fraction) Valid() bool {
	if f.Num < 0 || f.Den < 0 {
		return false
	}
	return f.Den > 0 || f.Num == 0
}

// Known reports whether the rate is a real, positive frame rate.
func (f Fraction) Known() bool {
	return f.Num > 0 && f.Den > 0
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// ParseFraction parses "n/d" or a plain integer "n" (denominator 1).
func ParseFraction(s string) (Fraction, error) {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.Atoi(num)
	if err != nil {
		return Fraction{}, fmt.Errorf("invalid fraction %q: %w", s, err)
	}
	d := 1
	if found {
		d, err = strconv.Atoi(den)
		if err != nil {
			return Fraction{}, fmt.Errorf("invalid fraction %q: %w", s, err)
		}
	}
	f := Fraction{Num: n, Den: d}
	if !f.Valid() {
		return Fraction{}, fmt.Errorf("invalid fraction %q", s)
	}
	return f, nil
}

// Config is the tensor-set descriptor negotiated between stream elements.
// A Config is treated as immutable once published; use Clone before changing
// a received one.
type Config struct {
	Format  Format
	Tensors []Info
	Rate    Fraction
}

// FlexibleConfig returns a flexible config with the single uint8 placeholder
// tensor whose leading dimension is replaced per buffer.
func FlexibleConfig(rate Fraction) Config {
	return Config{
		Format:  Flexible,
		Tensors: []Info{NewInfo(Uint8, 1)},
		Rate:    rate,
	}
}

// NumTensors returns the number of declared tensors.
func (c Config) NumTensors() int {
	return len(c.Tensors)
}

// IsFlexible reports whether the config uses the self-describing format.
func (c Config) IsFlexible() bool {
	return c.Format == Flexible
}

// Validate checks the invariants of the descriptor:
//
//   - the rate is valid (den > 0, or unknown)
//   - a flexible config declares exactly one tensor
//   - a static config declares 1..SizeLimit tensors, each with a set type
//     and non-zero dimensions
func (c Config) Validate() error {
	if !c.Rate.Valid() {
		return fmt.Errorf("invalid frame rate %s", c.Rate)
	}
	switch c.Format {
	case Flexible:
		if len(c.Tensors) != 1 {
			return fmt.Errorf("flexible config must declare exactly one tensor, has %d", len(c.Tensors))
		}
		return nil
	case Static:
	default:
		return fmt.Errorf("invalid format %s", c.Format)
	}
	if len(c.Tensors) == 0 || len(c.Tensors) > SizeLimit {
		return fmt.Errorf("invalid number of tensors %d", len(c.Tensors))
	}
	for i, info := range c.Tensors {
		if err := info.Validate(); err != nil {
			return fmt.Errorf("tensor %d: %w", i, err)
		}
	}
	return nil
}

// ValidInfos reports whether infos form a usable static tensor list.
func ValidInfos(infos []Info) bool {
	if len(infos) == 0 || len(infos) > SizeLimit {
		return false
	}
	for _, info := range infos {
		if info.Validate() != nil {
			return false
		}
	}
	return true
}

// InfosEqual compares two tensor lists element-wise.
func InfosEqual(a, b []Info) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Equal reports whether two configs describe the same stream.
// Flexible configs compare format and rate only, since their shapes are
// carried per buffer.
func (c Config) Equal(o Config) bool {
	if c.Format != o.Format || !ratesEqual(c.Rate, o.Rate) {
		return false
	}
	if c.Format == Flexible {
		return true
	}
	return InfosEqual(c.Tensors, o.Tensors)
}

func ratesEqual(a, b Fraction) bool {
	if !a.Known() || !b.Known() {
		return a.Known() == b.Known()
	}
	return int64(a.Num)*int64(b.Den) == int64(b.Num)*int64(a.Den)
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	out := c
	out.Tensors = append([]Info(nil), c.Tensors...)
	return out
}

// TensorSize returns the byte size of tensor i.
func (c Config) TensorSize(i int) int {
	if i < 0 || i >= len(c.Tensors) {
		return 0
	}
	return c.Tensors[i].Size()
}

// TotalSize returns the summed byte size of all tensors.
func (c Config) TotalSize() int {
	total := 0
	for _, info := range c.Tensors {
		total += info.Size()
	}
	return total
}

func (c Config) String() string {
	parts := make([]string, len(c.Tensors))
	for i, info := range c.Tensors {
		parts[i] = info.String()
	}
	return fmt.Sprintf("%s[%s]@%s", c.Format, strings.Join(parts, ","), c.Rate)
}
