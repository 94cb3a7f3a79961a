package tensor

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Dimension holds the sizes of a tensor, index 0 varying fastest.
// Unused trailing entries are zero.
type Dimension [RankLimit]uint32

// ParseDimension parses a colon separated dimension such as "3:640:480:1".
func ParseDimension(s string) (Dimension, error) {
	var d Dimension
	s = strings.TrimSpace(s)
	if s == "" {
		return d, fmt.Errorf("empty dimension string")
	}
	parts := strings.Split(s, ":")
	if len(parts) > RankLimit {
		return d, fmt.Errorf("dimension %q exceeds rank limit %d", s, RankLimit)
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return Dimension{}, fmt.Errorf("invalid dimension %q: %w", s, err)
		}
		d[i] = uint32(v)
	}
	return d, nil
}

// Rank returns the number of leading non-zero entries.
func (d Dimension) Rank() int {
	for i, v := range d {
		if v == 0 {
			return i
		}
	}
	return RankLimit
}

// IsValid reports whether the dimension has at least one entry and no
// non-zero entry follows a zero.
func (d Dimension) IsValid() bool {
	rank := d.Rank()
	if rank == 0 {
		return false
	}
	for i := rank; i < RankLimit; i++ {
		if d[i] != 0 {
			return false
		}
	}
	return true
}

// ElementCount returns the product of the declared entries. ok is false
// when the product does not fit in a uint64.
func (d Dimension) ElementCount() (n uint64, ok bool) {
	rank := d.Rank()
	if rank == 0 {
		return 0, true
	}
	n = 1
	for i := 0; i < rank; i++ {
		hi, lo := bits.Mul64(n, uint64(d[i]))
		if hi != 0 {
			return 0, false
		}
		n = lo
	}
	return n, true
}

// Equal compares two dimensions, treating missing trailing entries as 1 so
// that "3:4:4" equals "3:4:4:1".
func (d Dimension) Equal(o Dimension) bool {
	for i := 0; i < RankLimit; i++ {
		a, b := d[i], o[i]
		if a == 0 {
			a = 1
		}
		if b == 0 {
			b = 1
		}
		if a != b {
			return false
		}
	}
	return d.Rank() > 0 && o.Rank() > 0
}

// String returns the colon separated form of the declared entries.
func (d Dimension) String() string {
	rank := d.Rank()
	parts := make([]string, rank)
	for i := 0; i < rank; i++ {
		parts[i] = strconv.FormatUint(uint64(d[i]), 10)
	}
	return strings.Join(parts, ":")
}
