package tensor

import (
	"fmt"
	"math"
	"math/bits"
	"strings"
)

// Info describes one logical tensor.
type Info struct {
	Name      string
	Type      Type
	Dimension Dimension
}

// NewInfo returns an Info with the given type and dimension entries.
func NewInfo(t Type, dims ...uint32) Info {
	info := Info{Type: t}
	copy(info.Dimension[:], dims)
	return info
}

// Validate checks that the type is set, every declared dimension is
// non-zero and the byte size is representable.
func (i Info) Validate() error {
	if err := i.Type.Validate(); err != nil {
		return err
	}
	if !i.Dimension.IsValid() {
		return fmt.Errorf("invalid dimension %q", i.Dimension.String())
	}
	if _, ok := i.byteSize(); !ok {
		return fmt.Errorf("%s %s is too large", i.Type, i.Dimension)
	}
	return nil
}

func (i Info) byteSize() (int, bool) {
	n, ok := i.Dimension.ElementCount()
	if !ok {
		return 0, false
	}
	hi, size := bits.Mul64(n, uint64(i.Type.Size()))
	if hi != 0 || size > math.MaxInt {
		return 0, false
	}
	return int(size), true
}

// Size returns the byte size of the tensor data, or 0 if the Info is invalid.
func (i Info) Size() int {
	if i.Validate() != nil {
		return 0
	}
	size, _ := i.byteSize()
	return size
}

// Equal compares type and dimension. Names are not part of the comparison.
func (i Info) Equal(o Info) bool {
	return i.Type == o.Type && i.Dimension.Equal(o.Dimension)
}

func (i Info) String() string {
	if i.Name != "" {
		return fmt.Sprintf("%s(%s:%s)", i.Name, i.Type, i.Dimension)
	}
	return fmt.Sprintf("%s:%s", i.Type, i.Dimension)
}

// ParseInfos parses the comma separated dimension and type lists used by the
// element properties, e.g. dims "3:4:4:1,2:2" and types "uint8,float32".
// Either list may be empty; the number of tensors is the longer of the two.
func ParseInfos(dims, types string) ([]Info, error) {
	var dimParts, typeParts []string
	if strings.TrimSpace(dims) != "" {
		dimParts = strings.Split(dims, ",")
	}
	if strings.TrimSpace(types) != "" {
		typeParts = strings.Split(types, ",")
	}
	n := len(dimParts)
	if len(typeParts) > n {
		n = len(typeParts)
	}
	if n > SizeLimit {
		return nil, fmt.Errorf("%d tensors exceed size limit %d", n, SizeLimit)
	}

	infos := make([]Info, n)
	for i := range infos {
		infos[i].Type = End
		if i < len(dimParts) {
			d, err := ParseDimension(dimParts[i])
			if err != nil {
				return nil, err
			}
			infos[i].Dimension = d
		}
		if i < len(typeParts) {
			t, err := ParseType(typeParts[i])
			if err != nil {
				return nil, err
			}
			infos[i].Type = t
		}
	}
	return infos, nil
}

// DimensionsString joins the dimensions of infos with commas.
func DimensionsString(infos []Info) string {
	parts := make([]string, len(infos))
	for i, info := range infos {
		parts[i] = info.Dimension.String()
	}
	return strings.Join(parts, ",")
}

// TypesString joins the types of infos with commas.
func TypesString(infos []Info) string {
	parts := make([]string, len(infos))
	for i, info := range infos {
		parts[i] = info.Type.String()
	}
	return strings.Join(parts, ",")
}
