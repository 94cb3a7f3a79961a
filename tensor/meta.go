package tensor

import (
	"encoding/binary"
	"fmt"
)

// Flexible wire header layout. Every field is a little-endian uint32; the
// remainder up to HeaderSize is zero.
const (
	HeaderSize = 128

	headerMagic   uint32 = 0xfeedcced
	headerVersion uint32 = 1

	offMagic     = 0
	offVersion   = 4
	offType      = 8
	offDimension = 12
	offFormat    = offDimension + 4*RankLimit
	offMedia     = offFormat + 4
)

// MetaInfo is the decoded content of a flexible header.
type MetaInfo struct {
	Type      Type
	Dimension Dimension
	Format    Format
	Media     MediaType
}

// NewMetaInfo builds the header for one tensor of the given media kind.
func NewMetaInfo(info Info, media MediaType) MetaInfo {
	return MetaInfo{
		Type:      info.Type,
		Dimension: info.Dimension,
		Format:    Static,
		Media:     media,
	}
}

// Info returns the tensor descriptor carried by the header.
func (m MetaInfo) Info() Info {
	return Info{Type: m.Type, Dimension: m.Dimension}
}

// DataSize returns the payload byte size following the header.
func (m MetaInfo) DataSize() int {
	return m.Info().Size()
}

// Validate checks the type and dimension of the header.
func (m MetaInfo) Validate() error {
	if err := m.Info().Validate(); err != nil {
		return fmt.Errorf("invalid tensor header: %w", err)
	}
	return nil
}

// EncodeHeader writes the header into a fresh HeaderSize byte slice.
func EncodeHeader(m MetaInfo) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	out := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(out[offMagic:], headerMagic)
	binary.LittleEndian.PutUint32(out[offVersion:], headerVersion)
	binary.LittleEndian.PutUint32(out[offType:], uint32(m.Type))
	for i, d := range m.Dimension {
		binary.LittleEndian.PutUint32(out[offDimension+4*i:], d)
	}
	binary.LittleEndian.PutUint32(out[offFormat:], uint32(m.Format))
	binary.LittleEndian.PutUint32(out[offMedia:], uint32(m.Media))
	return out, nil
}

// ParseHeader decodes the header at the start of data.
func ParseHeader(data []byte) (MetaInfo, error) {
	var m MetaInfo
	if len(data) < HeaderSize {
		return m, fmt.Errorf("tensor header needs %d bytes, got %d", HeaderSize, len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[offMagic:]); magic != headerMagic {
		return m, fmt.Errorf("bad tensor header magic 0x%08x", magic)
	}
	if v := binary.LittleEndian.Uint32(data[offVersion:]); v != headerVersion {
		return m, fmt.Errorf("unsupported tensor header version %d", v)
	}
	m.Type = Type(binary.LittleEndian.Uint32(data[offType:]))
	for i := range m.Dimension {
		m.Dimension[i] = binary.LittleEndian.Uint32(data[offDimension+4*i:])
	}
	m.Format = Format(binary.LittleEndian.Uint32(data[offFormat:]))
	m.Media = MediaType(int32(binary.LittleEndian.Uint32(data[offMedia:])))
	if err := m.Validate(); err != nil {
		return MetaInfo{}, err
	}
	return m, nil
}

// IsHeader reports whether data starts with a flexible header magic.
func IsHeader(data []byte) bool {
	return len(data) >= HeaderSize && binary.LittleEndian.Uint32(data) == headerMagic
}
