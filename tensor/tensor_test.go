package tensor

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeNamesAndSizes(t *testing.T) {
	cases := []struct {
		name string
		typ  Type
		size int
	}{
		{"int32", Int32, 4},
		{"uint32", Uint32, 4},
		{"int16", Int16, 2},
		{"uint16", Uint16, 2},
		{"int8", Int8, 1},
		{"uint8", Uint8, 1},
		{"float64", Float64, 8},
		{"float32", Float32, 4},
		{"int64", Int64, 8},
		{"uint64", Uint64, 8},
		{"float16", Float16, 2},
	}
	for _, c := range cases {
		parsed, err := ParseType(c.name)
		require.NoError(t, err, c.name)
		assert.Equal(t, c.typ, parsed)
		assert.Equal(t, c.name, c.typ.String())
		assert.Equal(t, c.size, c.typ.Size())
	}

	_, err := ParseType("complex64")
	assert.Error(t, err)
	assert.Equal(t, "unknown", End.String())
	assert.Equal(t, 0, End.Size())
	assert.Error(t, End.Validate())
}

func TestTypeTextMarshal(t *testing.T) {
	text, err := Float32.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "float32", string(text))

	var typ Type
	require.NoError(t, typ.UnmarshalText([]byte("UINT16")))
	assert.Equal(t, Uint16, typ)

	_, err = End.MarshalText()
	assert.Error(t, err)
}

func TestParseDimension(t *testing.T) {
	d, err := ParseDimension("3:640:480:1")
	require.NoError(t, err)
	assert.Equal(t, 4, d.Rank())
	assert.True(t, d.IsValid())
	n, ok := d.ElementCount()
	require.True(t, ok)
	assert.Equal(t, uint64(3*640*480), n)
	assert.Equal(t, "3:640:480:1", d.String())

	_, err = ParseDimension("")
	assert.Error(t, err)
	_, err = ParseDimension("1:2:x")
	assert.Error(t, err)
	_, err = ParseDimension("1:1:1:1:1:1:1:1:1:1:1:1:1:1:1:1:1")
	assert.Error(t, err)
}

func TestDimensionValidity(t *testing.T) {
	var d Dimension
	assert.False(t, d.IsValid())
	n, ok := d.ElementCount()
	assert.True(t, ok)
	assert.Equal(t, uint64(0), n)

	d[0], d[2] = 3, 4
	assert.False(t, d.IsValid(), "non-zero entry after a zero")
}

func TestDimensionEqualTrailingOnes(t *testing.T) {
	a, _ := ParseDimension("3:4:4")
	b, _ := ParseDimension("3:4:4:1")
	c, _ := ParseDimension("3:4:2")
	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.False(t, a.Equal(c))
	assert.False(t, Dimension{}.Equal(Dimension{}))
}

func TestParseInfos(t *testing.T) {
	infos, err := ParseInfos("3:4:4:1,2:2", "uint8,float32")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, Uint8, infos[0].Type)
	assert.Equal(t, 48, infos[0].Size())
	assert.Equal(t, Float32, infos[1].Type)
	assert.Equal(t, 16, infos[1].Size())
	assert.Equal(t, "3:4:4:1,2:2", DimensionsString(infos))
	assert.Equal(t, "uint8,float32", TypesString(infos))

	// Types missing for the second tensor leave it unset.
	infos, err = ParseInfos("4,4", "int8")
	require.NoError(t, err)
	assert.Equal(t, End, infos[1].Type)
	assert.False(t, ValidInfos(infos))

	infos, err = ParseInfos("", "")
	require.NoError(t, err)
	assert.Empty(t, infos)

	_, err = ParseInfos("4", "bogus")
	assert.Error(t, err)
}

func TestFraction(t *testing.T) {
	f, err := ParseFraction("30/1")
	require.NoError(t, err)
	assert.Equal(t, Fraction{30, 1}, f)
	assert.True(t, f.Known())

	f, err = ParseFraction("25")
	require.NoError(t, err)
	assert.Equal(t, Fraction{25, 1}, f)

	assert.True(t, Fraction{0, 0}.Valid())
	assert.True(t, UnknownRate.Valid())
	assert.False(t, UnknownRate.Known())
	assert.False(t, Fraction{1, 0}.Valid())

	_, err = ParseFraction("1/0")
	assert.Error(t, err)
	_, err = ParseFraction("a/b")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{
		Format:  Static,
		Tensors: []Info{NewInfo(Uint8, 3, 640, 480, 1)},
		Rate:    Fraction{30, 1},
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3*640*480, cfg.TotalSize())
	assert.Equal(t, 0, cfg.TensorSize(1))

	bad := cfg.Clone()
	bad.Tensors[0].Type = End
	assert.Error(t, bad.Validate())
	assert.NoError(t, cfg.Validate(), "clone must not alias tensors")

	empty := Config{Format: Static, Rate: UnknownRate}
	assert.Error(t, empty.Validate())

	flex := Config{Format: Flexible, Tensors: []Info{NewInfo(Uint8, 1)}, Rate: UnknownRate}
	assert.NoError(t, flex.Validate())
	flex.Tensors = append(flex.Tensors, NewInfo(Uint8, 1))
	assert.Error(t, flex.Validate())

	badRate := cfg.Clone()
	badRate.Rate = Fraction{1, 0}
	assert.Error(t, badRate.Validate())
}

func TestConfigEqual(t *testing.T) {
	a := Config{Format: Static, Tensors: []Info{NewInfo(Uint8, 3, 4, 4)}, Rate: Fraction{30, 1}}
	b := Config{Format: Static, Tensors: []Info{{Name: "x", Type: Uint8, Dimension: Dimension{3, 4, 4, 1}}}, Rate: Fraction{60, 2}}
	assert.True(t, a.Equal(b))

	c := b.Clone()
	c.Rate = UnknownRate
	assert.False(t, a.Equal(c))

	d := b.Clone()
	d.Tensors[0].Type = Int8
	assert.False(t, a.Equal(d))

	flexA := Config{Format: Flexible, Tensors: []Info{NewInfo(Uint8, 1)}, Rate: UnknownRate}
	flexB := Config{Format: Flexible, Tensors: []Info{NewInfo(Float32, 8)}, Rate: Fraction{0, 0}}
	assert.True(t, flexA.Equal(flexB))
	assert.False(t, flexA.Equal(a))
}

func TestHeaderRoundTripAllTypesAndRanks(t *testing.T) {
	for typ := Int32; typ < End; typ++ {
		for rank := 1; rank <= RankLimit; rank++ {
			var dim Dimension
			for i := 0; i < rank; i++ {
				dim[i] = uint32(i%3 + 1)
			}
			in := MetaInfo{Type: typ, Dimension: dim, Format: Static, Media: MediaOctet}
			raw, err := EncodeHeader(in)
			require.NoError(t, err)
			require.Len(t, raw, HeaderSize)
			assert.True(t, IsHeader(raw))

			out, err := ParseHeader(raw)
			require.NoError(t, err)
			assert.Equal(t, in, out, "type %s rank %d", typ, rank)
			assert.Equal(t, in.Info().Size(), out.DataSize())
		}
	}
}

func TestHeaderCarriesMediaAny(t *testing.T) {
	in := NewMetaInfo(NewInfo(Float32, 2, 2), MediaAny)
	raw, err := EncodeHeader(in)
	require.NoError(t, err)
	out, err := ParseHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, MediaAny, out.Media)
	assert.Equal(t, 16, out.DataSize())
}

func TestHeaderRejectsMalformed(t *testing.T) {
	_, err := EncodeHeader(MetaInfo{Type: End, Dimension: Dimension{1}})
	assert.Error(t, err)
	_, err = EncodeHeader(MetaInfo{Type: Uint8})
	assert.Error(t, err, "rank 0")

	raw, err := EncodeHeader(NewMetaInfo(NewInfo(Uint8, 4), MediaVideo))
	require.NoError(t, err)

	_, err = ParseHeader(raw[:HeaderSize-1])
	assert.Error(t, err)

	corrupt := append([]byte(nil), raw...)
	corrupt[0] ^= 0xff
	_, err = ParseHeader(corrupt)
	assert.Error(t, err)
	assert.False(t, IsHeader(corrupt))

	badVersion := append([]byte(nil), raw...)
	badVersion[offVersion] = 9
	_, err = ParseHeader(badVersion)
	assert.Error(t, err)

	badType := append([]byte(nil), raw...)
	badType[offType] = byte(End)
	_, err = ParseHeader(badType)
	assert.Error(t, err)
}

func TestElementCountOverflow(t *testing.T) {
	// 4*5*5581*8681*49477*384773 is 2^64 + 4
	d := Dimension{4, 5, 5581, 8681, 49477, 384773}
	_, ok := d.ElementCount()
	assert.False(t, ok)

	info := Info{Type: Uint8, Dimension: d}
	assert.Error(t, info.Validate())
	assert.Equal(t, 0, info.Size())

	// fits in uint64 elements but not in int bytes
	big := NewInfo(Float64, 0xffffffff, 0xffffffff)
	assert.Error(t, big.Validate())
}

func TestParseHeaderRejectsOverflowingShape(t *testing.T) {
	raw, err := EncodeHeader(NewMetaInfo(NewInfo(Uint8, 4), MediaOctet))
	require.NoError(t, err)
	for i, d := range []uint32{4, 5, 5581, 8681, 49477, 384773} {
		binary.LittleEndian.PutUint32(raw[offDimension+4*i:], d)
	}
	_, err = ParseHeader(raw)
	assert.ErrorContains(t, err, "too large")
}
