package plugin

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinefabric/tensorconv-go/buffer"
	"github.com/machinefabric/tensorconv-go/caps"
	"github.com/machinefabric/tensorconv-go/tensor"
)

type stubConverter struct {
	name  string
	caps  caps.Set
	calls int
}

func (s *stubConverter) Name() string        { return s.name }
func (s *stubConverter) QueryCaps() caps.Set { return s.caps }

func (s *stubConverter) Describe(*caps.Caps, Handle) (tensor.Config, error) {
	return tensor.Config{}, errors.New("not implemented")
}

func (s *stubConverter) Convert(buf *buffer.Buffer, _ Handle) (*buffer.Buffer, tensor.Config, error) {
	s.calls++
	return buf, tensor.Config{}, nil
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()
	err := r.Register(nil)
	require.Error(t, err)
	assert.Equal(t, ErrTypeInvalid, err.(*RegistryError).Type)

	err = r.Register(&stubConverter{name: " "})
	require.Error(t, err)
	assert.Equal(t, ErrTypeInvalid, err.(*RegistryError).Type)

	require.NoError(t, r.Register(&stubConverter{name: "flatbuf"}))
	err = r.Register(&stubConverter{name: "flatbuf"})
	require.Error(t, err)
	assert.Equal(t, ErrTypeAlreadyRegistered, err.(*RegistryError).Type)
}

func TestFindAndUnregister(t *testing.T) {
	r := NewRegistry()
	c := &stubConverter{name: "protobuf"}
	require.NoError(t, r.Register(c))

	got, err := r.Find("protobuf")
	require.NoError(t, err)
	assert.Same(t, c, got)

	require.NoError(t, r.Unregister("protobuf"))
	_, err = r.Find("protobuf")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(r.Unregister("protobuf")))
}

func TestLookupExactNameBeforeCaps(t *testing.T) {
	r := NewRegistry()
	byCaps := &stubConverter{name: "first", caps: caps.MustParseSet("other/flexbuf")}
	byName := &stubConverter{name: "other/flexbuf"}
	require.NoError(t, r.Register(byCaps))
	require.NoError(t, r.Register(byName))

	got, err := r.Lookup("other/flexbuf")
	require.NoError(t, err)
	assert.Same(t, byName, got)
}

func TestLookupFirstRegisteredCapsWins(t *testing.T) {
	r := NewRegistry()
	a := &stubConverter{name: "a", caps: caps.MustParseSet("application/x-protobuf", "other/flatbuf-tensor")}
	b := &stubConverter{name: "b", caps: caps.MustParseSet("other/flatbuf-tensor")}
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	got, err := r.Lookup("other/flatbuf-tensor")
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = r.Lookup("application/json")
	assert.True(t, IsNotFound(err))

	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestCustomCallbacks(t *testing.T) {
	r := NewRegistry()
	fn := func(buf *buffer.Buffer, data any) (*buffer.Buffer, tensor.Config, error) {
		return buf, tensor.Config{}, nil
	}

	assert.Error(t, r.RegisterCustom("", fn, nil))
	assert.Error(t, r.RegisterCustom("cb", nil, nil))
	require.NoError(t, r.RegisterCustom("cb", fn, "user-data"))
	err := r.RegisterCustom("cb", fn, nil)
	assert.Equal(t, ErrTypeAlreadyRegistered, err.(*RegistryError).Type)

	got, data, err := r.FindCustom("cb")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, "user-data", data)

	require.NoError(t, r.UnregisterCustom("cb"))
	_, _, err = r.FindCustom("cb")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(r.UnregisterCustom("cb")))
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestConcurrentRegistration(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(&stubConverter{name: string(rune('a' + i))})
			_, _ = r.Lookup("video/x-raw")
		}(i)
	}
	wg.Wait()
	assert.Len(t, r.Names(), 16)
}
