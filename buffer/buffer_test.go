package buffer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareDoesNotCopy(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	m := NewMemory(data)

	view, err := m.Share(2, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3, 4, 5}, view.Bytes())

	data[3] = 99
	assert.Equal(t, byte(99), view.Bytes()[1], "view must alias the source")

	tail, err := m.Share(6, -1)
	require.NoError(t, err)
	assert.Equal(t, 2, tail.Size())

	_, err = m.Share(6, 4)
	assert.Error(t, err)
	_, err = m.Share(-1, 1)
	assert.Error(t, err)
}

func TestShareCapsCapacity(t *testing.T) {
	m := NewMemory(make([]byte, 8))
	view, err := m.Share(0, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cap(view.Bytes()))
}

func TestNewBufferHasUnsetTimestamps(t *testing.T) {
	b := New([]byte{1, 2, 3})
	assert.False(t, b.PTS.IsValid())
	assert.False(t, b.DTS.IsValid())
	assert.False(t, b.Duration.IsValid())
	assert.Equal(t, 3, b.Size())
	assert.Equal(t, 1, b.NMemory())
	assert.Equal(t, int64(0), b.StreamKey)
}

func TestMerged(t *testing.T) {
	single := New([]byte{1, 2})
	assert.Same(t, single.Memory(0), single.Merged())

	multi := NewWithMemories(NewMemory([]byte{1, 2}), NewMemory([]byte{3}))
	multi.Append(NewMemory([]byte{4, 5}))
	assert.Equal(t, 3, multi.NMemory())
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, multi.Merged().Bytes())
	assert.Equal(t, 5, multi.Size())

	assert.Equal(t, 0, NewWithMemories().Merged().Size())
}

func TestCopyMetadata(t *testing.T) {
	src := New(nil)
	src.PTS, src.DTS, src.Duration = 10, 9, 5
	src.Offset, src.StreamKey = 3, 7

	dst := New([]byte{1})
	dst.CopyMetadata(src)
	assert.Equal(t, ClockTime(10), dst.PTS)
	assert.Equal(t, ClockTime(9), dst.DTS)
	assert.Equal(t, ClockTime(5), dst.Duration)
	assert.Equal(t, uint64(3), dst.Offset)
	assert.Equal(t, int64(7), dst.StreamKey)
}

func TestScaleInt(t *testing.T) {
	assert.Equal(t, uint64(2*Millisecond), ScaleInt(4*1, uint64(Second), 1000*2))
	assert.Equal(t, uint64(0), ScaleInt(5, 1, 0))
	// Needs a 128-bit intermediate.
	assert.Equal(t, uint64(math.MaxUint64/2), ScaleInt(math.MaxUint64/2, 1000, 1000))
	assert.Equal(t, uint64(math.MaxUint64), ScaleInt(math.MaxUint64, 2, 1))
}

func TestClockTimeString(t *testing.T) {
	assert.Equal(t, "none", ClockTimeNone.String())
	assert.Equal(t, "1s", Second.String())
}
