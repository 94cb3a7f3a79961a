// Package buffer models timestamped stream buffers made of shared memory
// views. Slicing a Memory never copies; views keep the backing array alive
// for as long as any of them is referenced.
package buffer

import (
	"fmt"
	"math"
	"math/bits"
	"time"
)

// ClockTime is a stream time in nanoseconds.
type ClockTime uint64

const (
	// ClockTimeNone marks an unset timestamp or duration.
	ClockTimeNone ClockTime = math.MaxUint64
	// Second is one second in ClockTime units.
	Second ClockTime = ClockTime(time.Second)
	// Millisecond is one millisecond in ClockTime units.
	Millisecond ClockTime = ClockTime(time.Millisecond)
)

// IsValid reports whether t is set.
func (t ClockTime) IsValid() bool {
	return t != ClockTimeNone
}

func (t ClockTime) String() string {
	if !t.IsValid() {
		return "none"
	}
	return time.Duration(t).String()
}

// ScaleInt returns v * num / denom computed with a 128-bit intermediate.
// The result saturates when it does not fit in 64 bits.
func ScaleInt(v, num, denom uint64) uint64 {
	if denom == 0 {
		return 0
	}
	hi, lo := bits.Mul64(v, num)
	if hi >= denom {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, denom)
	return q
}

// Memory is an immutable view over a byte slice.
type Memory struct {
	data []byte
}

// NewMemory wraps data without copying it.
func NewMemory(data []byte) *Memory {
	return &Memory{data: data}
}

// Bytes returns the viewed bytes. Callers must not modify them.
func (m *Memory) Bytes() []byte {
	return m.data
}

// Size returns the view length in bytes.
func (m *Memory) Size() int {
	return len(m.data)
}

// Share returns a view of size bytes starting at offset. A negative size
// extends the view to the end.
func (m *Memory) Share(offset, size int) (*Memory, error) {
	if size < 0 {
		size = len(m.data) - offset
	}
	if offset < 0 || size < 0 || offset+size > len(m.data) {
		return nil, fmt.Errorf("share [%d:+%d] out of range for memory of %d bytes", offset, size, len(m.data))
	}
	return &Memory{data: m.data[offset : offset+size : offset+size]}, nil
}

// Buffer is an ordered list of memories with stream metadata.
type Buffer struct {
	mems []*Memory

	PTS      ClockTime
	DTS      ClockTime
	Duration ClockTime
	Offset   uint64
	// StreamKey identifies the logical substream the buffer belongs to.
	StreamKey int64
}

// New returns a buffer holding a single memory over data, with unset
// timestamps.
func New(data []byte) *Buffer {
	return NewWithMemories(NewMemory(data))
}

// NewWithMemories returns a buffer holding mems, with unset timestamps.
func NewWithMemories(mems ...*Memory) *Buffer {
	return &Buffer{
		mems:     append([]*Memory(nil), mems...),
		PTS:      ClockTimeNone,
		DTS:      ClockTimeNone,
		Duration: ClockTimeNone,
	}
}

// Append adds a memory at the end.
func (b *Buffer) Append(m *Memory) {
	b.mems = append(b.mems, m)
}

// NMemory returns the number of memories.
func (b *Buffer) NMemory() int {
	return len(b.mems)
}

// Memory returns memory i.
func (b *Buffer) Memory(i int) *Memory {
	return b.mems[i]
}

// Memories returns the memory list. The slice must not be modified.
func (b *Buffer) Memories() []*Memory {
	return b.mems
}

// Size returns the total byte count.
func (b *Buffer) Size() int {
	n := 0
	for _, m := range b.mems {
		n += m.Size()
	}
	return n
}

// Merged returns the whole content as one memory. A single-memory buffer
// returns its memory unchanged; otherwise the memories are concatenated.
func (b *Buffer) Merged() *Memory {
	switch len(b.mems) {
	case 0:
		return NewMemory(nil)
	case 1:
		return b.mems[0]
	}
	out := make([]byte, 0, b.Size())
	for _, m := range b.mems {
		out = append(out, m.data...)
	}
	return NewMemory(out)
}

// CopyMetadata copies timestamps, offset and stream key from src.
func (b *Buffer) CopyMetadata(src *Buffer) {
	b.PTS = src.PTS
	b.DTS = src.DTS
	b.Duration = src.Duration
	b.Offset = src.Offset
	b.StreamKey = src.StreamKey
}

func (b *Buffer) String() string {
	return fmt.Sprintf("buffer(size=%d mems=%d pts=%s dts=%s dur=%s key=%d)",
		b.Size(), len(b.mems), b.PTS, b.DTS, b.Duration, b.StreamKey)
}
