// Package adapter accumulates the bytes of incoming buffers per substream
// and hands them out in exact-size pieces, tracking the timestamp that
// precedes the read position.
package adapter

import (
	"fmt"

	"github.com/machinefabric/tensorconv-go/buffer"
)

type chunk struct {
	mem *buffer.Memory
	pts buffer.ClockTime
	dts buffer.ClockTime
}

// Adapter is a byte queue over pushed memories. It is not safe for
// concurrent use.
type Adapter struct {
	chunks []chunk
	// skip is the number of bytes already consumed from chunks[0].
	skip int
	size int

	pts     buffer.ClockTime
	dts     buffer.ClockTime
	ptsDist uint64
	dtsDist uint64
}

// New returns an empty adapter.
func New() *Adapter {
	a := &Adapter{}
	a.Clear()
	return a
}

// Push appends the memories of buf. The buffer timestamps are attached to
// its first byte.
func (a *Adapter) Push(buf *buffer.Buffer) {
	first := true
	for _, m := range buf.Memories() {
		if m.Size() == 0 {
			continue
		}
		c := chunk{mem: m, pts: buffer.ClockTimeNone, dts: buffer.ClockTimeNone}
		if first {
			c.pts, c.dts = buf.PTS, buf.DTS
			first = false
		}
		if a.size == 0 {
			a.enter(c)
		}
		a.chunks = append(a.chunks, c)
		a.size += m.Size()
	}
}

// enter records the timestamps of a chunk the read position moves onto.
func (a *Adapter) enter(c chunk) {
	if c.pts.IsValid() {
		a.pts, a.ptsDist = c.pts, 0
	}
	if c.dts.IsValid() {
		a.dts, a.dtsDist = c.dts, 0
	}
}

// Available returns the number of queued bytes.
func (a *Adapter) Available() int {
	return a.size
}

// PrevPTS returns the last valid PTS at or before the read position and the
// number of bytes between it and the read position.
func (a *Adapter) PrevPTS() (buffer.ClockTime, uint64) {
	return a.pts, a.ptsDist
}

// PrevDTS is PrevPTS for decoding timestamps.
func (a *Adapter) PrevDTS() (buffer.ClockTime, uint64) {
	return a.dts, a.dtsDist
}

// Take removes exactly n bytes from the queue. The result shares the pushed
// memory when the bytes lie in one chunk and is a fresh copy otherwise.
func (a *Adapter) Take(n int) (*buffer.Memory, error) {
	if n < 0 || n > a.size {
		return nil, fmt.Errorf("take %d bytes, %d available", n, a.size)
	}
	if n == 0 {
		return buffer.NewMemory(nil), nil
	}

	head := a.chunks[0]
	if head.mem.Size()-a.skip >= n {
		out, err := head.mem.Share(a.skip, n)
		if err != nil {
			return nil, err
		}
		a.flush(n)
		return out, nil
	}

	out := make([]byte, 0, n)
	need := n
	for i := 0; need > 0; i++ {
		c := a.chunks[i]
		start := 0
		if i == 0 {
			start = a.skip
		}
		part := c.mem.Bytes()[start:]
		if len(part) > need {
			part = part[:need]
		}
		out = append(out, part...)
		need -= len(part)
	}
	a.flush(n)
	return buffer.NewMemory(out), nil
}

// flush drops n bytes from the front, moving the timestamp tracking along.
func (a *Adapter) flush(n int) {
	a.size -= n
	for n > 0 {
		rest := a.chunks[0].mem.Size() - a.skip
		if n < rest {
			a.skip += n
			a.ptsDist += uint64(n)
			a.dtsDist += uint64(n)
			return
		}
		n -= rest
		a.ptsDist += uint64(rest)
		a.dtsDist += uint64(rest)
		a.chunks[0] = chunk{}
		a.chunks = a.chunks[1:]
		a.skip = 0
		if len(a.chunks) > 0 {
			a.enter(a.chunks[0])
		}
	}
}

// Clear drops all queued bytes and forgets timestamps.
func (a *Adapter) Clear() {
	a.chunks = nil
	a.skip = 0
	a.size = 0
	a.pts, a.dts = buffer.ClockTimeNone, buffer.ClockTimeNone
	a.ptsDist, a.dtsDist = 0, 0
}

// Table maps substream keys to adapters.
type Table struct {
	adapters map[int64]*Adapter
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{adapters: make(map[int64]*Adapter)}
}

// Get returns the adapter for key, creating it on first use.
func (t *Table) Get(key int64) *Adapter {
	a, ok := t.adapters[key]
	if !ok {
		a = New()
		t.adapters[key] = a
	}
	return a
}

// Len returns the number of known keys.
func (t *Table) Len() int {
	return len(t.adapters)
}

// ClearAll empties every adapter but keeps the keys.
func (t *Table) ClearAll() {
	for _, a := range t.adapters {
		a.Clear()
	}
}

// Close drops every adapter.
func (t *Table) Close() {
	for k := range t.adapters {
		delete(t.adapters, k)
	}
}
