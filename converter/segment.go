package converter

import (
	"fmt"

	"github.com/machinefabric/tensorconv-go/buffer"
)

// SegmentFormat is the unit of segment positions.
type SegmentFormat int

const (
	FormatTime SegmentFormat = iota
	FormatBytes
	FormatDefault
)

func (f SegmentFormat) String() string {
	switch f {
	case FormatTime:
		return "time"
	case FormatBytes:
		return "bytes"
	case FormatDefault:
		return "default"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Segment describes the playback range of the following buffers.
type Segment struct {
	Format SegmentFormat
	Start  uint64
	Stop   uint64
	Time   uint64
}

// NewTimeSegment returns an open TIME segment starting at zero.
func NewTimeSegment() Segment {
	return Segment{Format: FormatTime, Stop: uint64(buffer.ClockTimeNone)}
}

// HandleSegment handles a segment event. TIME segments are forwarded.
// BYTES segments are converted to TIME when the first buffer arrives.
func (c *Converter) HandleSegment(seg Segment) error {
	if !c.Properties().Silent {
		c.logger.Debug("segment event", "format", seg.Format, "start", seg.Start)
	}
	switch seg.Format {
	case FormatTime:
		c.segment = seg
		c.haveSegment = true
		return c.peer.PushSegment(seg)
	case FormatBytes:
		c.segment = seg
		c.haveSegment = true
		c.needSegment = true
		return nil
	}
	err := newError(KindUnsupportedCombination, nil, "unsupported segment format %s", seg.Format)
	c.logger.Error("segment rejected", "error", err)
	return err
}

// chainSegment pushes the TIME form of a pending BYTES segment.
func (c *Converter) chainSegment(frameSize int) {
	if !c.needSegment {
		return
	}
	rate := c.config.Rate
	start := c.segment.Start
	seg := NewTimeSegment()
	if rate.Known() && start > 0 && frameSize > 0 {
		start = buffer.ScaleInt(start*uint64(rate.Den), uint64(buffer.Second), uint64(frameSize)*uint64(rate.Num))
		seg.Start = start
		seg.Time = start
	}
	c.segment = seg
	c.needSegment = false
	if err := c.peer.PushSegment(seg); err != nil {
		c.logger.Warn("failed to push segment", "error", err)
	}
}
