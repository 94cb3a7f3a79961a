package converter

import (
	"github.com/machinefabric/tensorconv-go/buffer"
	"github.com/machinefabric/tensorconv-go/tensor"
)

// Chain converts one input buffer and pushes the resulting tensor buffers
// downstream. Partial frames are kept until enough data arrives. A
// returned error is fatal to the stream; the input buffer is discarded.
func (c *Converter) Chain(buf *buffer.Buffer) error {
	err := c.chain(buf)
	if err == nil {
		return nil
	}
	if KindOf(err) != KindNotNegotiated {
		err = flowError(err)
	}
	c.metrics.recordError(err)
	c.logger.Error("failed to convert buffer", "error", err)
	return err
}

func (c *Converter) chain(buf *buffer.Buffer) error {
	switch c.state {
	case StateTornDown:
		return newError(KindNotNegotiated, errClosed, "buffer after close")
	case StateConfigured:
	default:
		return newError(KindNotNegotiated, nil, "buffer before caps were negotiated")
	}
	if buf == nil || buf.Size() == 0 {
		return newError(KindFlow, nil, "empty buffer")
	}
	c.metrics.bufferIn()

	// work on a view so the caller's timestamps stay untouched
	in := buffer.NewWithMemories(buf.Memories()...)
	in.CopyMetadata(buf)

	props := c.Properties()
	in, framesIn, frameSize, err := c.handler.prepare(c, in)
	if err != nil {
		return err
	}

	c.chainSegment(frameSize)
	if props.SetTimestamp {
		c.chainTimestamp(in, framesIn)
	}
	c.oldTimestamp = in.PTS

	framesOut := props.FramesPerTensor
	if framesIn == framesOut {
		return c.push(in)
	}
	return c.chainChunk(in, framesIn, framesOut, frameSize)
}

// chainTimestamp fills in a missing duration from the frame rate and a
// missing PTS from the previous buffer, the clock or the segment start.
func (c *Converter) chainTimestamp(in *buffer.Buffer, framesIn int) {
	rate := c.config.Rate
	haveRate := rate.Known()

	if !in.Duration.IsValid() && haveRate {
		in.Duration = buffer.ClockTime(buffer.ScaleInt(uint64(framesIn)*uint64(rate.Den),
			uint64(buffer.Second), uint64(rate.Num)))
	}
	if in.PTS.IsValid() {
		return
	}

	pts := buffer.ClockTime(c.segment.Start)
	switch {
	case haveRate:
		if c.oldTimestamp.IsValid() {
			pts = c.oldTimestamp + in.Duration
		}
	case c.clock != nil:
		pts = c.clock()
	}
	in.PTS = pts
}

// chainChunk queues in and pushes one buffer for every framesOut frames
// available for its stream key.
func (c *Converter) chainChunk(in *buffer.Buffer, framesIn, framesOut, frameSize int) error {
	outSize := framesOut * frameSize
	if outSize <= 0 {
		return newError(KindFlow, nil, "cannot collect %d frames of %d bytes", framesOut, frameSize)
	}
	rate := c.config.Rate
	haveRate := rate.Known()

	duration := in.Duration
	if duration.IsValid() {
		if framesIn > 0 {
			duration = buffer.ClockTime(buffer.ScaleInt(uint64(duration), uint64(framesOut), uint64(framesIn)))
		} else {
			duration = buffer.ClockTimeNone
		}
	}

	a := c.adapters.Get(in.StreamKey)
	a.Push(in)

	for a.Available() >= outSize {
		pts, ptsDist := a.PrevPTS()
		dts, dtsDist := a.PrevDTS()
		// several frames per input: advance by the frames already consumed
		if framesIn > 1 && haveRate {
			if pts.IsValid() {
				pts += c.frameOffset(ptsDist, frameSize)
			}
			if dts.IsValid() {
				dts += c.frameOffset(dtsDist, frameSize)
			}
		}

		mem, err := a.Take(outSize)
		if err != nil {
			return newError(KindFlow, err, "adapter underrun")
		}
		out := buffer.NewWithMemories(mem)
		out.PTS = pts
		out.DTS = dts
		out.Duration = duration
		out.Offset = in.Offset
		out.StreamKey = in.StreamKey
		if err := c.push(out); err != nil {
			return err
		}
	}
	return nil
}

// frameOffset converts a byte distance into the time of the frames it spans.
func (c *Converter) frameOffset(dist uint64, frameSize int) buffer.ClockTime {
	rate := c.config.Rate
	return buffer.ClockTime(buffer.ScaleInt(dist*uint64(rate.Den), uint64(buffer.Second),
		uint64(rate.Num)*uint64(frameSize)))
}

// push splits octet streams into their tensors, adds flexible headers when
// downstream expects them and hands the buffer to the peer.
func (c *Converter) push(buf *buffer.Buffer) error {
	out := buf
	infos := c.config.Tensors

	if c.media == tensor.MediaOctet && (len(infos) > 1 || buf.NMemory() > 1) {
		split, err := splitTensors(buf, infos)
		if err != nil {
			return err
		}
		out = split
	}

	if !c.noHeader && c.srcIsFlexible() {
		withHeaders, err := appendHeaders(out, infos, headerMedia(c.media))
		if err != nil {
			return err
		}
		out = withHeaders
	}

	if !c.Properties().Silent {
		c.logger.Debug("push", "buffer", out.String())
	}
	if err := c.peer.Push(out); err != nil {
		return newError(KindFlow, err, "downstream refused buffer")
	}
	c.metrics.bufferOut(out.Size())
	return nil
}
