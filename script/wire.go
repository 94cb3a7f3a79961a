package script

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/machinefabric/tensorconv-go/buffer"
	"github.com/machinefabric/tensorconv-go/caps"
	"github.com/machinefabric/tensorconv-go/tensor"
)

type wireTensor struct {
	Name string   `cbor:"name,omitempty"`
	Type string   `cbor:"type"`
	Dims []uint32 `cbor:"dims"`
}

type wireConfig struct {
	Format  string       `cbor:"format"`
	RateN   int          `cbor:"rate_n"`
	RateD   int          `cbor:"rate_d"`
	Tensors []wireTensor `cbor:"tensors"`
}

type wireBuffer struct {
	PTS      uint64   `cbor:"pts"`
	DTS      uint64   `cbor:"dts"`
	Duration uint64   `cbor:"duration"`
	Payload  [][]byte `cbor:"payload"`
}

type describeRequest struct {
	Caps string `cbor:"caps"`
}

type convertResponse struct {
	Buffer wireBuffer `cbor:"buffer"`
	Config wireConfig `cbor:"config"`
}

func encodeConfig(cfg tensor.Config) wireConfig {
	w := wireConfig{
		Format: cfg.Format.String(),
		RateN:  cfg.Rate.Num,
		RateD:  cfg.Rate.Den,
	}
	for _, info := range cfg.Tensors {
		rank := info.Dimension.Rank()
		dims := make([]uint32, rank)
		copy(dims, info.Dimension[:rank])
		w.Tensors = append(w.Tensors, wireTensor{
			Name: info.Name,
			Type: info.Type.String(),
			Dims: dims,
		})
	}
	return w
}

func decodeConfig(w wireConfig) (tensor.Config, error) {
	format, err := tensor.ParseFormat(w.Format)
	if err != nil {
		return tensor.Config{}, err
	}
	cfg := tensor.Config{
		Format: format,
		Rate:   tensor.Fraction{Num: w.RateN, Den: w.RateD},
	}
	if len(w.Tensors) > tensor.SizeLimit {
		return tensor.Config{}, fmt.Errorf("too many tensors %d", len(w.Tensors))
	}
	for i, wt := range w.Tensors {
		t, err := tensor.ParseType(wt.Type)
		if err != nil {
			return tensor.Config{}, fmt.Errorf("tensor %d: %w", i, err)
		}
		if len(wt.Dims) > tensor.RankLimit {
			return tensor.Config{}, fmt.Errorf("tensor %d: rank %d exceeds %d", i, len(wt.Dims), tensor.RankLimit)
		}
		info := tensor.NewInfo(t, wt.Dims...)
		info.Name = wt.Name
		cfg.Tensors = append(cfg.Tensors, info)
	}
	if err := cfg.Validate(); err != nil {
		return tensor.Config{}, err
	}
	return cfg, nil
}

func encodeBuffer(buf *buffer.Buffer) wireBuffer {
	w := wireBuffer{
		PTS:      uint64(buf.PTS),
		DTS:      uint64(buf.DTS),
		Duration: uint64(buf.Duration),
	}
	for _, m := range buf.Memories() {
		w.Payload = append(w.Payload, m.Bytes())
	}
	return w
}

func decodeBuffer(w wireBuffer) *buffer.Buffer {
	mems := make([]*buffer.Memory, len(w.Payload))
	for i, p := range w.Payload {
		mems[i] = buffer.NewMemory(p)
	}
	out := buffer.NewWithMemories(mems...)
	out.PTS = buffer.ClockTime(w.PTS)
	out.DTS = buffer.ClockTime(w.DTS)
	out.Duration = buffer.ClockTime(w.Duration)
	return out
}

func marshalDescribe(c *caps.Caps) ([]byte, error) {
	return cbor.Marshal(describeRequest{Caps: c.String()})
}

func marshalConvertResponse(buf *buffer.Buffer, cfg tensor.Config) ([]byte, error) {
	return cbor.Marshal(convertResponse{Buffer: encodeBuffer(buf), Config: encodeConfig(cfg)})
}
