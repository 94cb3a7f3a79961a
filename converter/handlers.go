package converter

import (
	"strings"

	"github.com/machinefabric/tensorconv-go/buffer"
	"github.com/machinefabric/tensorconv-go/caps"
	"github.com/machinefabric/tensorconv-go/media"
	"github.com/machinefabric/tensorconv-go/tensor"
)

// mediaHandler is the per media kind part of negotiation and chain. One
// handler is selected per successful negotiation.
type mediaHandler interface {
	mediaType() tensor.MediaType
	// framesDim is the dimension index receiving frames-per-tensor, or -1.
	framesDim() int
	// prepare turns an input buffer into tensor data and reports how many
	// frames of which size it holds.
	prepare(c *Converter, buf *buffer.Buffer) (out *buffer.Buffer, framesIn, frameSize int, err error)
	// release frees resources not shared with keep, which may be nil.
	release(keep mediaHandler) error
}

type noRelease struct{}

func (noRelease) release(mediaHandler) error { return nil }

func rateOf(in *caps.Caps) tensor.Fraction {
	if r, ok := in.Fraction(caps.FieldFramerate); ok && r.Valid() {
		return r
	}
	return tensor.UnknownRate
}

func staticConfig(rate tensor.Fraction, infos ...tensor.Info) tensor.Config {
	return tensor.Config{Format: tensor.Static, Tensors: infos, Rate: rate}
}

// video

type videoHandler struct {
	noRelease
	info  media.VideoInfo
	depad bool
}

func parseVideo(c *Converter, in *caps.Caps) (mediaHandler, tensor.Config, error) {
	vi, err := media.ParseVideoInfo(in)
	if err != nil {
		return nil, tensor.Config{}, newError(KindCapabilityParse, err, "invalid video caps")
	}
	if !vi.Format.Convertible {
		return nil, tensor.Config{}, newError(KindCapabilityParse, nil,
			"video format %s is not supported, use one of %s",
			vi.Format.Name, strings.Join(media.VideoFormatNames(), ", "))
	}
	if vi.Views > 1 {
		c.logger.Warn("only the first view is converted", "views", vi.Views)
	}

	h := &videoHandler{info: vi, depad: vi.NeedsRowPadding()}
	if h.depad {
		if vi.Format.Planar {
			return nil, tensor.Config{}, newError(KindCapabilityParse, nil,
				"row padding removal is not supported for %s, use a width that is a multiple of 4 (got %d)",
				vi.Format.Name, vi.Width)
		}
		c.logger.Warn("video rows are padded and will be copied per frame; use a width that is a multiple of 4",
			"width", vi.Width, "format", vi.Format.Name)
	}

	info := tensor.Info{Type: vi.Format.Type, Dimension: vi.Dimension()}
	return h, staticConfig(vi.Rate, info), nil
}

func (h *videoHandler) mediaType() tensor.MediaType { return tensor.MediaVideo }
func (h *videoHandler) framesDim() int              { return 3 }

func (h *videoHandler) prepare(_ *Converter, buf *buffer.Buffer) (*buffer.Buffer, int, int, error) {
	frameSize := h.info.TensorSize()
	padded := h.info.Size()
	if buf.Size()/padded != 1 {
		return nil, 0, 0, newError(KindFlow, nil,
			"video buffer of %d bytes does not hold exactly one %d byte frame", buf.Size(), padded)
	}
	if !h.depad {
		return buf, 1, frameSize, nil
	}
	out, err := depad(buf, h.info.PackedRowSize(), h.info.Stride(), h.info.Height)
	if err != nil {
		return nil, 0, 0, err
	}
	return out, 1, frameSize, nil
}

// audio

type audioHandler struct {
	noRelease
	info media.AudioInfo
}

func parseAudio(in *caps.Caps) (mediaHandler, tensor.Config, error) {
	ai, err := media.ParseAudioInfo(in)
	if err != nil {
		return nil, tensor.Config{}, newError(KindCapabilityParse, err, "invalid audio caps")
	}
	info := tensor.Info{Type: ai.Format.Type, Dimension: ai.Dimension()}
	return &audioHandler{info: ai}, staticConfig(tensor.Fraction{Num: ai.Rate, Den: 1}, info), nil
}

func (h *audioHandler) mediaType() tensor.MediaType { return tensor.MediaAudio }
func (h *audioHandler) framesDim() int              { return 1 }

func (h *audioHandler) prepare(_ *Converter, buf *buffer.Buffer) (*buffer.Buffer, int, int, error) {
	bpf := h.info.BytesPerFrame()
	return buf, buf.Size() / bpf, bpf, nil
}

// text

type textHandler struct {
	noRelease
	size int
}

func parseText(in *caps.Caps, props Properties) (mediaHandler, tensor.Config, error) {
	if len(props.Infos) == 0 || props.Infos[0].Dimension[0] == 0 {
		return nil, tensor.Config{}, newError(KindConfigurationRequired, nil,
			"text streams need input-dim, e.g. input-dim=30 for up to 30 bytes per frame")
	}
	if f, ok := in.Field("format"); ok && !strings.EqualFold(f, "utf8") {
		return nil, tensor.Config{}, newError(KindCapabilityParse, nil,
			"text format %q is not supported, only utf8", f)
	}
	size := props.Infos[0].Dimension[0]
	info := tensor.NewInfo(tensor.Uint8, size, 1)
	return &textHandler{size: int(size)}, staticConfig(rateOf(in), info), nil
}

func (h *textHandler) mediaType() tensor.MediaType { return tensor.MediaText }
func (h *textHandler) framesDim() int              { return 1 }

func (h *textHandler) prepare(_ *Converter, buf *buffer.Buffer) (*buffer.Buffer, int, int, error) {
	if buf.Size() == h.size {
		return buf, 1, h.size, nil
	}
	return resize(buf, h.size), 1, h.size, nil
}

// octet

type octetHandler struct {
	noRelease
	frameSize int
}

func parseOctet(c *Converter, in *caps.Caps, props Properties) (mediaHandler, tensor.Config, error) {
	infos := props.Infos
	flexible := false
	if !props.HasInfos() {
		peer, ok, _ := c.peerConfig()
		configured := false
		if ok {
			flexible = peer.IsFlexible()
			configured = !flexible && tensor.ValidInfos(peer.Tensors)
		}
		if !flexible && !configured {
			return nil, tensor.Config{}, newError(KindConfigurationRequired, nil,
				"set input-dim and input-type to convert a byte stream into static tensors, "+
					"e.g. input-dim=30 input-type=uint8, or link to flexible tensors")
		}
		if configured {
			infos = peer.Tensors
		}
	}

	if props.FramesPerTensor > 1 {
		if len(infos) > 1 && !flexible {
			return nil, tensor.Config{}, newError(KindUnsupportedCombination, nil,
				"cannot aggregate %d frames per tensor into %d tensors from a byte stream",
				props.FramesPerTensor, len(infos))
		}
		if flexible {
			return nil, tensor.Config{}, newError(KindUnsupportedCombination, nil,
				"cannot aggregate %d frames per tensor into flexible tensors", props.FramesPerTensor)
		}
	}

	rate := rateOf(in)
	if flexible {
		return &octetHandler{}, tensor.FlexibleConfig(rate), nil
	}
	cfg := staticConfig(rate, append([]tensor.Info(nil), infos...)...)
	return &octetHandler{frameSize: cfg.TotalSize()}, cfg, nil
}

func (h *octetHandler) mediaType() tensor.MediaType { return tensor.MediaOctet }
func (h *octetHandler) framesDim() int              { return -1 }

func (h *octetHandler) prepare(c *Converter, buf *buffer.Buffer) (*buffer.Buffer, int, int, error) {
	size := buf.Size()
	if c.config.IsFlexible() {
		cfg := c.config.Clone()
		cfg.Tensors[0].Dimension[0] = uint32(size)
		c.config = cfg
		return buf, 1, size, nil
	}
	if size%h.frameSize != 0 {
		return nil, 0, 0, newError(KindFlow, nil,
			"byte buffer of %d bytes is not a multiple of the %d byte frame", size, h.frameSize)
	}
	return buf, size / h.frameSize, h.frameSize, nil
}

// flexible tensors

type tensorHandler struct {
	noRelease
}

func parseTensor(in *caps.Caps, props Properties) (mediaHandler, tensor.Config, error) {
	if props.FramesPerTensor > 1 {
		return nil, tensor.Config{}, newError(KindUnsupportedCombination, nil,
			"frames-per-tensor must be 1 to convert flexible tensors, got %d", props.FramesPerTensor)
	}
	rate := rateOf(in)
	if props.HasInfos() {
		return &tensorHandler{}, staticConfig(rate, append([]tensor.Info(nil), props.Infos...)...), nil
	}
	// replaced by the first buffer
	return &tensorHandler{}, staticConfig(rate, tensor.NewInfo(tensor.Uint8, 1)), nil
}

func (h *tensorHandler) mediaType() tensor.MediaType { return tensor.MediaTensor }
func (h *tensorHandler) framesDim() int              { return -1 }

func (h *tensorHandler) prepare(c *Converter, buf *buffer.Buffer) (*buffer.Buffer, int, int, error) {
	out, infos, err := demux(buf)
	if err != nil {
		return nil, 0, 0, err
	}
	cfg := staticConfig(c.config.Rate, infos...)
	if !c.config.Equal(cfg) {
		if c.Properties().HasInfos() {
			return nil, 0, 0, newError(KindConfigurationConflict, nil,
				"incoming tensors %s do not match the declared %s", cfg, c.config)
		}
		if err := c.reconfigure(cfg); err != nil {
			return nil, 0, 0, err
		}
	}
	return out, 1, out.Size(), nil
}
