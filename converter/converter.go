// Package converter implements the tensor conversion element. It turns
// video, audio, text, raw byte and flexible tensor streams, or any stream a
// registered plugin understands, into tensor buffers for a downstream peer.
//
// A Converter is driven by its host: SetCaps for caps events, HandleSegment
// for segments, Chain for buffers and FlushStop, Start and Stop for stream
// resets. The data path calls must not overlap; property setters may be
// called from any goroutine.
package converter

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/machinefabric/tensorconv-go/adapter"
	"github.com/machinefabric/tensorconv-go/buffer"
	"github.com/machinefabric/tensorconv-go/caps"
	"github.com/machinefabric/tensorconv-go/plugin"
	"github.com/machinefabric/tensorconv-go/tensor"
)

// Peer is the downstream neighbour.
type Peer interface {
	// QueryCaps returns the caps the peer accepts. nil means anything.
	QueryCaps() caps.Set
	// SetCaps announces the caps of the following buffers.
	SetCaps(c *caps.Caps) error
	Push(buf *buffer.Buffer) error
	PushSegment(seg Segment) error
}

// Clock returns the current running time of the pipeline.
type Clock func() buffer.ClockTime

// SystemClock returns a Clock counting from base.
func SystemClock(base time.Time) Clock {
	return func() buffer.ClockTime {
		d := time.Since(base)
		if d < 0 {
			return 0
		}
		return buffer.ClockTime(d)
	}
}

// State is the negotiation state.
type State int

const (
	StateUnconfigured State = iota
	StateParsing
	StateConfigured
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateParsing:
		return "parsing"
	case StateConfigured:
		return "configured"
	case StateTornDown:
		return "torn_down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Option configures a Converter
type Option func(*Converter)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) { c.logger = logger }
}

// WithRegistry sets the registry external converters and custom callbacks
// are looked up in. The default is plugin.Default().
func WithRegistry(r *plugin.Registry) Option {
	return func(c *Converter) { c.registry = r }
}

// WithClock sets the clock used to timestamp buffers when the frame rate is
// unknown. Without a clock the segment start is used.
func WithClock(clock Clock) Option {
	return func(c *Converter) { c.clock = clock }
}

// WithMetrics enables Prometheus metrics
func WithMetrics(m *Metrics) Option {
	return func(c *Converter) { c.metrics = m }
}

// WithProperties sets the initial properties
func WithProperties(p Properties) Option {
	return func(c *Converter) { c.props = p.clone() }
}

// Converter is the tensor conversion element.
type Converter struct {
	peer     Peer
	logger   *slog.Logger
	registry *plugin.Registry
	clock    Clock
	metrics  *Metrics

	propsMu sync.RWMutex
	props   Properties

	capsMu   sync.RWMutex
	sinkCaps *caps.Caps
	srcCaps  *caps.Caps

	// data path state
	state        State
	media        tensor.MediaType
	handler      mediaHandler
	config       tensor.Config
	adapters     *adapter.Table
	segment      Segment
	haveSegment  bool
	needSegment  bool
	oldTimestamp buffer.ClockTime
	// set when a custom converter already produced flexible records
	noHeader bool
}

// New creates a converter pushing to peer.
func New(peer Peer, opts ...Option) *Converter {
	c := &Converter{
		peer:     peer,
		logger:   slog.Default(),
		registry: plugin.Default(),
		props:    DefaultProperties(),
		media:    tensor.MediaInvalid,
		adapters: adapter.NewTable(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "tensor_converter")
	c.reset()
	return c
}

// State returns the negotiation state.
func (c *Converter) State() State {
	return c.state
}

// MediaType returns the media kind of the negotiated input.
func (c *Converter) MediaType() tensor.MediaType {
	return c.media
}

// Config returns a copy of the current tensor config.
func (c *Converter) Config() tensor.Config {
	return c.config.Clone()
}

// SrcCaps returns the caps last published downstream, or nil.
func (c *Converter) SrcCaps() *caps.Caps {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.srcCaps
}

// SinkCaps returns the accepted input caps, or nil.
func (c *Converter) SinkCaps() *caps.Caps {
	c.capsMu.RLock()
	defer c.capsMu.RUnlock()
	return c.sinkCaps
}

// SetCaps handles a caps event. On error the previous configuration stays
// in place.
func (c *Converter) SetCaps(in *caps.Caps) error {
	if c.state == StateTornDown {
		return newError(KindNotNegotiated, errClosed, "caps event after close")
	}
	props := c.Properties()
	if !props.Silent {
		c.logger.Debug("caps event", "caps", in)
	}

	prev := c.state
	c.state = StateParsing
	res, err := c.negotiate(in, props)
	if err != nil {
		c.state = prev
		c.metrics.negotiation(caps.MediaTypeOf(in).String(), "failure")
		c.metrics.recordError(err)
		c.logger.Error("negotiation failed", "caps", in, "error", err)
		return err
	}

	if c.handler != nil {
		if err := c.handler.release(res.handler); err != nil {
			c.logger.Warn("failed to release previous converter", "error", err)
		}
	}
	c.handler = res.handler
	c.media = res.handler.mediaType()
	c.config = res.config
	c.noHeader = false
	c.state = StateConfigured

	c.capsMu.Lock()
	c.sinkCaps = in
	c.capsMu.Unlock()

	c.metrics.negotiation(c.media.String(), "success")
	c.logger.Info("negotiated", "media", c.media, "config", c.config.String())
	return c.updateCaps()
}

type negotiation struct {
	handler mediaHandler
	config  tensor.Config
}

func (c *Converter) negotiate(in *caps.Caps, props Properties) (negotiation, error) {
	if in == nil || !in.IsFixed() {
		return negotiation{}, newError(KindCapabilityParse, nil, "caps are not fixed: %s", in)
	}

	media := caps.MediaTypeOf(in)
	if props.Mode.Kind != ModeNone {
		media = tensor.MediaAny
	}

	var (
		h   mediaHandler
		cfg tensor.Config
		err error
	)
	switch media {
	case tensor.MediaVideo:
		h, cfg, err = parseVideo(c, in)
	case tensor.MediaAudio:
		h, cfg, err = parseAudio(in)
	case tensor.MediaText:
		h, cfg, err = parseText(in, props)
	case tensor.MediaOctet:
		h, cfg, err = parseOctet(c, in, props)
	case tensor.MediaTensor:
		h, cfg, err = parseTensor(in, props)
	default:
		h, cfg, err = parseCustom(c, in, props)
	}
	if err != nil {
		return negotiation{}, err
	}

	fail := func(err error) (negotiation, error) {
		if cerr := h.release(c.handler); cerr != nil {
			c.logger.Warn("failed to release converter", "error", cerr)
		}
		return negotiation{}, err
	}

	if slot := h.framesDim(); slot >= 0 {
		cfg.Tensors[0].Dimension[slot] = uint32(props.FramesPerTensor)
	}
	if err := cfg.Validate(); err != nil {
		return fail(newError(KindConfigurationRequired, err, "incomplete tensor config %s from %s", cfg, in))
	}
	if props.HasInfos() && !tensor.InfosEqual(props.Infos, cfg.Tensors) {
		return fail(newError(KindConfigurationConflict, nil,
			"declared tensors %s:%s do not match %s from %s",
			props.InputDim, props.InputType, cfg, in))
	}
	return negotiation{handler: h, config: cfg}, nil
}

// peerConfig reads the tensor config of the first caps downstream accepts.
// fixed reports whether the peer accepts exactly one fixed caps.
func (c *Converter) peerConfig() (cfg tensor.Config, ok, fixed bool) {
	set := c.peer.QueryCaps()
	if len(set) == 0 || set[0].MediaType() != caps.MediaTensors {
		return tensor.Config{}, false, false
	}
	cfg, err := caps.ToConfig(set[0])
	if err != nil {
		return tensor.Config{}, false, false
	}
	return cfg, true, set.IsFixed()
}

// srcCapsFor builds the output caps of cfg. Static configs are published
// as flexible caps when the peer accepts nothing else.
func (c *Converter) srcCapsFor(cfg tensor.Config) *caps.Caps {
	if cfg.IsFlexible() {
		return caps.FromConfig(cfg)
	}
	if caps.AcceptsOnlyFlexible(c.peer.QueryCaps()) {
		return caps.FromConfig(tensor.FlexibleConfig(cfg.Rate))
	}
	return caps.FromConfig(cfg)
}

// updateCaps publishes the caps of the current config unless they equal the
// published ones.
func (c *Converter) updateCaps() error {
	out := c.srcCapsFor(c.config)

	c.capsMu.RLock()
	curr := c.srcCaps
	c.capsMu.RUnlock()
	if curr != nil && curr.Equal(out) {
		return nil
	}

	if err := c.peer.SetCaps(out); err != nil {
		e := newError(KindNotNegotiated, err, "downstream refused %s", out)
		c.metrics.recordError(e)
		c.logger.Error("failed to set output caps", "caps", out, "error", err)
		return e
	}
	c.capsMu.Lock()
	c.srcCaps = out
	c.capsMu.Unlock()
	c.metrics.capsUpdate()
	if !c.Properties().Silent {
		c.logger.Debug("set output caps", "caps", out)
	}
	return nil
}

// reconfigure replaces the config in the middle of a stream and
// republishes the output caps.
func (c *Converter) reconfigure(cfg tensor.Config) error {
	c.state = StateParsing
	c.config = cfg
	c.state = StateConfigured
	c.logger.Info("tensor config changed", "config", cfg.String())
	return c.updateCaps()
}

// srcIsFlexible reports whether the published caps are flexible.
func (c *Converter) srcIsFlexible() bool {
	return caps.IsFlexible(c.SrcCaps())
}

func (c *Converter) reset() {
	c.adapters.ClearAll()
	c.haveSegment = false
	c.needSegment = false
	c.segment = NewTimeSegment()
	c.oldTimestamp = buffer.ClockTimeNone
}

// FlushStop drops buffered partial frames and restarts timestamping.
func (c *Converter) FlushStop() {
	c.reset()
}

// Start prepares a new stream.
func (c *Converter) Start() {
	c.reset()
}

// Stop ends the stream. Buffered partial frames are dropped.
func (c *Converter) Stop() {
	c.reset()
}

// Close releases the custom converter and the adapters. The converter
// cannot be used afterwards.
func (c *Converter) Close() error {
	if c.state == StateTornDown {
		return nil
	}
	c.state = StateTornDown
	c.adapters.Close()
	var err error
	if c.handler != nil {
		err = c.handler.release(nil)
		c.handler = nil
	}
	return err
}
