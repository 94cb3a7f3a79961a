package converter

import (
	"github.com/machinefabric/tensorconv-go/buffer"
	"github.com/machinefabric/tensorconv-go/caps"
	"github.com/machinefabric/tensorconv-go/plugin"
	"github.com/machinefabric/tensorconv-go/script"
	"github.com/machinefabric/tensorconv-go/tensor"
)

// customSession is the collaborator selected for a custom or unknown media
// stream. It survives renegotiations that select the same collaborator.
type customSession struct {
	mode Mode
	// media type the external converter was looked up with
	lookup string

	fn   plugin.CustomFunc
	data any

	conv   plugin.Converter
	opener plugin.Opener
	handle plugin.Handle
}

func (s *customSession) name() string {
	if s.conv != nil {
		return s.conv.Name()
	}
	return s.mode.String()
}

func (s *customSession) convert(buf *buffer.Buffer) (*buffer.Buffer, tensor.Config, error) {
	if s.fn != nil {
		return s.fn(buf, s.data)
	}
	return s.conv.Convert(buf, s.handle)
}

func (s *customSession) close() error {
	if s.opener == nil {
		return nil
	}
	err := s.opener.Close(s.handle)
	s.opener, s.handle = nil, nil
	return err
}

type customHandler struct {
	sess *customSession
}

func (h *customHandler) mediaType() tensor.MediaType { return tensor.MediaAny }
func (h *customHandler) framesDim() int              { return -1 }

func (h *customHandler) release(keep mediaHandler) error {
	if k, ok := keep.(*customHandler); ok && k.sess == h.sess {
		return nil
	}
	return h.sess.close()
}

func (h *customHandler) prepare(c *Converter, buf *buffer.Buffer) (*buffer.Buffer, int, int, error) {
	out, cfg, err := h.sess.convert(buf)
	if err != nil {
		return nil, 0, 0, newError(KindFlow, err, "%s failed to convert the buffer", h.sess.name())
	}
	if out == nil {
		return nil, 0, 0, newError(KindFlow, nil, "%s returned no buffer", h.sess.name())
	}
	if err := cfg.Validate(); err != nil {
		return nil, 0, 0, newError(KindFlow, err, "%s returned an invalid tensor config", h.sess.name())
	}
	if !out.PTS.IsValid() && !out.DTS.IsValid() && !out.Duration.IsValid() {
		out.CopyMetadata(buf)
	}
	out.StreamKey = buf.StreamKey

	c.noHeader = cfg.IsFlexible()
	if !c.config.Equal(cfg) {
		if err := c.reconfigure(cfg); err != nil {
			return nil, 0, 0, err
		}
	}
	return out, 1, out.Size(), nil
}

// parseCustom selects the collaborator of a stream handled by a custom mode
// or by a registered external converter, and derives the output config.
func parseCustom(c *Converter, in *caps.Caps, props Properties) (mediaHandler, tensor.Config, error) {
	peer, peerOK, fixed := c.peerConfig()
	rate := rateOf(in)

	if props.Mode.Kind == ModeCustomCode {
		fn, data, err := c.registry.FindCustom(props.Mode.Option)
		if err != nil {
			return nil, tensor.Config{}, newError(KindPluginNotFound, err,
				"no custom converter %q is registered", props.Mode.Option)
		}
		sess := &customSession{mode: props.Mode, fn: fn, data: data}
		if peerOK && fixed {
			return &customHandler{sess: sess}, peer, nil
		}
		// replaced by the first converted buffer
		return &customHandler{sess: sess}, staticConfig(rate, tensor.NewInfo(tensor.Uint8, 1, 1, 1, 1)), nil
	}

	lookup := in.MediaType()
	if props.Mode.Kind == ModeCustomScript {
		lookup = script.FrameworkFor(props.Mode.Option)
	}
	conv, err := c.registry.Lookup(lookup)
	if err != nil {
		return nil, tensor.Config{}, newError(KindPluginNotFound, err,
			"no converter is registered for %s", lookup)
	}

	sess, reused := c.reusableSession(props.Mode, lookup, conv)
	if !reused {
		sess = &customSession{mode: props.Mode, lookup: lookup, conv: conv}
		if props.Mode.Kind == ModeCustomScript {
			opener, ok := conv.(plugin.Opener)
			if !ok {
				return nil, tensor.Config{}, newError(KindPluginOpenFailure, nil,
					"converter %s cannot load scripts", conv.Name())
			}
			handle, err := opener.Open(props.Mode.Option)
			if err != nil {
				return nil, tensor.Config{}, newError(KindPluginOpenFailure, err,
					"converter %s failed to load %s", conv.Name(), props.Mode.Option)
			}
			sess.opener, sess.handle = opener, handle
		}
	}
	h := &customHandler{sess: sess}

	if peerOK && fixed {
		return h, peer, nil
	}
	cfg, err := conv.Describe(in, sess.handle)
	if err != nil {
		if !reused {
			if cerr := sess.close(); cerr != nil {
				c.logger.Warn("failed to close converter", "converter", conv.Name(), "error", cerr)
			}
		}
		return nil, tensor.Config{}, newError(KindConfigurationRequired, err,
			"converter %s cannot describe %s", conv.Name(), in)
	}
	if !cfg.Rate.Known() && rate.Known() {
		cfg.Rate = rate
	}
	return h, cfg, nil
}

// reusableSession returns the session of the current handler when it was
// set up for the same mode and converter.
func (c *Converter) reusableSession(mode Mode, lookup string, conv plugin.Converter) (*customSession, bool) {
	h, ok := c.handler.(*customHandler)
	if !ok || h.sess.conv == nil {
		return nil, false
	}
	s := h.sess
	if s.mode != mode || s.lookup != lookup || s.conv.Name() != conv.Name() {
		return nil, false
	}
	if mode.Kind == ModeCustomScript && s.opener == nil {
		return nil, false
	}
	return s, true
}
