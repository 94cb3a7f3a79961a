package converter

import (
	"fmt"
	"strings"

	"github.com/machinefabric/tensorconv-go/tensor"
)

// ModeKind selects the collaborator of a custom conversion.
type ModeKind int

const (
	ModeNone ModeKind = iota
	// ModeCustomCode calls a callback registered with RegisterCustom.
	ModeCustomCode
	// ModeCustomScript runs a converter script through a script plugin.
	ModeCustomScript
)

const (
	modeCustomCode   = "custom-code"
	modeCustomScript = "custom-script"
)

// Mode is the parsed form of the mode property, "<mode>:<option>".
type Mode struct {
	Kind   ModeKind
	Option string
}

// ParseMode parses "custom-code:<name>" or "custom-script:<path>". The
// empty string selects no custom mode.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Mode{}, nil
	}
	name, option, found := strings.Cut(s, ":")
	option = strings.TrimSpace(option)
	if !found || option == "" {
		return Mode{}, fmt.Errorf("mode %q needs an option, e.g. custom-code:<name>", s)
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case modeCustomCode:
		return Mode{Kind: ModeCustomCode, Option: option}, nil
	case modeCustomScript:
		return Mode{Kind: ModeCustomScript, Option: option}, nil
	}
	return Mode{}, fmt.Errorf("unknown mode %q", name)
}

func (m Mode) String() string {
	switch m.Kind {
	case ModeCustomCode:
		return modeCustomCode + ":" + m.Option
	case ModeCustomScript:
		return modeCustomScript + ":" + m.Option
	default:
		return ""
	}
}

// Properties is a snapshot of the user configuration.
type Properties struct {
	// InputDim and InputType are the raw property strings; Infos is their
	// parsed form.
	InputDim        string
	InputType       string
	Infos           []tensor.Info
	FramesPerTensor int
	SetTimestamp    bool
	Silent          bool
	Mode            Mode
}

// DefaultProperties returns the configuration of a new converter.
func DefaultProperties() Properties {
	return Properties{
		FramesPerTensor: 1,
		SetTimestamp:    true,
		Silent:          true,
	}
}

// HasInfos reports whether the declared tensors form a complete static list.
func (p Properties) HasInfos() bool {
	return tensor.ValidInfos(p.Infos)
}

func (p Properties) clone() Properties {
	p.Infos = append([]tensor.Info(nil), p.Infos...)
	return p
}

// Properties returns a snapshot of the current configuration.
func (c *Converter) Properties() Properties {
	c.propsMu.RLock()
	defer c.propsMu.RUnlock()
	return c.props.clone()
}

// SetInputDim sets the declared dimensions, e.g. "3:640:480:1,10".
func (c *Converter) SetInputDim(dims string) error {
	c.propsMu.Lock()
	defer c.propsMu.Unlock()
	infos, err := tensor.ParseInfos(dims, c.props.InputType)
	if err != nil {
		return fmt.Errorf("input-dim: %w", err)
	}
	c.props.InputDim = dims
	c.props.Infos = infos
	return nil
}

// SetInputType sets the declared element types, e.g. "uint8,float32".
func (c *Converter) SetInputType(types string) error {
	c.propsMu.Lock()
	defer c.propsMu.Unlock()
	infos, err := tensor.ParseInfos(c.props.InputDim, types)
	if err != nil {
		return fmt.Errorf("input-type: %w", err)
	}
	c.props.InputType = types
	c.props.Infos = infos
	return nil
}

// SetFramesPerTensor sets how many input frames go into one output tensor.
func (c *Converter) SetFramesPerTensor(n int) error {
	if n < 1 {
		return fmt.Errorf("frames-per-tensor must be at least 1, got %d", n)
	}
	c.propsMu.Lock()
	c.props.FramesPerTensor = n
	c.propsMu.Unlock()
	return nil
}

// SetTimestamp toggles assigning timestamps to buffers without one.
func (c *Converter) SetTimestamp(enabled bool) {
	c.propsMu.Lock()
	c.props.SetTimestamp = enabled
	c.propsMu.Unlock()
}

// SetSilent toggles per-buffer debug logging.
func (c *Converter) SetSilent(silent bool) {
	c.propsMu.Lock()
	c.props.Silent = silent
	c.propsMu.Unlock()
}

// SetMode sets the custom conversion mode. It takes effect on the next
// negotiation.
func (c *Converter) SetMode(mode string) error {
	m, err := ParseMode(mode)
	if err != nil {
		return err
	}
	c.propsMu.Lock()
	c.props.Mode = m
	c.propsMu.Unlock()
	return nil
}

// SubPlugins lists the registered external converters.
func (c *Converter) SubPlugins() []string {
	return c.registry.Names()
}
