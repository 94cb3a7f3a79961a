package script

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/machinefabric/tensorconv-go/buffer"
	"github.com/machinefabric/tensorconv-go/caps"
	"github.com/machinefabric/tensorconv-go/plugin"
	"github.com/machinefabric/tensorconv-go/tensor"
)

// Framework names registered by Register.
const (
	FrameworkPython = "python3"
	FrameworkExec   = "exec"
)

// FrameworkFor returns the framework that runs the script at path.
func FrameworkFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".py") {
		return FrameworkPython
	}
	return FrameworkExec
}

// DefaultHandshakeTimeout bounds the HELLO exchange with a new script.
const DefaultHandshakeTimeout = 10 * time.Second

// Plugin runs converter scripts under one interpreter. Each Open spawns a
// process; the returned handle is the Host connected to it.
type Plugin struct {
	name             string
	interpreter      string
	logger           *slog.Logger
	ctx              context.Context
	handshakeTimeout time.Duration
}

// Option configures a Plugin
type Option func(*Plugin)

// WithInterpreter sets the interpreter command. Empty runs scripts directly.
func WithInterpreter(interpreter string) Option {
	return func(p *Plugin) { p.interpreter = interpreter }
}

// WithLogger sets the logger that receives script stderr and LOG frames
func WithLogger(logger *slog.Logger) Option {
	return func(p *Plugin) { p.logger = logger }
}

// WithContext bounds the lifetime of spawned processes
func WithContext(ctx context.Context) Option {
	return func(p *Plugin) { p.ctx = ctx }
}

// WithHandshakeTimeout sets how long Open waits for the script's HELLO
func WithHandshakeTimeout(d time.Duration) Option {
	return func(p *Plugin) { p.handshakeTimeout = d }
}

// NewPlugin creates a script plugin registered under name. The interpreter
// defaults to name.
func NewPlugin(name string, opts ...Option) *Plugin {
	p := &Plugin{
		name:             name,
		interpreter:      name,
		logger:           slog.Default(),
		ctx:              context.Background(),
		handshakeTimeout: DefaultHandshakeTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds the python3 and exec script plugins to r.
func Register(r *plugin.Registry, opts ...Option) error {
	if err := r.Register(NewPlugin(FrameworkPython, opts...)); err != nil {
		return err
	}
	execOpts := append(append([]Option(nil), opts...), WithInterpreter(""))
	return r.Register(NewPlugin(FrameworkExec, execOpts...))
}

// Name returns the framework name the plugin is registered under.
func (p *Plugin) Name() string { return p.name }

// QueryCaps returns no caps: script plugins are selected by framework name.
func (p *Plugin) QueryCaps() caps.Set { return caps.Set{} }

// Open spawns the script at path and performs the handshake. A script that
// does not answer HELLO within the handshake timeout is killed.
func (p *Plugin) Open(path string) (plugin.Handle, error) {
	if path == "" {
		return nil, fmt.Errorf("%s: no script given", p.name)
	}
	proc, err := Spawn(p.ctx, p.logger, p.interpreter, path)
	if err != nil {
		return nil, err
	}
	host, err := NewHostTimeout(proc.Stdout(), proc.Stdin(), proc, p.logger.With("script", path),
		p.handshakeTimeout, proc.Abort)
	if err != nil {
		_ = proc.Close()
		return nil, err
	}
	p.logger.Debug("script converter started", "script", path, "pid", proc.Pid(), "name", host.Name())
	return host, nil
}

// Close stops the process behind h.
func (p *Plugin) Close(h plugin.Handle) error {
	host, err := asHost(h)
	if err != nil {
		return err
	}
	return host.Close()
}

// Describe asks the script behind h for the output config of c.
func (p *Plugin) Describe(c *caps.Caps, h plugin.Handle) (tensor.Config, error) {
	host, err := asHost(h)
	if err != nil {
		return tensor.Config{}, err
	}
	return host.Describe(c)
}

// Convert hands buf to the script behind h.
func (p *Plugin) Convert(buf *buffer.Buffer, h plugin.Handle) (*buffer.Buffer, tensor.Config, error) {
	host, err := asHost(h)
	if err != nil {
		return nil, tensor.Config{}, err
	}
	return host.Convert(buf)
}

func asHost(h plugin.Handle) (*Host, error) {
	host, ok := h.(*Host)
	if !ok || host == nil {
		return nil, &HostError{Type: HostErrorTypeClosed}
	}
	return host, nil
}
