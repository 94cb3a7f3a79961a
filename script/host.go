package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/machinefabric/tensorconv-go/buffer"
	"github.com/machinefabric/tensorconv-go/caps"
	"github.com/machinefabric/tensorconv-go/tensor"
)

// HostError represents errors from the converter host
type HostError struct {
	Type    HostErrorType
	Message string
	Code    string
}

type HostErrorType int

const (
	HostErrorTypeCbor HostErrorType = iota
	HostErrorTypeIo
	HostErrorTypeConverterError
	HostErrorTypeUnexpectedFrame
	HostErrorTypeProcessExited
	HostErrorTypeHandshake
	HostErrorTypeClosed
)

func (e *HostError) Error() string {
	switch e.Type {
	case HostErrorTypeCbor:
		return fmt.Sprintf("CBOR error: %s", e.Message)
	case HostErrorTypeIo:
		return fmt.Sprintf("I/O error: %s", e.Message)
	case HostErrorTypeConverterError:
		return fmt.Sprintf("Converter returned error: [%s] %s", e.Code, e.Message)
	case HostErrorTypeUnexpectedFrame:
		return fmt.Sprintf("Unexpected frame: %s", e.Message)
	case HostErrorTypeProcessExited:
		return "Converter process exited unexpectedly"
	case HostErrorTypeHandshake:
		return fmt.Sprintf("Handshake failed: %s", e.Message)
	case HostErrorTypeClosed:
		return "Host is closed"
	default:
		return fmt.Sprintf("Unknown error: %s", e.Message)
	}
}

// Host talks to one converter process. Requests are serialised: each call
// writes a REQ and reads frames until the matching RES or ERR. LOG frames
// seen meanwhile go to the host logger.
type Host struct {
	mu     sync.Mutex
	reader *FrameReader
	writer *FrameWriter
	closer io.Closer
	name   string
	logger *slog.Logger
	closed bool
}

// NewHost performs the handshake over r and w. closer, if not nil, is
// closed by Close.
func NewHost(r io.Reader, w io.Writer, closer io.Closer, logger *slog.Logger) (*Host, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reader := NewFrameReader(r)
	writer := NewFrameWriter(w)
	name, limits, err := HandshakeInitiate(reader, writer)
	if err != nil {
		return nil, &HostError{Type: HostErrorTypeHandshake, Message: err.Error()}
	}
	reader.SetLimits(limits)
	writer.SetLimits(limits)
	return &Host{
		reader: reader,
		writer: writer,
		closer: closer,
		name:   name,
		logger: logger.With("converter", name),
	}, nil
}

// NewHostTimeout is NewHost with the handshake bounded by timeout. When the
// converter does not answer in time, abort is called to unblock the
// transport and a HostErrorTypeHandshake error is returned.
func NewHostTimeout(r io.Reader, w io.Writer, closer io.Closer, logger *slog.Logger,
	timeout time.Duration, abort func()) (*Host, error) {
	type result struct {
		host *Host
		err  error
	}
	done := make(chan result, 1)
	go func() {
		host, err := NewHost(r, w, closer, logger)
		done <- result{host, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-done:
		return res.host, res.err
	case <-timer.C:
		abort()
		if res := <-done; res.err == nil {
			_ = res.host.Close()
		}
		return nil, &HostError{Type: HostErrorTypeHandshake, Message: fmt.Sprintf("no HELLO answer within %s", timeout)}
	}
}

// Name returns the name announced by the converter process
func (h *Host) Name() string {
	return h.name
}

func (h *Host) call(op string, payload []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, &HostError{Type: HostErrorTypeClosed}
	}

	id := uuid.New()
	if err := h.writer.WriteFrame(NewReq(id, op, payload)); err != nil {
		return nil, h.ioError(err)
	}

	for {
		frame, err := h.reader.ReadFrame()
		if err != nil {
			return nil, h.ioError(err)
		}
		if frame.ID != id {
			return nil, &HostError{
				Type:    HostErrorTypeUnexpectedFrame,
				Message: fmt.Sprintf("%s for unknown request %s", frame.FrameType, frame.ID),
			}
		}
		switch frame.FrameType {
		case FrameTypeRes:
			return frame.Payload, nil
		case FrameTypeErr:
			return nil, &HostError{Type: HostErrorTypeConverterError, Code: frame.Code, Message: frame.Message}
		case FrameTypeLog:
			h.logger.Log(context.Background(), parseLevel(frame.Level), frame.Message, "op", op)
		default:
			return nil, &HostError{Type: HostErrorTypeUnexpectedFrame, Message: frame.FrameType.String()}
		}
	}
}

func (h *Host) ioError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
		return &HostError{Type: HostErrorTypeProcessExited}
	}
	return &HostError{Type: HostErrorTypeIo, Message: err.Error()}
}

// Describe asks the converter for the output config of fixed input caps.
func (h *Host) Describe(c *caps.Caps) (tensor.Config, error) {
	req, err := marshalDescribe(c)
	if err != nil {
		return tensor.Config{}, &HostError{Type: HostErrorTypeCbor, Message: err.Error()}
	}
	res, err := h.call(OpDescribe, req)
	if err != nil {
		return tensor.Config{}, err
	}
	var w wireConfig
	if err := cbor.Unmarshal(res, &w); err != nil {
		return tensor.Config{}, &HostError{Type: HostErrorTypeCbor, Message: err.Error()}
	}
	return decodeConfig(w)
}

// Convert sends one buffer and returns the converted buffer with its config.
// Offset and stream key of buf are carried over to the result.
func (h *Host) Convert(buf *buffer.Buffer) (*buffer.Buffer, tensor.Config, error) {
	req, err := cbor.Marshal(encodeBuffer(buf))
	if err != nil {
		return nil, tensor.Config{}, &HostError{Type: HostErrorTypeCbor, Message: err.Error()}
	}
	res, err := h.call(OpConvert, req)
	if err != nil {
		return nil, tensor.Config{}, err
	}
	var w convertResponse
	if err := cbor.Unmarshal(res, &w); err != nil {
		return nil, tensor.Config{}, &HostError{Type: HostErrorTypeCbor, Message: err.Error()}
	}
	cfg, err := decodeConfig(w.Config)
	if err != nil {
		return nil, tensor.Config{}, err
	}
	out := decodeBuffer(w.Buffer)
	out.Offset = buf.Offset
	out.StreamKey = buf.StreamKey
	return out, cfg, nil
}

// Close releases the transport. Further calls fail with HostErrorTypeClosed.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if h.closer != nil {
		return h.closer.Close()
	}
	return nil
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
