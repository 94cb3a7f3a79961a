package script

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/machinefabric/tensorconv-go/buffer"
	"github.com/machinefabric/tensorconv-go/caps"
	"github.com/machinefabric/tensorconv-go/tensor"
)

// Error codes sent in ERR frames
const (
	ErrCodeBadRequest  = "BAD_REQUEST"
	ErrCodeUnknownOp   = "UNKNOWN_OP"
	ErrCodeHandler     = "HANDLER_ERROR"
	ErrCodeUnsupported = "UNSUPPORTED"
)

// DescribeFunc derives the output config for fixed input caps
type DescribeFunc func(c *caps.Caps) (tensor.Config, error)

// ConvertFunc converts one buffer
type ConvertFunc func(buf *buffer.Buffer) (*buffer.Buffer, tensor.Config, error)

// Runtime is the converter process side of the protocol.
type Runtime struct {
	Name     string
	Describe DescribeFunc
	Convert  ConvertFunc

	writer  *FrameWriter
	current uuid.UUID
}

// Log sends a LOG frame attached to the request being handled. It is only
// meaningful from inside a handler.
func (rt *Runtime) Log(level, message string) error {
	if rt.writer == nil {
		return errors.New("no request in progress")
	}
	return rt.writer.WriteFrame(NewLog(rt.current, level, message))
}

// Run serves on the process stdin and stdout.
func (rt *Runtime) Run() error {
	return rt.Serve(os.Stdin, os.Stdout)
}

// Serve answers the HELLO and then handles requests until r is exhausted.
func (rt *Runtime) Serve(r io.Reader, w io.Writer) error {
	if rt.Name == "" {
		return errors.New("runtime name is empty")
	}
	reader := NewFrameReader(r)
	writer := NewFrameWriter(w)
	limits, err := HandshakeAccept(reader, writer, rt.Name)
	if err != nil {
		return err
	}
	reader.SetLimits(limits)
	writer.SetLimits(limits)
	rt.writer = writer
	defer func() { rt.writer = nil }()

	for {
		frame, err := reader.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if frame.FrameType != FrameTypeReq {
			return fmt.Errorf("unexpected %s frame", frame.FrameType)
		}
		rt.current = frame.ID
		if err := writer.WriteFrame(rt.handle(frame)); err != nil {
			return err
		}
	}
}

func (rt *Runtime) handle(frame *Frame) *Frame {
	switch frame.Op {
	case OpDescribe:
		if rt.Describe == nil {
			return NewErr(frame.ID, ErrCodeUnsupported, "describe is not implemented")
		}
		var req describeRequest
		if err := cbor.Unmarshal(frame.Payload, &req); err != nil {
			return NewErr(frame.ID, ErrCodeBadRequest, err.Error())
		}
		c, err := caps.Parse(req.Caps)
		if err != nil {
			return NewErr(frame.ID, ErrCodeBadRequest, err.Error())
		}
		cfg, err := rt.Describe(c)
		if err != nil {
			return NewErr(frame.ID, ErrCodeHandler, err.Error())
		}
		payload, err := cbor.Marshal(encodeConfig(cfg))
		if err != nil {
			return NewErr(frame.ID, ErrCodeHandler, err.Error())
		}
		return NewRes(frame.ID, payload)

	case OpConvert:
		if rt.Convert == nil {
			return NewErr(frame.ID, ErrCodeUnsupported, "convert is not implemented")
		}
		var req wireBuffer
		if err := cbor.Unmarshal(frame.Payload, &req); err != nil {
			return NewErr(frame.ID, ErrCodeBadRequest, err.Error())
		}
		out, cfg, err := rt.Convert(decodeBuffer(req))
		if err != nil {
			return NewErr(frame.ID, ErrCodeHandler, err.Error())
		}
		if out == nil {
			return NewErr(frame.ID, ErrCodeHandler, "converter returned no buffer")
		}
		payload, err := marshalConvertResponse(out, cfg)
		if err != nil {
			return NewErr(frame.ID, ErrCodeHandler, err.Error())
		}
		return NewRes(frame.ID, payload)

	default:
		return NewErr(frame.ID, ErrCodeUnknownOp, fmt.Sprintf("unknown op %q", frame.Op))
	}
}
