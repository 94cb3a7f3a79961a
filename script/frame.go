// Package script runs tensor converters as subprocesses. The host and the
// converter process exchange length-prefixed CBOR frames over the process
// stdin and stdout; stderr is forwarded to the host log.
package script

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// ProtocolVersion is carried in every frame.
const ProtocolVersion uint8 = 1

const (
	// DefaultMaxFrame fits a 4K RGBA frame with headroom.
	DefaultMaxFrame = 16 << 20
	// MaxFrameHardLimit caps whatever the peers negotiate.
	MaxFrameHardLimit = 64 << 20
)

// FrameType tells requests, answers and side messages apart.
type FrameType uint8

const (
	FrameTypeHello FrameType = 0
	FrameTypeReq   FrameType = 1
	FrameTypeRes   FrameType = 2
	FrameTypeLog   FrameType = 5
	FrameTypeErr   FrameType = 6
)

var frameTypeNames = map[FrameType]string{
	FrameTypeHello: "HELLO",
	FrameTypeReq:   "REQ",
	FrameTypeRes:   "RES",
	FrameTypeLog:   "LOG",
	FrameTypeErr:   "ERR",
}

func (ft FrameType) String() string {
	if name, ok := frameTypeNames[ft]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(ft))
}

// Request operations
const (
	OpDescribe = "describe"
	OpConvert  = "convert"
)

// Frame is one protocol message. RES, ERR and LOG frames carry the ID of
// the request they belong to; HELLO uses the nil UUID.
type Frame struct {
	Version   uint8     `cbor:"0,keyasint"`
	FrameType FrameType `cbor:"1,keyasint"`
	ID        uuid.UUID `cbor:"2,keyasint"`
	Op        string    `cbor:"3,keyasint,omitempty"` // REQ
	Payload   []byte    `cbor:"4,keyasint,omitempty"` // CBOR body
	Code      string    `cbor:"5,keyasint,omitempty"` // ERR
	Message   string    `cbor:"6,keyasint,omitempty"` // ERR, LOG
	Level     string    `cbor:"7,keyasint,omitempty"` // LOG
}

// NewHello creates a HELLO frame carrying the sender's limits and name.
func NewHello(payload []byte) *Frame {
	return &Frame{Version: ProtocolVersion, FrameType: FrameTypeHello, Payload: payload}
}

// NewReq creates a request frame for op.
func NewReq(id uuid.UUID, op string, payload []byte) *Frame {
	return &Frame{Version: ProtocolVersion, FrameType: FrameTypeReq, ID: id, Op: op, Payload: payload}
}

// NewRes creates the result frame answering request id.
func NewRes(id uuid.UUID, payload []byte) *Frame {
	return &Frame{Version: ProtocolVersion, FrameType: FrameTypeRes, ID: id, Payload: payload}
}

// NewErr creates the error frame answering request id.
func NewErr(id uuid.UUID, code, message string) *Frame {
	return &Frame{Version: ProtocolVersion, FrameType: FrameTypeErr, ID: id, Code: code, Message: message}
}

// NewLog creates a log frame sent while request id runs.
func NewLog(id uuid.UUID, level, message string) *Frame {
	return &Frame{Version: ProtocolVersion, FrameType: FrameTypeLog, ID: id, Level: level, Message: message}
}

// EncodeFrame encodes frame, stamping the current protocol version.
func EncodeFrame(frame *Frame) ([]byte, error) {
	f := *frame
	f.Version = ProtocolVersion
	return cbor.Marshal(&f)
}

// DecodeFrame decodes and checks one frame.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := cbor.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Frame) validate() error {
	if f.Version != ProtocolVersion {
		return fmt.Errorf("protocol version %d, expected %d", f.Version, ProtocolVersion)
	}
	switch f.FrameType {
	case FrameTypeHello, FrameTypeRes:
	case FrameTypeReq:
		if f.Op == "" {
			return fmt.Errorf("REQ frame requires op")
		}
	case FrameTypeErr:
		if f.Code == "" {
			return fmt.Errorf("ERR frame requires code")
		}
	case FrameTypeLog:
		if f.Level == "" {
			return fmt.Errorf("LOG frame requires level")
		}
	default:
		return fmt.Errorf("invalid frame type %d", uint8(f.FrameType))
	}
	return nil
}
