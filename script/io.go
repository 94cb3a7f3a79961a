package script

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Limits are agreed during the HELLO exchange.
type Limits struct {
	MaxFrame int `cbor:"max_frame"`
}

// DefaultLimits returns the limits a side offers before negotiation.
func DefaultLimits() Limits {
	return Limits{MaxFrame: DefaultMaxFrame}
}

// NegotiateLimits keeps the stricter of both sides.
func NegotiateLimits(a, b Limits) Limits {
	return Limits{MaxFrame: min(a.MaxFrame, b.MaxFrame)}
}

// hello is the HELLO payload. Only the converter process sends a name.
type hello struct {
	MaxFrame int    `cbor:"max_frame"`
	Name     string `cbor:"name,omitempty"`
}

func checkFrameSize(n, limit int) error {
	if n > MaxFrameHardLimit {
		return fmt.Errorf("frame of %d bytes exceeds hard limit %d", n, MaxFrameHardLimit)
	}
	if n > limit {
		return fmt.Errorf("frame of %d bytes exceeds max_frame %d", n, limit)
	}
	return nil
}

// FrameReader reads frames, each a big-endian uint32 length and a CBOR body.
type FrameReader struct {
	r     *bufio.Reader
	limit int
}

// NewFrameReader reads frames from r under the default limits.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r), limit: DefaultMaxFrame}
}

// SetLimits applies negotiated limits to later reads.
func (fr *FrameReader) SetLimits(limits Limits) {
	fr.limit = limits.MaxFrame
}

// ReadFrame returns io.EOF when the stream ends between frames.
func (fr *FrameReader) ReadFrame() (*Frame, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(fr.r, prefix[:]); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint32(prefix[:]))
	if err := checkFrameSize(n, fr.limit); err != nil {
		return nil, err
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return DecodeFrame(body)
}

// FrameWriter writes frames in the FrameReader format.
type FrameWriter struct {
	w     io.Writer
	limit int
	buf   []byte
}

// NewFrameWriter writes frames to w under the default limits.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w, limit: DefaultMaxFrame}
}

// SetLimits applies negotiated limits to later writes.
func (fw *FrameWriter) SetLimits(limits Limits) {
	fw.limit = limits.MaxFrame
}

// WriteFrame sends the prefix and body in a single Write.
func (fw *FrameWriter) WriteFrame(frame *Frame) error {
	body, err := EncodeFrame(frame)
	if err != nil {
		return err
	}
	if err := checkFrameSize(len(body), fw.limit); err != nil {
		return err
	}
	fw.buf = binary.BigEndian.AppendUint32(fw.buf[:0], uint32(len(body)))
	fw.buf = append(fw.buf, body...)
	_, err = fw.w.Write(fw.buf)
	return err
}

func sendHello(w *FrameWriter, name string) error {
	payload, err := cbor.Marshal(hello{MaxFrame: DefaultMaxFrame, Name: name})
	if err != nil {
		return err
	}
	return w.WriteFrame(NewHello(payload))
}

func receiveHello(r *FrameReader) (hello, error) {
	frame, err := r.ReadFrame()
	if err != nil {
		return hello{}, fmt.Errorf("failed to read HELLO: %w", err)
	}
	if frame.FrameType != FrameTypeHello {
		return hello{}, fmt.Errorf("expected HELLO, got %s", frame.FrameType)
	}
	h := hello{MaxFrame: DefaultMaxFrame}
	if len(frame.Payload) > 0 {
		if err := cbor.Unmarshal(frame.Payload, &h); err != nil {
			return hello{}, fmt.Errorf("invalid HELLO payload: %w", err)
		}
	}
	if h.MaxFrame <= 0 {
		h.MaxFrame = DefaultMaxFrame
	}
	return h, nil
}

// HandshakeAccept answers the host's HELLO and announces name.
func HandshakeAccept(r *FrameReader, w *FrameWriter, name string) (Limits, error) {
	h, err := receiveHello(r)
	if err != nil {
		return Limits{}, err
	}
	if err := sendHello(w, name); err != nil {
		return Limits{}, fmt.Errorf("failed to answer HELLO: %w", err)
	}
	return NegotiateLimits(DefaultLimits(), Limits{MaxFrame: h.MaxFrame}), nil
}

// HandshakeInitiate sends the host's HELLO and returns the name the
// converter process announced.
func HandshakeInitiate(r *FrameReader, w *FrameWriter) (string, Limits, error) {
	if err := sendHello(w, ""); err != nil {
		return "", Limits{}, fmt.Errorf("failed to send HELLO: %w", err)
	}
	h, err := receiveHello(r)
	if err != nil {
		return "", Limits{}, err
	}
	if h.Name == "" {
		return "", Limits{}, errors.New("HELLO answer carries no converter name")
	}
	return h.Name, NegotiateLimits(DefaultLimits(), Limits{MaxFrame: h.MaxFrame}), nil
}
