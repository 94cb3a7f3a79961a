package converter

import (
	"errors"
	"fmt"
)

// Kind classifies converter errors.
type Kind int

const (
	KindUnknown Kind = iota
	// KindCapabilityParse: the input caps cannot be described as tensors.
	KindCapabilityParse
	// KindConfigurationRequired: the shape cannot be inferred and must be
	// declared with input-dim/input-type.
	KindConfigurationRequired
	// KindConfigurationConflict: the derived config disagrees with the
	// declared one.
	KindConfigurationConflict
	// KindUnsupportedCombination: the properties cannot be combined with
	// the input, e.g. frames-per-tensor > 1 with several tensors.
	KindUnsupportedCombination
	KindPluginNotFound
	KindPluginOpenFailure
	// KindPayloadSizeMismatch: a flexible record does not match its header.
	KindPayloadSizeMismatch
	// KindNotNegotiated: data arrived before a successful negotiation, or
	// the negotiated caps were refused downstream.
	KindNotNegotiated
	// KindFlow: a buffer could not be converted; the stream must stop.
	KindFlow
)

func (k Kind) String() string {
	switch k {
	case KindCapabilityParse:
		return "capability_parse"
	case KindConfigurationRequired:
		return "configuration_required"
	case KindConfigurationConflict:
		return "configuration_conflict"
	case KindUnsupportedCombination:
		return "unsupported_combination"
	case KindPluginNotFound:
		return "plugin_not_found"
	case KindPluginOpenFailure:
		return "plugin_open_failure"
	case KindPayloadSizeMismatch:
		return "payload_size_mismatch"
	case KindNotNegotiated:
		return "not_negotiated"
	case KindFlow:
		return "flow"
	default:
		return "unknown"
	}
}

// Error is returned by every converter operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Message == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err,
// ErrPayloadSizeMismatch) holds for any payload size error in the chain.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrCapabilityParse        = &Error{Kind: KindCapabilityParse}
	ErrConfigurationRequired  = &Error{Kind: KindConfigurationRequired}
	ErrConfigurationConflict  = &Error{Kind: KindConfigurationConflict}
	ErrUnsupportedCombination = &Error{Kind: KindUnsupportedCombination}
	ErrPluginNotFound         = &Error{Kind: KindPluginNotFound}
	ErrPluginOpenFailure      = &Error{Kind: KindPluginOpenFailure}
	ErrPayloadSizeMismatch    = &Error{Kind: KindPayloadSizeMismatch}
	ErrNotNegotiated          = &Error{Kind: KindNotNegotiated}
	ErrFlow                   = &Error{Kind: KindFlow}
)

var errClosed = errors.New("converter is closed")

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// flowError marks err as fatal to the stream. The wrapped kind stays
// reachable through errors.Is.
func flowError(err error) *Error {
	var ce *Error
	if errors.As(err, &ce) && ce.Kind == KindFlow {
		return ce
	}
	return &Error{Kind: KindFlow, Message: "buffer discarded", Err: err}
}

// KindOf returns the kind of the outermost converter error in err.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// CauseOf returns the kind of the innermost converter error in err's chain,
// e.g. PayloadSizeMismatch for a flow error wrapping one.
func CauseOf(err error) Kind {
	kind := KindUnknown
	for err != nil {
		var ce *Error
		if !errors.As(err, &ce) {
			break
		}
		kind = ce.Kind
		err = ce.Err
	}
	return kind
}

// IsNegotiationError reports whether err rejected a caps event. The stream
// keeps its previous configuration.
func IsNegotiationError(err error) bool {
	switch KindOf(err) {
	case KindCapabilityParse, KindConfigurationRequired, KindConfigurationConflict,
		KindUnsupportedCombination, KindPluginNotFound, KindPluginOpenFailure:
		return true
	}
	return false
}

// IsFatal reports whether err stops the stream.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindFlow, KindNotNegotiated:
		return true
	}
	return false
}
