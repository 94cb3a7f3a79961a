// Package plugin defines the contract of external converters and the
// registries the conversion element looks them up in.
package plugin

import (
	"github.com/machinefabric/tensorconv-go/buffer"
	"github.com/machinefabric/tensorconv-go/caps"
	"github.com/machinefabric/tensorconv-go/tensor"
)

// Handle is the per-instance state returned by Opener.Open. Converters
// without an Open step receive nil.
type Handle any

// Converter turns buffers of a media type the core does not parse itself
// into tensors.
type Converter interface {
	// Name is the unique registration name.
	Name() string
	// QueryCaps returns the caps the converter accepts. The media type
	// names are used for lookup.
	QueryCaps() caps.Set
	// Describe derives the output tensor config from fixed input caps.
	Describe(c *caps.Caps, h Handle) (tensor.Config, error)
	// Convert transforms one buffer and reports the config of the result.
	Convert(buf *buffer.Buffer, h Handle) (*buffer.Buffer, tensor.Config, error)
}

// Opener is implemented by converters that need per-stream state, such as
// a loaded script.
type Opener interface {
	Open(option string) (Handle, error)
	Close(h Handle) error
}
