package plugin

import (
	"strings"

	"github.com/machinefabric/tensorconv-go/buffer"
	"github.com/machinefabric/tensorconv-go/tensor"
)

// CustomFunc is a user conversion callback selected with
// mode=custom-code:<name>. It returns the converted buffer and its config.
type CustomFunc func(buf *buffer.Buffer, data any) (*buffer.Buffer, tensor.Config, error)

type customEntry struct {
	fn   CustomFunc
	data any
}

// RegisterCustom registers a callback under name. data is passed back to
// every call.
func (r *Registry) RegisterCustom(name string, fn CustomFunc, data any) error {
	if strings.TrimSpace(name) == "" {
		return NewInvalidError("custom converter name is empty")
	}
	if fn == nil {
		return NewInvalidError("custom converter function is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.custom[name]; exists {
		return NewAlreadyRegisteredError(name)
	}
	r.custom[name] = customEntry{fn: fn, data: data}
	return nil
}

// UnregisterCustom removes the callback registered under name.
func (r *Registry) UnregisterCustom(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.custom[name]; !exists {
		return NewNotFoundError(name)
	}
	delete(r.custom, name)
	return nil
}

// FindCustom returns the callback and user data registered under name.
func (r *Registry) FindCustom(name string) (CustomFunc, any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, exists := r.custom[name]
	if !exists {
		return nil, nil, NewNotFoundError(name)
	}
	return e.fn, e.data, nil
}
