package plugin

import (
	"fmt"
	"strings"
	"sync"
)

// RegistryError represents errors that can occur during registry operations
type RegistryError struct {
	Type    string
	Message string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Registry error types
const (
	ErrTypeNotFound          = "NotFound"
	ErrTypeAlreadyRegistered = "AlreadyRegistered"
	ErrTypeInvalid           = "Invalid"
)

// NewNotFoundError creates a new error for a missing converter
func NewNotFoundError(name string) *RegistryError {
	return &RegistryError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("no converter registered for %q", name),
	}
}

// NewAlreadyRegisteredError creates a new error for a duplicate name
func NewAlreadyRegisteredError(name string) *RegistryError {
	return &RegistryError{
		Type:    ErrTypeAlreadyRegistered,
		Message: fmt.Sprintf("converter %q is already registered", name),
	}
}

// NewInvalidError creates a new error for a converter that cannot be registered
func NewInvalidError(reason string) *RegistryError {
	return &RegistryError{
		Type:    ErrTypeInvalid,
		Message: reason,
	}
}

// IsNotFound reports whether err is a NotFound registry error.
func IsNotFound(err error) bool {
	re, ok := err.(*RegistryError)
	return ok && re.Type == ErrTypeNotFound
}

// Registry holds external converters in registration order.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	converters []Converter
	custom     map[string]customEntry
}

// NewRegistry creates a new empty registry
func NewRegistry() *Registry {
	return &Registry{custom: make(map[string]customEntry)}
}

// Register adds a converter. Names must be non-empty and unique.
func (r *Registry) Register(c Converter) error {
	if c == nil {
		return NewInvalidError("converter is nil")
	}
	name := c.Name()
	if strings.TrimSpace(name) == "" {
		return NewInvalidError("converter name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.converters {
		if e.Name() == name {
			return NewAlreadyRegisteredError(name)
		}
	}
	r.converters = append(r.converters, c)
	return nil
}

// Unregister removes the converter with the given name
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.converters {
		if e.Name() == name {
			r.converters = append(r.converters[:i], r.converters[i+1:]...)
			return nil
		}
	}
	return NewNotFoundError(name)
}

// Find returns the converter registered under name
func (r *Registry) Find(name string) (Converter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.converters {
		if e.Name() == name {
			return e, nil
		}
	}
	return nil, NewNotFoundError(name)
}

// Lookup finds the converter for a media type name. A converter registered
// under exactly that name wins; otherwise the declared caps names of each
// converter are scanned in registration order and the first hit is returned.
func (r *Registry) Lookup(mediaType string) (Converter, error) {
	r.mu.RLock()
	converters := append([]Converter(nil), r.converters...)
	r.mu.RUnlock()

	for _, c := range converters {
		if c.Name() == mediaType {
			return c, nil
		}
	}
	// QueryCaps runs outside the lock; a converter may consult the registry.
	for _, c := range converters {
		for _, name := range c.QueryCaps().Names() {
			if name == mediaType {
				return c, nil
			}
		}
	}
	return nil, NewNotFoundError(mediaType)
}

// Names returns the registered converter names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.converters))
	for i, e := range r.converters {
		names[i] = e.Name()
	}
	return names
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry, created on first use.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}
