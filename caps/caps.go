// Package caps provides the capability descriptions exchanged between stream
// elements. A capability is a media type name followed by flat key=value
// fields, with wildcard and list support and set intersection.
package caps

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/machinefabric/tensorconv-go/tensor"
)

// Well-known media type names.
const (
	MediaVideo   = "video/x-raw"
	MediaAudio   = "audio/x-raw"
	MediaText    = "text/x-raw"
	MediaOctet   = "application/octet-stream"
	MediaTensors = "other/tensors"
)

// Wildcard matches any value of a field.
const Wildcard = "*"

const listSeparator = "|"

// Caps is one capability description
//
// Examples:
// - video/x-raw;format=RGB;framerate=30/1;height=480;width=640
// - audio/x-raw;channels=2;format=S16LE|F32LE;rate=*
// - other/tensors;format=flexible
type Caps struct {
	name   string
	fields map[string]string
}

// Error represents errors that can occur while parsing or combining caps
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Error codes for caps operations
const (
	ErrorInvalidFormat    = 1
	ErrorEmptyField       = 2
	ErrorInvalidCharacter = 3
	ErrorInvalidField     = 4
	ErrorInvalidMediaType = 5
)

var (
	validNamePattern  = regexp.MustCompile(`^[a-z0-9\-]+/[a-zA-Z0-9_\-\.\+]+$`)
	validKeyPattern   = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)
	validValuePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-\*\./:,\|\+]+$`)
)

// Parse creates caps from a string
// Format: media/type;key1=value1;key2=value2;...
// Trailing semicolons are optional and ignored
// Fields are kept sorted for the canonical form
func Parse(s string) (*Caps, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, &Error{
			Code:    ErrorInvalidFormat,
			Message: "caps cannot be empty",
		}
	}

	parts := strings.Split(strings.TrimSuffix(s, ";"), ";")
	name := strings.TrimSpace(parts[0])
	if !validNamePattern.MatchString(name) {
		return nil, &Error{
			Code:    ErrorInvalidMediaType,
			Message: fmt.Sprintf("invalid media type name: %q", name),
		}
	}

	fields := make(map[string]string)
	for _, field := range parts[1:] {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		key, value, found := strings.Cut(field, "=")
		if !found {
			return nil, &Error{
				Code:    ErrorInvalidField,
				Message: fmt.Sprintf("invalid field format (must be key=value): %s", field),
			}
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if key == "" || value == "" {
			return nil, &Error{
				Code:    ErrorEmptyField,
				Message: fmt.Sprintf("field key or value cannot be empty: %s", field),
			}
		}
		if !validKeyPattern.MatchString(key) || !validValuePattern.MatchString(value) {
			return nil, &Error{
				Code:    ErrorInvalidCharacter,
				Message: fmt.Sprintf("invalid character in field: %s", field),
			}
		}

		fields[key] = value
	}

	return &Caps{name: name, fields: fields}, nil
}

// MustParse is like Parse but panics on error. Intended for templates.
func MustParse(s string) *Caps {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// New creates caps from a media type name and fields
func New(name string, fields map[string]string) *Caps {
	result := make(map[string]string, len(fields))
	for k, v := range fields {
		result[k] = v
	}
	return &Caps{name: name, fields: result}
}

// MediaType returns the media type name
func (c *Caps) MediaType() string {
	return c.name
}

// Field returns the raw value of a field
func (c *Caps) Field(key string) (string, bool) {
	value, exists := c.fields[key]
	return value, exists
}

// HasField checks if the caps carry a field with a specific value
func (c *Caps) HasField(key, value string) bool {
	v, exists := c.fields[key]
	return exists && v == value
}

// FixedField returns the value of a field only when it is a single literal
func (c *Caps) FixedField(key string) (string, bool) {
	value, exists := c.fields[key]
	if !exists || !isFixedValue(value) {
		return "", false
	}
	return value, true
}

// Int returns a fixed integer field
func (c *Caps) Int(key string) (int, bool) {
	value, ok := c.FixedField(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Fraction returns a fixed fraction field such as framerate=30/1
func (c *Caps) Fraction(key string) (tensor.Fraction, bool) {
	value, ok := c.FixedField(key)
	if !ok {
		return tensor.Fraction{}, false
	}
	f, err := tensor.ParseFraction(value)
	if err != nil {
		return tensor.Fraction{}, false
	}
	return f, true
}

// Keys returns the field keys in canonical order
func (c *Caps) Keys() []string {
	keys := make([]string, 0, len(c.fields))
	for key := range c.fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// IsFixed reports whether every field holds exactly one literal value
func (c *Caps) IsFixed() bool {
	for _, value := range c.fields {
		if !isFixedValue(value) {
			return false
		}
	}
	return true
}

func isFixedValue(v string) bool {
	return v != Wildcard && !strings.Contains(v, listSeparator)
}

// With returns new caps with an added or updated field
func (c *Caps) With(key, value string) *Caps {
	out := New(c.name, c.fields)
	out.fields[key] = value
	return out
}

// WithList returns new caps with a field set to the list of values
func (c *Caps) WithList(key string, values []string) *Caps {
	if len(values) == 0 {
		return c.Without(key)
	}
	return c.With(key, strings.Join(values, listSeparator))
}

// Without returns new caps with a field removed
func (c *Caps) Without(key string) *Caps {
	out := New(c.name, c.fields)
	delete(out.fields, key)
	return out
}

// Specificity counts the fixed fields
func (c *Caps) Specificity() int {
	count := 0
	for _, value := range c.fields {
		if isFixedValue(value) {
			count++
		}
	}
	return count
}

// Intersect returns the caps accepted by both c and other.
//
// Media types must be equal. A field missing on one side takes the value
// of the other side, a wildcard matches anything and lists intersect as sets
// in the order of c.
func (c *Caps) Intersect(other *Caps) (*Caps, bool) {
	if other == nil {
		return c, true
	}
	if c.name != other.name {
		return nil, false
	}

	fields := make(map[string]string, len(c.fields))
	for k, v := range c.fields {
		fields[k] = v
	}
	for key, ov := range other.fields {
		cv, exists := fields[key]
		if !exists {
			fields[key] = ov
			continue
		}
		v, ok := intersectValues(cv, ov)
		if !ok {
			return nil, false
		}
		fields[key] = v
	}
	return &Caps{name: c.name, fields: fields}, true
}

// CanIntersect checks if two caps have a non-empty intersection
func (c *Caps) CanIntersect(other *Caps) bool {
	_, ok := c.Intersect(other)
	return ok
}

func intersectValues(a, b string) (string, bool) {
	if a == Wildcard {
		return b, true
	}
	if b == Wildcard {
		return a, true
	}
	bs := strings.Split(b, listSeparator)
	var common []string
	for _, av := range strings.Split(a, listSeparator) {
		for _, bv := range bs {
			if av == bv {
				common = append(common, av)
				break
			}
		}
	}
	if len(common) == 0 {
		return "", false
	}
	return strings.Join(common, listSeparator), true
}

// Fixate returns caps where every list is reduced to its first value.
// Wildcard fields are dropped.
func (c *Caps) Fixate() *Caps {
	fields := make(map[string]string, len(c.fields))
	for k, v := range c.fields {
		if v == Wildcard {
			continue
		}
		first, _, _ := strings.Cut(v, listSeparator)
		fields[k] = first
	}
	return &Caps{name: c.name, fields: fields}
}

// String returns the canonical representation: media type followed by the
// sorted fields, no trailing semicolon
func (c *Caps) String() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(c.name)
	for _, key := range c.Keys() {
		b.WriteString(";")
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(c.fields[key])
	}
	return b.String()
}

// Equal checks if two caps are identical
func (c *Caps) Equal(other *Caps) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.name != other.name || len(c.fields) != len(other.fields) {
		return false
	}
	for key, value := range c.fields {
		if ov, exists := other.fields[key]; !exists || ov != value {
			return false
		}
	}
	return true
}

// MarshalJSON implements the json.Marshaler interface
func (c *Caps) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (c *Caps) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}

// Builder provides a fluent interface for creating caps
type Builder struct {
	name   string
	fields map[string]string
}

// NewBuilder creates a builder for the given media type
func NewBuilder(name string) *Builder {
	return &Builder{name: name, fields: make(map[string]string)}
}

// Field adds or updates a field
func (b *Builder) Field(key, value string) *Builder {
	b.fields[key] = value
	return b
}

// Int adds an integer field
func (b *Builder) Int(key string, v int) *Builder {
	return b.Field(key, strconv.Itoa(v))
}

// Fraction adds a fraction field
func (b *Builder) Fraction(key string, f tensor.Fraction) *Builder {
	return b.Field(key, f.String())
}

// Build validates and creates the final caps
func (b *Builder) Build() (*Caps, error) {
	return Parse(New(b.name, b.fields).String())
}
