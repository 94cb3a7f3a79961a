// Package config loads converter properties from JSON or YAML files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/machinefabric/tensorconv-go/converter"
)

// Schema is the JSON Schema every property file must satisfy.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "input_dim": {"type": "string"},
    "input_type": {"type": "string"},
    "frames_per_tensor": {"type": "integer", "minimum": 1},
    "set_timestamp": {"type": "boolean"},
    "silent": {"type": "boolean"},
    "mode": {"type": "string", "pattern": "^(custom-code|custom-script):.+$"},
    "python_interpreter": {"type": "string", "minLength": 1}
  }
}`

// Format is the encoding of a property file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported property file %q: want .json, .yaml or .yml", path)
}

// ValidationError is returned when a property file does not match Schema.
type ValidationError struct {
	Type    string      `json:"type"`
	Source  string      `json:"source,omitempty"`
	Details string      `json:"details"`
	Value   interface{} `json:"value,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("invalid properties in %s: %s", e.Source, e.Details)
	}
	return fmt.Sprintf("invalid properties: %s", e.Details)
}

// File holds the properties read from a file. Unset booleans and counts
// keep the converter defaults.
type File struct {
	InputDim          string `json:"input_dim,omitempty" yaml:"input_dim,omitempty"`
	InputType         string `json:"input_type,omitempty" yaml:"input_type,omitempty"`
	FramesPerTensor   *int   `json:"frames_per_tensor,omitempty" yaml:"frames_per_tensor,omitempty"`
	SetTimestamp      *bool  `json:"set_timestamp,omitempty" yaml:"set_timestamp,omitempty"`
	Silent            *bool  `json:"silent,omitempty" yaml:"silent,omitempty"`
	Mode              string `json:"mode,omitempty" yaml:"mode,omitempty"`
	PythonInterpreter string `json:"python_interpreter,omitempty" yaml:"python_interpreter,omitempty"`
}

// Load reads and validates the property file at path.
func Load(path string) (*File, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	f, err := Parse(data, format)
	if err != nil {
		if ve, ok := err.(*ValidationError); ok {
			ve.Source = path
		}
		return nil, err
	}
	return f, nil
}

// Parse decodes and validates data in the given format.
func Parse(data []byte, format Format) (*File, error) {
	doc, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(doc, &f); err != nil {
		return nil, &ValidationError{Type: "DecodeFailed", Details: err.Error()}
	}
	return &f, nil
}

// toJSON normalizes YAML to JSON so both formats share one validation path.
func toJSON(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		var value map[string]interface{}
		if err := yaml.Unmarshal(data, &value); err != nil {
			return nil, &ValidationError{Type: "DecodeFailed", Details: err.Error()}
		}
		if value == nil {
			value = map[string]interface{}{}
		}
		return json.Marshal(value)
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

// Validate checks a JSON document against Schema.
func Validate(doc []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(Schema)
	documentLoader := gojsonschema.NewBytesLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &ValidationError{
			Type:    "DecodeFailed",
			Details: fmt.Sprintf("failed to validate properties: %v", err),
		}
	}
	if result.Valid() {
		return nil
	}

	var errorDetails []string
	for _, desc := range result.Errors() {
		errorDetails = append(errorDetails, fmt.Sprintf("  - %s", desc))
	}
	return &ValidationError{
		Type:    "SchemaValidationFailed",
		Details: "\n" + strings.Join(errorDetails, "\n"),
		Value:   string(doc),
	}
}

// ApplyTo sets every property present in f on c.
func (f *File) ApplyTo(c *converter.Converter) error {
	// types first so the dimension parse sees them
	if f.InputType != "" {
		if err := c.SetInputType(f.InputType); err != nil {
			return err
		}
	}
	if f.InputDim != "" {
		if err := c.SetInputDim(f.InputDim); err != nil {
			return err
		}
	}
	if f.FramesPerTensor != nil {
		if err := c.SetFramesPerTensor(*f.FramesPerTensor); err != nil {
			return err
		}
	}
	if f.SetTimestamp != nil {
		c.SetTimestamp(*f.SetTimestamp)
	}
	if f.Silent != nil {
		c.SetSilent(*f.Silent)
	}
	if f.Mode != "" {
		if err := c.SetMode(f.Mode); err != nil {
			return err
		}
	}
	return nil
}
