package schema

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/confloader/internal/registry"
)

// Type names the conversion a key's value must survive.
type Type string

const (
	TypeString Type = "string"
	TypeInt    Type = "int"
	TypeBool   Type = "bool"
)

var (
	// ErrInvalidSchema is returned when a schema document fails validation.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrUnsupportedType is returned by Convert for an unknown type name.
	ErrUnsupportedType = errors.New("unsupported value type")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Key declares one expected configuration key.
type Key struct {
	Name        string `yaml:"name" validate:"required"`
	Default     string `yaml:"default"`
	Type        Type   `yaml:"type" validate:"omitempty,oneof=int string bool"`
	Description string `yaml:"description"`
}

// Schema is the set of keys an application registers before loading.
type Schema struct {
	Keys []Key `yaml:"keys" validate:"dive"`
}

// Load reads and validates a YAML schema file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a YAML schema document.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks field constraints and rejects repeated key names.
func (s *Schema) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}

	seen := make(map[string]struct{}, len(s.Keys))
	for _, key := range s.Keys {
		if _, ok := seen[key.Name]; ok {
			return fmt.Errorf("%w: key %q declared more than once", ErrInvalidSchema, key.Name)
		}
		seen[key.Name] = struct{}{}
	}
	return nil
}

// Apply registers every declared key with its default value.
func (s *Schema) Apply(reg *registry.Registry) error {
	for _, key := range s.Keys {
		if err := reg.Register(key.Name, key.Default); err != nil {
			return err
		}
	}
	return nil
}

// Check converts every typed key through its accessor and returns one error
// per key that fails. Untyped and string keys always pass.
func (s *Schema) Check(reg *registry.Registry) []error {
	var errs []error
	for _, key := range s.Keys {
		entry, err := reg.Get(key.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := Convert(entry, key.Type); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Lookup returns the declaration for name.
func (s *Schema) Lookup(name string) (Key, bool) {
	for _, key := range s.Keys {
		if key.Name == name {
			return key, true
		}
	}
	return Key{}, false
}

// Convert returns the entry's value converted to typ.
func Convert(entry registry.Entry, typ Type) (any, error) {
	switch typ {
	case TypeInt:
		return entry.Int()
	case TypeBool:
		return entry.Bool()
	case TypeString, "":
		return entry.String(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, typ)
	}
}
