package registry

import "errors"

var (
	// ErrInvalidKey is returned when registering an empty key.
	ErrInvalidKey = errors.New("configuration key must not be empty")
	// ErrDuplicateKey is returned when a key is registered more than once.
	ErrDuplicateKey = errors.New("configuration key already registered")
	// ErrUnknownKey is returned when reading or assigning a key that was never registered.
	ErrUnknownKey = errors.New("configuration key not registered")
	// ErrEmptyValue is returned by typed accessors when the entry has no value.
	ErrEmptyValue = errors.New("configuration value is empty")
	// ErrParse is returned when a value is not a valid integer literal.
	ErrParse = errors.New("configuration value is not a valid integer")
	// ErrInvalidBoolean is returned when a value is neither "true" nor "false".
	ErrInvalidBoolean = errors.New(`configuration value must be "true" or "false"`)
)
