package registry

import (
	"fmt"
	"strconv"
)

// Entry is the registry's record for one key.
type Entry struct {
	key   string
	value string
}

// Key returns the registered key.
func (e Entry) Key() string {
	return e.key
}

// Value returns the raw value.
func (e Entry) Value() string {
	return e.value
}

// Int parses the value as a base-10 signed integer.
func (e Entry) Int() (int, error) {
	if e.value == "" {
		return 0, fmt.Errorf("%w: key %q", ErrEmptyValue, e.key)
	}
	n, err := strconv.Atoi(e.value)
	if err != nil {
		return 0, fmt.Errorf("%w: key %q value %q: %w", ErrParse, e.key, e.value, err)
	}
	return n, nil
}

// String returns the value verbatim.
func (e Entry) String() string {
	return e.value
}

// Bool accepts exactly "true" or "false".
func (e Entry) Bool() (bool, error) {
	switch e.value {
	case "":
		return false, fmt.Errorf("%w: key %q", ErrEmptyValue, e.key)
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: key %q value %q", ErrInvalidBoolean, e.key, e.value)
	}
}
