package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrFileOpen is returned when the root file or an imported file cannot be opened.
	ErrFileOpen = errors.New("cannot open configuration file")
	// ErrSelfImport is returned when a file imports its own path.
	ErrSelfImport = errors.New("configuration file imports itself")
	// ErrCircularImport is returned when an import refers to a file already being parsed higher up the import chain.
	ErrCircularImport = errors.New("circular configuration import")
	// ErrEmptyImport is returned for an import directive without a path.
	ErrEmptyImport = errors.New("import directive without a path")
	// ErrDepthExceeded is returned when imports nest deeper than the configured limit.
	ErrDepthExceeded = errors.New("import depth exceeded")
)

// LineError reports the file and line that caused a load to fail. Err holds
// the underlying cause, so errors.Is still matches the sentinel values of this
// package and of the registry.
type LineError struct {
	Path    string
	Line    int
	Content string
	Err     error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %q: %v", e.Path, e.Line, e.Content, e.Err)
}

// Unwrap returns the underlying error.
func (e *LineError) Unwrap() error {
	return e.Err
}
