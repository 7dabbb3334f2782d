package registry

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Registry maps registered keys to their entries. The zero value is not
// usable; create one with New.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
	}
}

// Register declares key as expected, with defaultValue as its initial value.
func (r *Registry) Register(key, defaultValue string) error {
	if key == "" {
		return ErrInvalidKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}
	r.entries[key] = &Entry{key: key, value: defaultValue}
	return nil
}

// Get returns a copy of the entry for key.
func (r *Registry) Get(key string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[key]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return *entry, nil
}

// Set overwrites the value of a registered key.
func (r *Registry) Set(key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	entry.value = value
	return nil
}

// Len returns the number of registered keys.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns copies of all entries sorted by key.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].key < out[j].key
	})
	return out
}

// WriteTo writes a human-readable listing of every registered key and its
// current value. The format is meant for diagnostics only.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	buf.WriteString("conf:\n")
	for _, entry := range r.Entries() {
		fmt.Fprintf(&buf, "%s\t%s\n", entry.key, entry.value)
	}
	buf.WriteString("end conf\n")
	return buf.WriteTo(w)
}

func (r *Registry) String() string {
	var buf bytes.Buffer
	_, _ = r.WriteTo(&buf)
	return buf.String()
}
