// Package api serves a read-only HTTP view of a loaded configuration
// registry: health, the entry listing, single typed lookups, the text dump,
// and schema type checks.
package api
