// Package registry holds the set of configuration keys an application expects,
// each with an optional default value. Keys must be registered before a
// configuration file is loaded; the loader rejects any key it has not seen
// registered. Resolved values are read back through Entry's typed accessors.
package registry
