// Package application provides application initialization and dependency wiring.
// It registers the schema, loads the configuration tree into a registry, and
// builds the diagnostics router and HTTP server, keeping the main package
// focused on CLI parsing and orchestration.
package application
