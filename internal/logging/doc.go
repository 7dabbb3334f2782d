// Package logging builds the zap logger shared by the CLI and the diagnostics
// server.
package logging
