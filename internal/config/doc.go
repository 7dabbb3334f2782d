// Package config loads the confloader tool's own runtime settings from
// multiple sources (YAML settings file, environment variables, CLI flags) with
// precedence: CLI flags > YAML settings > Environment variables > Defaults.
// It exposes strongly typed settings to the rest of the application.
package config
