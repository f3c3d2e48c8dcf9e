// Package config loads, normalizes, and validates the TOML configuration
// that drives batch runs: source tables, remote workflow access, polling
// policy, and local directories.
package config
