// Package config loads, normalizes, and validates segcheck configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// SEGCHECK_BIND and SEGCHECK_DATA_DIR. The Config type centralizes every knob
// the coordinator daemon and the CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
