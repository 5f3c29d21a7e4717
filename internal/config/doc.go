// Package config loads, normalizes, and validates comictag configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the COMICTAG_SOURCE_DIR and
// COMICTAG_OUTPUT_DIR environment fallbacks. Extension lists are lowercased and
// dotted so the catalog scanner can compare them directly.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
