// Package config loads, normalizes, and validates kura configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, overlays a .env file that sits next to the
// config, and honours KURA_* environment overrides. The Config type
// centralizes every knob the CLI and the download scheduler need, including
// the classifier keyword tables, so policy changes never require a rebuild.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
