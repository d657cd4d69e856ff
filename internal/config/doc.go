// Package config loads, normalizes, and validates Clipper configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BOT_TOKEN and ALLOWED_USER_ID, including values from a local .env file. The
// Config type centralizes every knob the daemon and CLI need: the upload
// ceiling, per-operation timeouts, the encoding preset table, and the
// whitelist/settings store backend.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a consistent preset table, and clear validation errors.
package config
