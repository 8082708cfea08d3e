// Package config loads, validates, and defaults the TOML configuration for
// the scrobbler daemon and CLI.
//
// Load resolves the config path (explicit flag, then ~/.config/mps), decodes
// on top of Default, expands user paths, and validates. Components receive a
// *Config and read plain fields; nothing re-reads the file at runtime except
// the settings store, which has its own file.
package config
