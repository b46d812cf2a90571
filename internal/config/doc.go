// Package config loads, validates, and normalizes Scout's TOML configuration.
//
// Configuration is read from ~/.config/scout/config.toml by default and can
// be overridden per invocation. Paths are tilde-expanded and made absolute
// during loading so the rest of the codebase never handles raw user input.
package config
