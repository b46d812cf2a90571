// Package logging constructs slog loggers from Scout configuration.
package logging
