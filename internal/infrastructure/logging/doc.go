// Package logging provides structured logging built on log/slog.
//
// Every log line carries the service name and version as default fields.
// Components derive their own loggers via With("component", ...) so that
// log output can be filtered per subsystem.
package logging
