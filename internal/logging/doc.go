// Package logging wraps log/slog with the handlers and typed attribute
// helpers used across the daemon.
//
// Two output formats are supported: "console" renders compact single-line
// records for interactive use and the daemon log file, "json" emits
// structured records for ingestion. Components attach a stable "component"
// attribute via NewComponentLogger so log lines remain greppable.
package logging
