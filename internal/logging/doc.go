// Package logging assembles structured slog loggers and formatting helpers used
// across Clipper.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so pipeline code tags log lines with job
// IDs, requester IDs, stages, and correlation IDs. Every logger built here
// passes through a redaction layer: attributes named "url" (or ending in
// "_url") are reduced to scheme, host and a truncated path, and configured
// secrets such as the bot token are replaced before anything is written.
//
// Prefer these constructors over hand-rolled slog setup so new components
// emit data with the same shape and the same redaction guarantees.
package logging
