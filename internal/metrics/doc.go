// Package metrics exposes Prometheus collectors for the job pipeline and a
// small HTTP server for /metrics and /healthz.
//
// Collectors are registered on an explicit registry so tests and the daemon
// never share global state. Metrics implements the workflow observer hooks;
// label values are limited to states, stages, reasons and rejection causes to
// keep cardinality bounded.
package metrics
