// Package preflight provides readiness checks for the paths and services
// Clipper depends on.
//
// The daemon runs RunAll after creating its directories and refuses to start
// when a check fails. The CLI "clipper deps" command prints the same results,
// plus the Bot API check when --online is given.
package preflight
