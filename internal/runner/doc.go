// Package runner executes the external fetch, encode and probe tools.
//
// Every invocation runs in its own process group inside a job-owned working
// directory. Cancelling the context or hitting the per-invocation timeout
// signals the whole group (SIGTERM, then SIGKILL after a grace period), so no
// descendant outlives the call. Output lines are forwarded to an optional
// callback for progress parsing; the retained diagnostic tail is redacted.
//
// The command-line syntax of each tool lives in Toolchain so the underlying
// binaries can be swapped in one place.
package runner
