// Package daemon coordinates the long-running Clipper process.
//
// It wires the workflow manager, the chat poller and the optional metrics
// server into a single lifecycle with flock-based locking to prevent two bots
// from polling the same token. Lifecycle events are forwarded to the operator
// alert service.
//
// Keep orchestration logic here: pipeline behavior lives in workflow and chat
// handling in telegram while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
