// Package workflow drives submitted URLs through probe, size decision,
// optional confirmation, fetch, encode and upload.
//
// The Manager owns the requester to active-job map. Submit checks the gate,
// claims the requester's slot under the manager mutex and starts one worker
// goroutine per job. The worker is the only writer of its job; everything
// else reads snapshots. Whatever way the worker exits (terminal state,
// cancellation, shutdown or panic) the deferred finalizer removes the job's
// temporary paths, releases the slot, records history and publishes the
// terminal status.
//
// The package never imports the chat transport. Outer packages implement the
// Notifier, Uploader, Recorder, Observer and Alerter interfaces declared here.
package workflow
