// Package services defines shared utilities consumed by the workflow and the
// external integrations around it.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, requester IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures from the
//     prober, the process runner, and the chat transport can be classified
//     into terminal job reasons and metrics labels.
//
// Use these helpers when wiring new pipeline steps so operational behaviour
// (error handling, observability) stays uniform.
package services
