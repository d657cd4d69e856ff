// Package probe reads size and duration for a remote video without
// downloading it, using the fetcher's metadata mode.
//
// Platforms often omit file sizes; a missing size is not an error because
// duration alone is enough for an estimate. Failures are classified as
// unreachable, unsupported or timeout so the chat layer can phrase a useful
// suggestion.
package probe
