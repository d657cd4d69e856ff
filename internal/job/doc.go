// Package job models a single video request and its lifecycle.
//
// A Job moves through a fixed state table (see Next). The routing decision
// out of probing and the post-fetch size check are pure functions so they
// can be exercised without a chat transport or subprocesses. TempPaths
// tracks every filesystem path a job owns and removes them exactly once.
package job
