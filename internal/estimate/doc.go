// Package estimate predicts encoded output sizes from a video's duration and
// an encoding preset.
//
// The preset table is static configuration: each entry carries the target
// video bitrate and an overhead fraction for container and audio bytes. The
// estimator is pure so the workflow can decide whether a large source is
// worth fetching before any subprocess runs.
package estimate
