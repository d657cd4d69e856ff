// Command clipper runs the video bot and offers operator utilities: config
// scaffolding, whitelist management, preset and estimate inspection, job
// history, dependency checks and a test alert.
package main
