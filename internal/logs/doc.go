// Package logs reads the daemon's log file for the CLI.
//
// Last returns the trailing lines with bounded memory, Follow polls for new
// lines and survives truncation, and Filter narrows output to one job or a
// minimum level in both the console and JSON formats.
package logs
