// Package handbrake builds and launches HandBrakeCLI commands.
//
// Build produces the argument vector for one file; Engine.Start runs it
// as a supervised subprocess (see package proc) whose merged output
// carries the "Encoding: task ..." progress lines. Diagnose maps the tail
// of a failed run's output to a short reason for the log.
package handbrake
