package pipeline

import "time"

// RunStats tracks aggregate counters and byte totals across a batch run.
type RunStats struct {
	RunID       string
	Discovered  int
	AlreadyDone int // Terminal in the ledger before the run started.
	Enqueued    int

	Succeeded           int
	Failed              int
	Interrupted         int
	SkippedLowRes       int
	SkippedLikelyLarger int
	SkippedLargerSize   int
	DryRun              int // Would have been transcoded.

	TotalInputBytes  int64 // Successful jobs only.
	TotalOutputBytes int64
	Elapsed          time.Duration
}

// Processed returns the number of jobs that reached an outcome.
func (s *RunStats) Processed() int {
	return s.Succeeded + s.Failed + s.Interrupted + s.Skipped() + s.DryRun
}

// Skipped returns all skipped_* outcomes.
func (s *RunStats) Skipped() int {
	return s.SkippedLowRes + s.SkippedLikelyLarger + s.SkippedLargerSize
}

// SpaceSaved returns the aggregate byte difference between inputs and outputs.
// Positive means outputs are smaller; negative means they grew.
func (s *RunStats) SpaceSaved() int64 {
	return s.TotalInputBytes - s.TotalOutputBytes
}
