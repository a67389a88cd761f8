// Package pipeline runs a batch: it discovers candidate files, drops the
// ones the ledger already has a terminal outcome for, and fans the rest out
// to a fixed pool of workers.
//
// Each worker probes its file, applies the skip policy, runs the engine as a
// supervised subprocess while feeding its output to the progress
// aggregator, finalizes the result and appends one outcome to the ledger.
// Pause and shutdown requests arrive through the shared State; workers
// react by suspending, resuming or terminating their subprocess.
package pipeline
