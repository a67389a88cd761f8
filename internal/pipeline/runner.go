package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/vidshrink/internal/config"
	"github.com/backmassage/vidshrink/internal/display"
	"github.com/backmassage/vidshrink/internal/ledger"
	"github.com/backmassage/vidshrink/internal/logging"
	"github.com/backmassage/vidshrink/internal/probe"
	"github.com/backmassage/vidshrink/internal/proc"
	"github.com/backmassage/vidshrink/internal/progress"
)

// Prober reports media metadata for a file.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.ProbeResult, error)
}

// Transcoder starts an encode of input into output. Args reports the
// command line Start would run.
type Transcoder interface {
	Args(input, output string) []string
	Start(ctx context.Context, input, output string) (proc.Process, error)
}

const (
	defaultKillGrace  = 10 * time.Second
	defaultCloseGrace = 2 * time.Second
)

// Runner is the pool scheduler.
type Runner struct {
	cfg    *config.Config
	log    *logging.Logger
	ledger *ledger.Ledger
	state  *State
	agg    *progress.Aggregator
	prober Prober
	engine Transcoder
	mover  *mover

	// killGrace is how long a terminated engine gets before it is killed;
	// closeGrace how long its output may stay open after it exits.
	killGrace  time.Duration
	closeGrace time.Duration
}

// NewRunner wires a Runner. All arguments are required.
func NewRunner(
	cfg *config.Config,
	log *logging.Logger,
	l *ledger.Ledger,
	st *State,
	agg *progress.Aggregator,
	prober Prober,
	engine Transcoder,
) *Runner {
	return &Runner{
		cfg:    cfg,
		log:    log,
		ledger: l,
		state:  st,
		agg:    agg,
		prober: prober,
		engine: engine,
		mover: &mover{
			retries: cfg.MoveRetries,
			delay:   cfg.MoveRetryDelay,
			backoff: cfg.MoveBackoff,
			log:     log.Named("finalize"),
		},
		killGrace:  defaultKillGrace,
		closeGrace: defaultCloseGrace,
	}
}

func (r *Runner) backupDir() string {
	if !r.cfg.Backups {
		return ""
	}
	return r.cfg.BackupSubdir
}

// Run is the top-level batch entry point. It discovers files under root,
// filters out those with a terminal ledger entry, runs the worker pool to
// completion or shutdown, and returns aggregate stats. The error is the
// fatal one that aborted the run, if any; job-level failures are only
// counted.
func (r *Runner) Run(ctx context.Context, root string) (RunStats, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := r.log.With("run", runID[:8])

	files, err := Discover(root, r.cfg.ExtensionSet(), r.cfg.BackupSubdir)
	if err != nil {
		return RunStats{RunID: runID}, fmt.Errorf("discover %s: %w", root, err)
	}

	jobs := make(chan string, len(files))
	var done int
	for _, f := range files {
		if r.ledger.ContainsTerminal(f) {
			done++
			continue
		}
		jobs <- f
	}
	close(jobs)
	enqueued := len(jobs)

	logBatchHeader(r.cfg, log, len(files), done, enqueued)

	workers := r.cfg.Workers
	if workers > enqueued {
		workers = enqueued
	}
	var wg sync.WaitGroup
	for i := 1; i <= workers; i++ {
		w := &worker{id: i, r: r, log: r.log.Named(fmt.Sprintf("worker-%d", i))}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx, root, jobs)
		}()
	}
	wg.Wait()

	stats := r.state.Stats()
	stats.RunID = runID
	stats.Discovered = len(files)
	stats.AlreadyDone = done
	stats.Enqueued = enqueued
	stats.Elapsed = time.Since(start)

	err = r.state.Err()
	logSummary(r.cfg, log, &stats, r.state.Snapshot().Shutdown, len(jobs))
	return stats, err
}

// --- Logging helpers ---

func logBatchHeader(cfg *config.Config, log *logging.Logger, found, done, enqueued int) {
	log.Info("Found %d files, %d already done, %d queued", found, done, enqueued)
	log.Info("Workers: %d, preset: %s", cfg.Workers, cfg.Preset)
	if cfg.MinImprovement > 0 {
		log.Info("Keep output only if at least %.0f%% smaller", cfg.MinImprovement*100)
	}
	if cfg.Backups {
		log.Info("Backups: originals copied to %s/", cfg.BackupSubdir)
	}
	if cfg.SuspendMode == config.SuspendOff {
		log.Info("Pause: running jobs finish (suspension disabled)")
	}
	if cfg.DryRun {
		log.Info("Dry run: nothing will be transcoded or recorded")
	}
}

func logSummary(cfg *config.Config, log *logging.Logger, stats *RunStats, mode ShutdownMode, left int) {
	log.Report("==============================")
	log.Report("Run %s finished in %s", stats.RunID, stats.Elapsed.Round(time.Second))
	log.Report("  Files: %d found, %d already done, %d queued, %d processed",
		stats.Discovered, stats.AlreadyDone, stats.Enqueued, stats.Processed())
	log.Report("  Success: %d  Failed: %d  Interrupted: %d",
		stats.Succeeded, stats.Failed, stats.Interrupted)
	log.Report("  Skipped: %d low-res, %d likely larger, %d larger after encode",
		stats.SkippedLowRes, stats.SkippedLikelyLarger, stats.SkippedLargerSize)
	if mode != ShutdownNone && left > 0 {
		log.Report("  Not started (%s shutdown): %d", mode, left)
	}

	if cfg.DryRun {
		log.Report("  Would transcode: %d", stats.DryRun)
		log.Report("  Total space saved: n/a (dry run)")
		return
	}

	saved := stats.SpaceSaved()
	if saved >= 0 {
		log.Report("  Total space saved: %s (input %s -> output %s)",
			display.FormatBytes(saved),
			display.FormatBytes(stats.TotalInputBytes),
			display.FormatBytes(stats.TotalOutputBytes))
	} else {
		log.Report("  Total space saved: %s (overall output is larger)",
			display.FormatBytesWithSign(saved))
	}
}
