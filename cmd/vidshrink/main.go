// Command vidshrink batch-transcodes a directory tree with HandBrakeCLI.
//
// It parses flags, validates configuration and paths, and either runs
// system diagnostics (--check) or the worker pool. Outcomes are appended to
// a CSV ledger so an interrupted batch resumes where it stopped.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/backmassage/vidshrink/internal/check"
	"github.com/backmassage/vidshrink/internal/config"
	"github.com/backmassage/vidshrink/internal/control"
	"github.com/backmassage/vidshrink/internal/display"
	"github.com/backmassage/vidshrink/internal/handbrake"
	"github.com/backmassage/vidshrink/internal/ledger"
	"github.com/backmassage/vidshrink/internal/logging"
	"github.com/backmassage/vidshrink/internal/pipeline"
	"github.com/backmassage/vidshrink/internal/probe"
	"github.com/backmassage/vidshrink/internal/progress"
	"github.com/backmassage/vidshrink/internal/term"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Phase 1: Bootstrap. No logger yet, so errors go straight to stderr.
	cfg := config.DefaultConfig()
	if err := config.ParseFlags(&cfg, version); err != nil {
		fmt.Fprintf(os.Stderr, "vidshrink: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "vidshrink: %v\n", err)
		return 1
	}
	term.Configure(cfg.ColorMode)

	// Phase 2: Console. Log lines go through the renderer so progress bars
	// stay pinned below them.
	agg := progress.NewAggregator()
	bars := cfg.ShowProgress && !cfg.Quiet && !cfg.Verbose && term.IsTerminal(os.Stdout)
	renderer := display.NewRenderer(os.Stdout, agg, bars)
	defer renderer.Stop()

	log, err := logging.NewLogger(&cfg, renderer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vidshrink: %v\n", err)
		return 1
	}
	defer log.Close()

	if !cfg.Quiet {
		display.PrintBanner(renderer, version)
	}

	if cfg.CheckOnly {
		if !check.RunCheck(context.Background(), &cfg, log) {
			return 1
		}
		return 0
	}

	// Phase 3: Paths and dependencies.
	root, err := absPath(cfg.TargetDir)
	if err != nil {
		log.Error("Directory not found: %s", cfg.TargetDir)
		return 1
	}
	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		log.Error("Not a directory: %s", cfg.TargetDir)
		return 1
	}
	if err := check.CheckDeps(&cfg); err != nil {
		log.Error("%v", err)
		return 1
	}
	check.WarnLowDisk(&cfg, log)

	log.Info("=== vidshrink v%s (%s) ===", version, commit)
	log.Info("Dir:    %s", root)

	l, err := ledger.Open(cfg.LedgerPath, ledger.Options{RetryFailed: cfg.RetryFailed})
	if err != nil {
		log.Error("Cannot open ledger: %v", err)
		return 1
	}
	defer l.Close()
	log.Info("Ledger: %s", l.Path())
	if ls := l.Loaded(); ls.Rows > 0 {
		log.Info("Ledger: %d rows, %d files done", ls.Rows, ls.Terminal)
		if ls.Corrupt > 0 {
			log.Warn("Ledger: ignored %d malformed rows", ls.Corrupt)
		}
	}

	// Phase 4: Pool state and signal handling. The first interrupt pauses
	// and opens the menu; SIGTERM stops immediately.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := pipeline.NewState(ctx)
	defer st.Close()

	engine := handbrake.NewEngine(handbrake.Options{
		Binary:     cfg.HandBrakeBin,
		Preset:     cfg.Preset,
		PresetFile: cfg.PresetFile,
		Verbose:    cfg.EngineVerbose,
	}, cfg.SuspendMode == config.SuspendOff)

	ctl := control.New(st, log.Named("control"), os.Stdin, os.Stdout, control.Options{
		Settle:  cfg.MenuSettle,
		Clear:   cfg.MenuClear,
		Display: renderer,
	})
	defer ctl.Close()

	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go ctl.Run(ctx, sigCh)
	go renderer.Run(ctx)

	// Phase 5: Run the pool (discover → filter → workers → summary).
	runner := pipeline.NewRunner(&cfg, log, l, st, agg, probe.New(cfg.FfprobeBin), engine)
	stats, err := runner.Run(ctx, root)
	if err != nil {
		log.Error("Run aborted: %v", err)
		return 1
	}
	if stats.Failed > 0 {
		return 1
	}
	return 0
}

// absPath returns the absolute, symlink-resolved path so ledger keys are
// stable across runs started from different working directories.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
