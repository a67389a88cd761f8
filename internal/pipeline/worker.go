package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/vidshrink/internal/display"
	"github.com/backmassage/vidshrink/internal/handbrake"
	"github.com/backmassage/vidshrink/internal/ledger"
	"github.com/backmassage/vidshrink/internal/logging"
	"github.com/backmassage/vidshrink/internal/proc"
	"github.com/backmassage/vidshrink/internal/progress"
	"github.com/backmassage/vidshrink/internal/skip"
)

// tailLines is how much non-progress engine output is kept for diagnosis.
const tailLines = 20

type worker struct {
	id  int
	r   *Runner
	log *logging.Logger
}

// run takes jobs until the queue is empty or a shutdown is requested.
func (w *worker) run(ctx context.Context, root string, jobs <-chan string) {
	agg := w.r.agg
	agg.Idle(w.id)
	defer agg.Remove(w.id)

	for {
		if !w.r.state.AwaitDequeue(ctx) {
			return
		}
		path, ok := <-jobs
		if !ok {
			return
		}
		w.process(ctx, root, path)
		agg.Idle(w.id)
	}
}

// process handles one file: stat → probe → skip policy → transcode →
// finalize → ledger.
func (w *worker) process(ctx context.Context, root, path string) {
	r, st, agg := w.r, w.r.state, w.r.agg
	log := w.log.With("file", filepath.Base(path))
	agg.Begin(w.id, filepath.Base(path))

	// --- Validate ---
	fi, err := os.Stat(path)
	if err != nil {
		log.Error("Cannot stat file: %v", err)
		w.record(log, ledger.Outcome{Path: path, Status: ledger.Failed()})
		return
	}
	before := fi.Size()

	if st.Stopping() {
		return
	}

	// --- Probe ---
	pr, err := r.prober.Probe(st.Context(), path)
	if err != nil {
		if st.Stopping() {
			w.record(log, ledger.Outcome{Path: path, Status: ledger.Interrupted(), Before: before})
			return
		}
		log.Error("Cannot probe file (possibly corrupt): %v", err)
		w.record(log, ledger.Outcome{Path: path, Status: ledger.Failed(), Before: before})
		return
	}
	if pr.Format.Size <= 0 {
		pr.Format.Size = before
	}
	log.Debug("Video: %s | %s | %s", pr.Resolution(), pr.Codec(), display.FormatBitrateLabel(pr.VideoBitRate()/1000))

	// --- Skip policy ---
	v := skip.Evaluate(pr, r.cfg.Thresholds)
	if v.Skipped() {
		log.Info("Skip: %s", v.Reason())
		w.record(log, ledger.Outcome{Path: path, Status: ledger.Skipped(v), Before: before})
		return
	}

	// --- Dry-run ---
	if r.cfg.DryRun {
		log.Success("[DRY] Would transcode (%s, %s)", pr.Codec(), pr.Resolution())
		log.Debug("[DRY] %s", strings.Join(r.engine.Args(path, "<temp>"), " "))
		st.TallyDryRun()
		return
	}

	// A pause that landed during probing holds the job here.
	held := func() { agg.SetPhase(w.id, progress.Paused) }
	if !st.Hold(ctx, held) {
		return
	}

	// --- Transcode ---
	tmp := filepath.Join(r.cfg.TempDir, "vidshrink-"+uuid.NewString()+filepath.Ext(path))
	agg.SetPhase(w.id, progress.Transcoding)
	log.Info("Transcoding (%s, %s, %s)", pr.Codec(), pr.Resolution(), display.FormatBytes(before))
	start := time.Now()

	log.Debug("Command: %s", strings.Join(r.engine.Args(path, tmp), " "))
	p, err := r.engine.Start(ctx, path, tmp)
	if err != nil {
		if errors.Is(err, handbrake.ErrEngineMissing) {
			log.Error("%v", err)
			st.Abort(err)
			return
		}
		log.Error("Cannot start engine: %v", err)
		w.record(log, ledger.Outcome{Path: path, Status: ledger.Failed(), Before: before})
		return
	}
	res := w.supervise(log, p)

	switch {
	case res.terminated:
		os.Remove(tmp)
		log.Warn("Interrupted")
		w.record(log, ledger.Outcome{Path: path, Status: ledger.Interrupted(), Before: before})
		return
	case res.err != nil && res.paused && st.Snapshot().Shutdown != ShutdownGraceful:
		// A graceful stop asked for this job's real result.
		os.Remove(tmp)
		log.Warn("Engine exited after a pause (%v); will retry next run", res.err)
		w.record(log, ledger.Outcome{Path: path, Status: ledger.Interrupted(), Before: before})
		return
	case res.err != nil:
		os.Remove(tmp)
		reason := handbrake.Diagnose(res.tail)
		if reason == "" {
			reason = res.err.Error()
		}
		log.Error("Transcode failed: %s", reason)
		for _, l := range res.tail {
			log.Debug("  %s", l)
		}
		w.record(log, ledger.Outcome{Path: path, Status: ledger.Failed(), Before: before})
		return
	}

	// --- Size check ---
	agg.SetPhase(w.id, progress.Finishing)
	out, err := os.Stat(tmp)
	if err != nil || out.Size() == 0 {
		os.Remove(tmp)
		log.Error("Engine reported success but produced no output")
		w.record(log, ledger.Outcome{Path: path, Status: ledger.Failed(), Before: before})
		return
	}
	after := out.Size()
	ratio := 1.0
	if before > 0 {
		ratio = float64(after) / float64(before)
	}
	if float64(after) >= float64(before)*(1-r.cfg.MinImprovement) {
		os.Remove(tmp)
		log.Warn("Output not smaller (%s -> %s), keeping original", display.FormatBytes(before), display.FormatBytes(after))
		w.record(log, ledger.Outcome{Path: path, Status: ledger.LargerSize(ratio), Before: before, After: after})
		return
	}

	// --- Finalize ---
	if err := r.mover.finalize(st.Context(), root, r.backupDir(), path, tmp); err != nil {
		if st.Stopping() {
			os.Remove(tmp)
			log.Warn("Interrupted while replacing the original")
			w.record(log, ledger.Outcome{Path: path, Status: ledger.Interrupted(), Before: before})
			return
		}
		log.Error("%v (encoded output kept at %s)", err, tmp)
		w.record(log, ledger.Outcome{Path: path, Status: ledger.Failed(), Before: before})
		return
	}
	log.Success("Done in %s: %s -> %s (%.1f%% of original)",
		time.Since(start).Round(time.Second), display.FormatBytes(before), display.FormatBytes(after), ratio*100)
	w.record(log, ledger.Outcome{Path: path, Status: ledger.Success(), Before: before, After: after})
}

// record appends o to the ledger and tallies it. A ledger failure aborts
// the run. In dry-run mode nothing is written.
func (w *worker) record(log *logging.Logger, o ledger.Outcome) {
	st := w.r.state
	if w.r.cfg.DryRun {
		st.Tally(o)
		return
	}
	o.Time = time.Now()
	if err := w.r.ledger.Append(o); err != nil {
		log.Error("Cannot record outcome, stopping: %v", err)
		st.Abort(fmt.Errorf("record %s: %w", o.Path, err))
		return
	}
	st.Tally(o)
	log.Debug("Recorded %s", o.Status)
}

type result struct {
	err        error
	terminated bool // torn down by an immediate shutdown
	paused     bool // suspended at least once
	tail       []string
}

// supervise streams p's output into the aggregator and applies pause,
// resume and shutdown requests until p exits and its output is drained.
func (w *worker) supervise(log *logging.Logger, p proc.Process) result {
	r, st, agg := w.r, w.r.state, w.r.agg
	defer p.Close()

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		if err := progress.ReadLines(p.Output(), func(l string) { lines <- l }); err != nil {
			log.Debug("Output read ended: %v", err)
		}
	}()
	exited := make(chan error, 1)
	go func() { exited <- p.Wait() }()

	var (
		res        result
		done       bool
		suspended  bool
		draining   bool
		killTimer  <-chan time.Time
		closeTimer <-chan time.Time
	)

	apply := func(snap Snapshot) {
		switch {
		case snap.Shutdown == ShutdownImmediate:
			if res.terminated || done {
				return
			}
			if suspended {
				_ = p.Resume()
				suspended = false
			}
			log.Debug("Terminating engine (pid %d)", p.Pid())
			if err := p.Terminate(); err != nil {
				log.Warn("Terminate failed: %v", err)
			}
			res.terminated = true
			agg.SetPhase(w.id, progress.Finishing)
			killTimer = time.After(r.killGrace)
		case snap.Paused && !suspended && !draining && !done:
			if p.CanSuspend() {
				err := p.Suspend()
				if err == nil {
					suspended, res.paused = true, true
					agg.SetPhase(w.id, progress.Paused)
					return
				}
				if !errors.Is(err, proc.ErrSuspendUnsupported) {
					log.Warn("Suspend failed, letting the job finish: %v", err)
				}
			}
			draining = true
			agg.Annotate(w.id, "draining")
		case !snap.Paused && suspended:
			if err := p.Resume(); err != nil {
				log.Warn("Resume failed: %v", err)
			}
			suspended = false
			agg.SetPhase(w.id, progress.Transcoding)
		case !snap.Paused && draining:
			draining = false
			agg.Annotate(w.id, "")
		}
	}

	changed := st.Changed()
	apply(st.Snapshot())

	tail := make([]string, 0, tailLines)
	for !done || lines != nil {
		select {
		case l, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if agg.Observe(w.id, l) {
				continue
			}
			if len(tail) == tailLines {
				tail = append(tail[:0], tail[1:]...)
			}
			tail = append(tail, l)
			log.Debug("engine: %s", l)
		case err := <-exited:
			done, res.err = true, err
			closeTimer = time.After(r.closeGrace)
		case <-closeTimer:
			// A grandchild still holds the pipe open.
			closeTimer = nil
			p.Close()
		case <-killTimer:
			killTimer = nil
			if !done {
				log.Warn("Engine ignored terminate, killing")
				_ = p.Kill()
			}
		case <-changed:
			changed = st.Changed()
			apply(st.Snapshot())
		}
	}
	res.tail = tail
	return res
}
