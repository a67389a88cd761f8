// Package progress turns HandBrakeCLI output into per-worker progress
// snapshots for the renderer.
//
// HandBrake rewrites its status line in place with carriage returns, e.g.
//
//	Encoding: task 1 of 1, 45.67 % (23.45 fps, avg 24.12 fps, ETA 00h15m42s)
//
// so output is split on either '\r' or '\n' (see ScanLines). Lines that do
// not match the grammar are ignored for progress purposes.
package progress

import (
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Phase is a worker's position in its job lifecycle.
type Phase int

const (
	Idle Phase = iota
	Probing
	Transcoding
	Paused
	Finishing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Probing:
		return "probing"
	case Transcoding:
		return "transcoding"
	case Paused:
		return "paused"
	case Finishing:
		return "finishing"
	}
	return "unknown"
}

// Update is one parsed progress line.
type Update struct {
	Task    int
	Tasks   int
	Percent float64
	FPS     float64 // 0 when the line carries no rate section
	AvgFPS  float64
	ETA     time.Duration // 0 when unknown
}

var reProgress = regexp.MustCompile(
	`Encoding: task (\d+) of (\d+), (\d+(?:\.\d+)?) %` +
		`(?: \((\d+(?:\.\d+)?) fps, avg (\d+(?:\.\d+)?) fps, ETA (\d+)h(\d+)m(\d+)s\))?`)

// ParseLine extracts progress from one line of engine output. Malformed or
// unrelated lines return ok=false; ParseLine never panics on arbitrary input.
func ParseLine(line string) (Update, bool) {
	m := reProgress.FindStringSubmatch(line)
	if m == nil {
		return Update{}, false
	}
	u := Update{
		Task:    atoi(m[1]),
		Tasks:   atoi(m[2]),
		Percent: atof(m[3]),
	}
	if u.Percent > 100 {
		u.Percent = 100
	}
	if m[4] != "" {
		u.FPS = atof(m[4])
		u.AvgFPS = atof(m[5])
		u.ETA = time.Duration(atoi(m[6]))*time.Hour +
			time.Duration(atoi(m[7]))*time.Minute +
			time.Duration(atoi(m[8]))*time.Second
	}
	return u, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// Snapshot is the latest known state of one worker. Readers get copies.
type Snapshot struct {
	Worker  int
	File    string
	Phase   Phase
	Percent float64
	FPS     float64
	ETA     time.Duration
	Started time.Time
	Note    string // short annotation, e.g. "draining" when suspend is unavailable
}

// Aggregator holds one Snapshot per worker. Writes are last-write-wins per
// worker; there is no ordering across workers.
type Aggregator struct {
	mu      sync.RWMutex
	workers map[int]*Snapshot
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{workers: make(map[int]*Snapshot)}
}

func (a *Aggregator) slot(worker int) *Snapshot {
	s, ok := a.workers[worker]
	if !ok {
		s = &Snapshot{Worker: worker}
		a.workers[worker] = s
	}
	return s
}

// Begin marks worker as probing file with progress reset.
func (a *Aggregator) Begin(worker int, file string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	*a.slot(worker) = Snapshot{Worker: worker, File: file, Phase: Probing, Started: time.Now()}
}

// SetPhase changes the worker's phase, keeping file and progress.
func (a *Aggregator) SetPhase(worker int, phase Phase) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.slot(worker)
	s.Phase = phase
	if phase != Paused {
		s.Note = ""
	}
}

// Annotate sets the worker's note.
func (a *Aggregator) Annotate(worker int, note string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.slot(worker).Note = note
}

// Observe feeds one output line. It reports whether the line carried progress.
func (a *Aggregator) Observe(worker int, line string) bool {
	u, ok := ParseLine(line)
	if !ok {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.slot(worker)
	s.Percent = u.Percent
	if u.FPS > 0 || u.ETA > 0 {
		s.FPS = u.FPS
		s.ETA = u.ETA
	}
	return true
}

// Idle clears the worker's job.
func (a *Aggregator) Idle(worker int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	*a.slot(worker) = Snapshot{Worker: worker, Phase: Idle}
}

// Remove drops the worker entirely (used when its goroutine exits).
func (a *Aggregator) Remove(worker int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.workers, worker)
}

// Get returns a copy of one worker's snapshot.
func (a *Aggregator) Get(worker int) (Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.workers[worker]
	if !ok {
		return Snapshot{}, false
	}
	return *s, true
}

// Snapshots returns copies of all workers' snapshots ordered by worker ID.
func (a *Aggregator) Snapshots() []Snapshot {
	a.mu.RLock()
	out := make([]Snapshot, 0, len(a.workers))
	for _, s := range a.workers {
		out = append(out, *s)
	}
	a.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Worker < out[j].Worker })
	return out
}
