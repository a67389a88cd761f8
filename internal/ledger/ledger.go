// Package ledger is the durable, append-only record of per-file outcomes.
//
// The on-disk form is a CSV file with the columns
//
//	filepath,status,timestamp,before_size_mb,after_size_mb,compression_ratio
//
// On Open the existing file is read in full to rebuild the set of paths that
// already have a terminal outcome; rows that are truncated or otherwise
// malformed are skipped. Append serializes writers and fsyncs before it
// returns, so a row acknowledged to a worker survives an immediate kill.
package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ErrAppend wraps every Append failure. Callers treat it as fatal: a lost row
// breaks resume.
var ErrAppend = errors.New("ledger append failed")

// Header is the fixed column order.
var Header = []string{"filepath", "status", "timestamp", "before_size_mb", "after_size_mb", "compression_ratio"}

// TimeFormat is the timestamp layout of the timestamp column.
const TimeFormat = "2006-01-02 15:04:05"

// Outcome is one terminal (or interrupted) attempt at a file.
// Sizes of 0 are unknown and written as empty cells.
type Outcome struct {
	Path   string
	Status Status
	Time   time.Time
	Before int64 // bytes
	After  int64 // bytes
}

// Ratio returns After/Before when both are known.
func (o Outcome) Ratio() (float64, bool) {
	if o.Before <= 0 || o.After <= 0 {
		return 0, false
	}
	return float64(o.After) / float64(o.Before), true
}

func (o Outcome) record() []string {
	ts := o.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	rec := []string{o.Path, o.Status.String(), ts.Format(TimeFormat), mb(o.Before), mb(o.After), ""}
	if r, ok := o.Ratio(); ok {
		rec[5] = fmt.Sprintf("%.3f", r)
	}
	return rec
}

func mb(b int64) string {
	if b <= 0 {
		return ""
	}
	return fmt.Sprintf("%.2f", float64(b)/(1024*1024))
}

// Options configures Open.
type Options struct {
	// RetryFailed leaves failed rows out of the terminal set so those files
	// are attempted again.
	RetryFailed bool
}

// LoadStats describes what Open found on disk.
type LoadStats struct {
	Rows     int // well-formed rows read
	Terminal int // distinct paths in the terminal set
	Corrupt  int // rows skipped as malformed
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	path     string
	f        *os.File
	w        *csv.Writer
	opts     Options
	terminal map[string]struct{}
	loaded   LoadStats
}

// Open reads any existing ledger at path, then opens it for appending.
// A header is written to a new or empty file. If the previous run left a
// final row without its newline, one is added first so the next row starts
// cleanly.
func Open(path string, opts Options) (*Ledger, error) {
	l := &Ledger{path: path, opts: opts, terminal: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if err := l.rebuild(data); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	l.f = f
	l.w = csv.NewWriter(f)

	switch {
	case len(data) == 0:
		err = l.writeRow(Header)
	case data[len(data)-1] != '\n':
		_, err = f.WriteString("\n")
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrAppend, err)
	}
	return l, nil
}

// rebuild parses existing ledger bytes into the terminal set.
func (l *Ledger) rebuild(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				l.loaded.Corrupt++
				continue
			}
			return fmt.Errorf("read ledger: %w", err)
		}
		if len(rec) == len(Header) && rec[0] == Header[0] && rec[1] == Header[1] {
			continue
		}
		if len(rec) != len(Header) || rec[0] == "" {
			l.loaded.Corrupt++
			continue
		}
		st, ok := ParseStatus(rec[1])
		if !ok {
			l.loaded.Corrupt++
			continue
		}
		l.loaded.Rows++
		if l.countsAsDone(st) {
			l.terminal[Key(rec[0])] = struct{}{}
		}
	}
	l.loaded.Terminal = len(l.terminal)
	return nil
}

func (l *Ledger) countsAsDone(st Status) bool {
	if !st.Terminal() {
		return false
	}
	if l.opts.RetryFailed && st.Kind == KindFailed {
		return false
	}
	return true
}

// Key normalizes a path for set membership: cleaned everywhere, and
// case-folded on Windows where the filesystem is case-insensitive.
func Key(path string) string {
	p := filepath.Clean(path)
	if runtime.GOOS == "windows" {
		p = strings.ToLower(p)
	}
	return p
}

// ContainsTerminal reports whether path already has a terminal outcome,
// either from a previous run or appended during this one.
func (l *Ledger) ContainsTerminal(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.terminal[Key(path)]
	return ok
}

// Loaded returns what Open found on disk.
func (l *Ledger) Loaded() LoadStats {
	return l.loaded
}

// Path returns the ledger file path.
func (l *Ledger) Path() string { return l.path }

// Append writes one row and syncs it to disk before returning.
func (l *Ledger) Append(o Outcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return fmt.Errorf("%w: ledger closed", ErrAppend)
	}
	if err := l.writeRow(o.record()); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrAppend, o.Path, err)
	}
	if l.countsAsDone(o.Status) {
		l.terminal[Key(o.Path)] = struct{}{}
	}
	return nil
}

// writeRow must be called with mu held (or before l is shared).
func (l *Ledger) writeRow(rec []string) error {
	if err := l.w.Write(rec); err != nil {
		return err
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return err
	}
	return l.f.Sync()
}

// Close closes the underlying file. Further appends fail.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
