// Package logging provides the leveled, printf-style logger used across the
// tool. It is a thin facade over hashicorp/go-hclog: console output goes
// through an intercept logger and the optional --log file is a registered
// sink, so every sub-logger (per worker, per component) reaches both.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/backmassage/vidshrink/internal/config"
)

const timeFormat = "2006-01-02 15:04:05"

// Logger provides leveled, optionally colored logging with optional file sink.
// Sub-loggers from Named and With share the parent's sinks and file.
type Logger struct {
	hc     hclog.Logger
	report hclog.Logger
	shared *shared
}

type shared struct {
	mu      sync.Mutex
	main    hclog.InterceptLogger
	summary hclog.InterceptLogger
	sink    hclog.SinkAdapter
	file    *os.File
}

// NewLogger builds the console logger on out (os.Stdout when nil) and, when
// cfg.LogFile is set, opens it in append mode as a plain-text sink. Call
// Close when done.
func NewLogger(cfg *config.Config, out io.Writer) (*Logger, error) {
	if out == nil {
		out = os.Stdout
	}

	level := hclog.Info
	switch {
	case cfg.Verbose:
		level = hclog.Debug
	case cfg.Quiet:
		level = hclog.Warn
	}

	color := colorOption(cfg.ColorMode)
	main := hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:            "vidshrink",
		Level:           level,
		Output:          out,
		TimeFormat:      timeFormat,
		Color:           color,
		ColorHeaderOnly: true,
	})
	// The summary always prints, even under --quiet.
	summary := hclog.NewInterceptLogger(&hclog.LoggerOptions{
		Name:            "summary",
		Level:           hclog.Info,
		Output:          out,
		TimeFormat:      timeFormat,
		Color:           color,
		ColorHeaderOnly: true,
	})

	s := &shared{main: main, summary: summary}

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		fileLevel := hclog.Info
		if cfg.Verbose {
			fileLevel = hclog.Debug
		}
		s.file = f
		s.sink = hclog.NewSinkAdapter(&hclog.LoggerOptions{
			Level:      fileLevel,
			Output:     f,
			TimeFormat: timeFormat,
			Color:      hclog.ColorOff,
		})
		main.RegisterSink(s.sink)
		summary.RegisterSink(s.sink)
	}

	return &Logger{hc: main, report: summary, shared: s}, nil
}

func colorOption(mode config.ColorMode) hclog.ColorOption {
	switch mode {
	case config.ColorAlways:
		return hclog.ForceColor
	case config.ColorNever:
		return hclog.ColorOff
	default:
		return hclog.AutoColor
	}
}

// Named returns a sub-logger whose lines carry name (e.g. "worker-2").
func (l *Logger) Named(name string) *Logger {
	return &Logger{hc: l.hc.Named(name), report: l.report, shared: l.shared}
}

// With returns a sub-logger that appends the key/value pairs to every line.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{hc: l.hc.With(args...), report: l.report, shared: l.shared}
}

// Hclog exposes the underlying logger for components that take an hclog.Logger.
func (l *Logger) Hclog() hclog.Logger { return l.hc }

// Close detaches and closes the log file if one was opened.
func (l *Logger) Close() error {
	s := l.shared
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	s.main.DeregisterSink(s.sink)
	s.summary.DeregisterSink(s.sink)
	err := s.file.Close()
	s.file = nil
	return err
}

// Info logs at INFO level.
func (l *Logger) Info(format string, args ...interface{}) {
	l.hc.Info(fmt.Sprintf(format, args...))
}

// Success logs a completed action at INFO level with a check mark.
func (l *Logger) Success(format string, args ...interface{}) {
	l.hc.Info("✓ " + fmt.Sprintf(format, args...))
}

// Warn logs at WARN level.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.hc.Warn(fmt.Sprintf(format, args...))
}

// Error logs at ERROR level.
func (l *Logger) Error(format string, args ...interface{}) {
	l.hc.Error(fmt.Sprintf(format, args...))
}

// Debug logs at DEBUG level; it only reaches the console with --verbose.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.hc.IsDebug() {
		return
	}
	l.hc.Debug(fmt.Sprintf(format, args...))
}

// Report logs summary lines that print regardless of --quiet.
func (l *Logger) Report(format string, args ...interface{}) {
	l.report.Info(fmt.Sprintf(format, args...))
}
