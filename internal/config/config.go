// Package config holds runtime configuration: defaults, an optional YAML
// overlay, CLI flag parsing, and validation.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/backmassage/vidshrink/internal/skip"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// SuspendMode selects how a pause treats running transcodes.
type SuspendMode string

const (
	SuspendAuto SuspendMode = "auto" // Suspend subprocesses where the platform allows it (default).
	SuspendOff  SuspendMode = "off"  // Let running jobs finish; only block new dequeues.
)

// Config holds all runtime settings. It is populated by [DefaultConfig],
// overlaid by [LoadFile] when --config is given, and then mutated by
// [ParseFlags] before being passed (by pointer) to packages that need it.
type Config struct {
	// Paths.
	TargetDir  string // Positional argument.
	LedgerPath string // Default: "transcode_log.csv".
	TempDir    string // Default: os.TempDir().
	ConfigFile string // Optional YAML overlay.

	// Pool.
	Workers int // Default: 4.

	// Engine (HandBrakeCLI) and prober.
	HandBrakeBin  string // Default: "HandBrakeCLI".
	FfprobeBin    string // Default: "ffprobe".
	Preset        string // Default: "Fast 1080p30 Subs".
	PresetFile    string // Optional --preset-import-file.
	EngineVerbose bool   // Pass --verbose=1 to the engine.

	// Skip policy and acceptance.
	Thresholds     skip.Thresholds
	MinImprovement float64 // Fraction in [0,1). Default: 0 (any reduction is kept).
	RetryFailed    bool    // Treat failed ledger rows as not done.

	// Discovery.
	Extensions   []string // Lowercase with leading dot.
	Backups      bool     // Copy originals aside before replacing them.
	BackupSubdir string   // Default: "backups". Pruned from discovery.

	// Finalize.
	MoveRetries    int           // Default: 5.
	MoveRetryDelay time.Duration // Default: 15s, doubled per attempt.
	MoveBackoff    float64       // Default: 2.

	// Pause/resume.
	SuspendMode SuspendMode   // Default: "auto".
	MenuSettle  time.Duration // Default: 250ms.
	MenuClear   bool          // Default: true. Clear the screen before the menu.

	// Display and logging.
	Quiet        bool
	Verbose      bool
	ShowProgress bool      // Default: true. Cleared by --no-progress.
	ColorMode    ColorMode // Default: "auto".
	LogFile      string    // Optional log file path.
	CheckOnly    bool      // Run --check diagnostics and exit.
	DryRun       bool

	// LowDiskBytes triggers a warning when the temp dir has less free space.
	LowDiskBytes uint64 // Fixed: 10 GiB.
}

// DefaultConfig returns a Config with every default set. Used as the base
// before [LoadFile] and [ParseFlags] apply overrides.
func DefaultConfig() Config {
	return Config{
		LedgerPath:     "transcode_log.csv",
		TempDir:        os.TempDir(),
		Workers:        4,
		HandBrakeBin:   "HandBrakeCLI",
		FfprobeBin:     "ffprobe",
		Preset:         "Fast 1080p30 Subs",
		Thresholds:     skip.DefaultThresholds(),
		Extensions:     []string{".mp4", ".mkv", ".avi", ".mov", ".wmv", ".flv"},
		BackupSubdir:   "backups",
		MoveRetries:    5,
		MoveRetryDelay: 15 * time.Second,
		MoveBackoff:    2,
		SuspendMode:    SuspendAuto,
		MenuSettle:     250 * time.Millisecond,
		MenuClear:      true,
		ShowProgress:   true,
		ColorMode:      ColorAuto,
		LowDiskBytes:   10 << 30,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks ranges and enum fields. When not in CheckOnly mode it also
// requires a target directory.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	if c.MinImprovement < 0 || c.MinImprovement >= 1 {
		return errors.New("min-improvement must be in [0, 1)")
	}
	if c.MoveRetries < 1 {
		return errors.New("move retries must be at least 1")
	}
	if c.MoveBackoff < 1 {
		return errors.New("move backoff factor must be at least 1")
	}
	if c.MenuSettle < 0 {
		return errors.New("menu-settle must not be negative")
	}
	if c.Quiet && c.Verbose {
		return errors.New("--quiet and --verbose are mutually exclusive")
	}
	if c.Preset == "" {
		return errors.New("preset must not be empty")
	}
	if len(c.Extensions) == 0 {
		return errors.New("at least one file extension is required")
	}
	if c.BackupSubdir == "" || strings.ContainsAny(c.BackupSubdir, `/\`) {
		return errors.New("backup subdir must be a single directory name")
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	switch c.SuspendMode {
	case SuspendAuto, SuspendOff:
		// valid
	default:
		return errors.New("invalid suspend mode (use 'auto' or 'off')")
	}

	for _, t := range c.Thresholds.BitrateTiers {
		if t.MinPixels <= 0 || t.MinBitrate <= 0 {
			return errors.New("bitrate tiers need positive min_pixels and min_bitrate")
		}
	}
	if c.Thresholds.MaxBytesPerHour < 0 {
		return errors.New("max_bytes_per_hour must not be negative")
	}

	if c.CheckOnly {
		return nil
	}
	if c.TargetDir == "" {
		return errors.New("need exactly one target directory")
	}
	if c.LedgerPath == "" {
		return errors.New("ledger path must not be empty")
	}
	return nil
}

// ExtensionSet returns the configured extensions as a lookup map, lowercased
// and dot-prefixed.
func (c *Config) ExtensionSet() map[string]bool {
	set := make(map[string]bool, len(c.Extensions))
	for _, e := range c.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return set
}
