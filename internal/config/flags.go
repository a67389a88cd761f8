package config

// This file implements CLI flag parsing and help text.
// Flags are grouped into pool, engine, behavior, display, and utility.
// Negated flags (e.g. --no-progress) are applied after Parse so Config defaults hold unless set.

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseFlags parses os.Args into cfg. When --config is present the YAML
// file is applied first so that flags always win. On --help or --version it
// prints and exits. On error it returns non-nil (e.g. unknown flag, missing
// positional arg).
func ParseFlags(cfg *Config, version string) error {
	n, fs, err := parseArgs(cfg, os.Args[1:])
	if err != nil {
		return err
	}
	if n.showHelp {
		printUsage(os.Stderr, fs, version)
		os.Exit(0)
	}
	if n.showVersion {
		fmt.Fprintln(os.Stdout, "vidshrink v"+version)
		os.Exit(0)
	}
	return nil
}

// parseArgs does the work of ParseFlags without touching the process, so
// tests can drive it with arbitrary argument lists.
func parseArgs(cfg *Config, args []string) (*negatedFlags, *flag.FlagSet, error) {
	if path := findConfigArg(args); path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, nil, err
		}
	}

	fs := flag.NewFlagSet("vidshrink", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var negated negatedFlags

	definePoolFlags(fs, cfg)
	defineEngineFlags(fs, cfg)
	defineBehaviorFlags(fs, cfg, &negated)
	defineDisplayFlags(fs, cfg, &negated)
	defineUtilityFlags(fs, cfg, &negated)

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	applyNegatedFlags(cfg, &negated)

	if negated.showHelp || negated.showVersion {
		return &negated, fs, nil
	}
	if err := parsePositionalArgs(fs, cfg); err != nil {
		return nil, nil, err
	}
	return &negated, fs, nil
}

// negatedFlags holds boolean flags that are applied after Parse.
// These either invert a default (e.g. noProgress -> ShowProgress=false) or trigger exit (showHelp, showVersion).
type negatedFlags struct {
	noProgress  bool
	noSuspend   bool
	noMenuClear bool
	forceColor  bool
	noColor     bool
	showVersion bool
	showHelp    bool
}

// findConfigArg returns the value of --config / -config without a full
// parse, so the file can be applied before flags override it.
func findConfigArg(args []string) string {
	for i, a := range args {
		if a == "--" {
			return ""
		}
		name := strings.TrimLeft(a, "-")
		if name == a {
			continue
		}
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// definePoolFlags registers -w/--workers and the ledger/temp paths.
func definePoolFlags(fs *flag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of concurrent transcodes")
	fs.IntVar(&cfg.Workers, "w", cfg.Workers, "Same as --workers")
	fs.StringVar(&cfg.LedgerPath, "ledger", cfg.LedgerPath, "Completion ledger CSV path")
	fs.StringVar(&cfg.TempDir, "temp-dir", cfg.TempDir, "Directory for in-progress output")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML config file (applied before flags)")
}

// defineEngineFlags registers HandBrake/ffprobe binaries and the preset.
func defineEngineFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.HandBrakeBin, "handbrake", cfg.HandBrakeBin, "HandBrakeCLI binary")
	fs.StringVar(&cfg.FfprobeBin, "ffprobe", cfg.FfprobeBin, "ffprobe binary")
	fs.StringVar(&cfg.Preset, "preset", cfg.Preset, "HandBrake preset name")
	fs.StringVar(&cfg.Preset, "p", cfg.Preset, "Same as --preset")
	fs.StringVar(&cfg.PresetFile, "preset-file", cfg.PresetFile, "HandBrake preset JSON to import")
	fs.BoolVar(&cfg.EngineVerbose, "engine-verbose", cfg.EngineVerbose, "Pass --verbose=1 to HandBrakeCLI")
}

// defineBehaviorFlags registers dry-run, retry-failed, backups, thresholds and pause behavior.
func defineBehaviorFlags(fs *flag.FlagSet, cfg *Config, n *negatedFlags) {
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Probe and evaluate only; do not transcode")
	fs.BoolVar(&cfg.DryRun, "d", cfg.DryRun, "Same as --dry-run")
	fs.BoolVar(&cfg.RetryFailed, "retry-failed", cfg.RetryFailed, "Retry files recorded as failed")
	fs.BoolVar(&cfg.Backups, "backups", cfg.Backups, "Copy originals to the backups subdir before replacing")
	fs.Float64Var(&cfg.MinImprovement, "min-improvement", cfg.MinImprovement, "Minimum size reduction fraction to keep output")
	fs.Var(&suspendModeValue{&cfg.SuspendMode}, "suspend", "Pause behavior: auto | off")
	fs.BoolVar(&n.noSuspend, "no-suspend", false, "Same as --suspend off")
	fs.DurationVar(&cfg.MenuSettle, "menu-settle", cfg.MenuSettle, "Delay before drawing the pause menu")
	fs.BoolVar(&n.noMenuClear, "no-menu-clear", false, "Do not clear the screen for the pause menu")
}

// defineDisplayFlags registers quiet/verbose, color, progress, --check, --log.
func defineDisplayFlags(fs *flag.FlagSet, cfg *Config, n *negatedFlags) {
	fs.BoolVar(&cfg.Quiet, "quiet", cfg.Quiet, "Only warnings, errors and the summary")
	fs.BoolVar(&cfg.Quiet, "q", cfg.Quiet, "Same as --quiet")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Verbose output")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Same as --verbose")
	fs.BoolVar(&n.noProgress, "no-progress", false, "Disable live progress bars")
	fs.BoolVar(&n.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&n.noColor, "no-color", false, "Disable colored logs")
	fs.BoolVar(&cfg.CheckOnly, "check", false, "Run system diagnostics and exit")
	fs.BoolVar(&cfg.CheckOnly, "c", false, "Same as --check")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "Append logs to file")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "Same as --log")
}

// defineUtilityFlags registers --version and --help (exit after printing).
func defineUtilityFlags(fs *flag.FlagSet, _ *Config, n *negatedFlags) {
	fs.BoolVar(&n.showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&n.showVersion, "V", false, "Same as --version")
	fs.BoolVar(&n.showHelp, "help", false, "Show this help and exit")
	fs.BoolVar(&n.showHelp, "h", false, "Same as --help")
}

// applyNegatedFlags copies negated and override flag values into cfg.
func applyNegatedFlags(cfg *Config, n *negatedFlags) {
	if n.noProgress {
		cfg.ShowProgress = false
	}
	if n.noSuspend {
		cfg.SuspendMode = SuspendOff
	}
	if n.noMenuClear {
		cfg.MenuClear = false
	}
	if n.noColor {
		cfg.ColorMode = ColorNever
	} else if n.forceColor {
		cfg.ColorMode = ColorAlways
	}
}

// parsePositionalArgs sets TargetDir, and Workers when a count follows it:
// `vidshrink /media/videos 8`. Nothing is required in CheckOnly mode.
func parsePositionalArgs(fs *flag.FlagSet, cfg *Config) error {
	args := fs.Args()
	if cfg.CheckOnly {
		return nil
	}
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("need a target directory and an optional worker count (got %d arguments)", len(args))
	}
	cfg.TargetDir = NormalizeDirArg(args[0])
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return fmt.Errorf("worker count must be a positive integer, got %q", args[1])
		}
		cfg.Workers = n
	}
	return nil
}

// printUsage writes the help text. Column-aligned for readability.
func printUsage(w io.Writer, _ *flag.FlagSet, version string) {
	const col1 = 30 // width of "  -x, --long-name <arg>  "
	lines := []struct {
		flags string
		desc  string
	}{
		{"", "vidshrink v" + version + " - batch HandBrake transcoder with resumable ledger"},
		{"", ""},
		{"  vidshrink [OPTIONS] <target_dir> [workers]", ""},
		{"", ""},
		{"Pool", ""},
		{"  -w, --workers <n>", "Concurrent transcodes (default: 4)"},
		{"  --ledger <path>", "Completion ledger CSV (default: transcode_log.csv)"},
		{"  --temp-dir <dir>", "In-progress output directory (default: OS temp)"},
		{"  --config <file>", "YAML config file; flags override it"},
		{"", ""},
		{"Engine", ""},
		{"  --handbrake <bin>", "HandBrakeCLI binary (default: HandBrakeCLI)"},
		{"  --ffprobe <bin>", "ffprobe binary (default: ffprobe)"},
		{"  -p, --preset <name>", "HandBrake preset (default: Fast 1080p30 Subs)"},
		{"  --preset-file <json>", "Preset file passed to --preset-import-file"},
		{"  --engine-verbose", "Pass --verbose=1 to HandBrakeCLI"},
		{"", ""},
		{"Behavior", ""},
		{"  -d, --dry-run", "Probe and evaluate only; do not transcode"},
		{"  --retry-failed", "Retry files the ledger records as failed"},
		{"  --backups", "Copy originals to <target>/backups before replacing"},
		{"  --min-improvement <f>", "Keep output only if at least this much smaller (default: 0)"},
		{"  --suspend <auto|off>", "Suspend transcodes on pause (default: auto)"},
		{"  --no-suspend", "Same as --suspend off"},
		{"  --menu-settle <dur>", "Delay before the pause menu (default: 250ms)"},
		{"  --no-menu-clear", "Do not clear the screen for the pause menu"},
		{"", ""},
		{"Display", ""},
		{"  -q, --quiet", "Only warnings, errors and the summary"},
		{"  -v, --verbose", "Verbose output (engine lines, skip reasons)"},
		{"  --no-progress", "Disable live progress bars"},
		{"  --color", "Force colored logs"},
		{"  --no-color", "Disable colored logs"},
		{"", ""},
		{"Utility", ""},
		{"  -l, --log <path>", "Append logs to file"},
		{"  -c, --check", "System diagnostics (HandBrakeCLI, ffprobe, disk, suspend)"},
		{"  -V, --version", "Print version and exit"},
		{"  -h, --help", "Show this help and exit"},
		{"", ""},
		{"", "Press Ctrl+C during a run to pause: [R]esume, [Q]uit now, [S]hutdown after current jobs."},
	}

	for _, l := range lines {
		if l.flags == "" && l.desc == "" {
			fmt.Fprintln(w)
			continue
		}
		if l.desc == "" {
			fmt.Fprintln(w, l.flags)
			continue
		}
		if l.flags == "" {
			fmt.Fprintln(w, l.desc)
			continue
		}
		padding := col1 - len(l.flags)
		if padding < 1 {
			padding = 1
		}
		fmt.Fprintf(w, "%s%*s%s\n", l.flags, padding, "", l.desc)
	}
}

// flag.Value adapter so the SuspendMode enum can be used with flag.Var.

type suspendModeValue struct{ p *SuspendMode }

func (s *suspendModeValue) String() string {
	if s.p == nil {
		return ""
	}
	return string(*s.p)
}

func (s *suspendModeValue) Set(v string) error {
	switch strings.ToLower(v) {
	case "auto":
		*s.p = SuspendAuto
	case "off":
		*s.p = SuspendOff
	default:
		return fmt.Errorf("invalid suspend mode %q (use 'auto' or 'off')", v)
	}
	return nil
}
