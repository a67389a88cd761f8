// Package check provides system diagnostics (--check mode), the pre-run
// dependency validation (CheckDeps) for HandBrakeCLI and ffprobe, and the
// temp-dir free space warning.
package check

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/backmassage/vidshrink/internal/config"
	"github.com/backmassage/vidshrink/internal/display"
	"github.com/backmassage/vidshrink/internal/handbrake"
)

// Sentinel errors returned by CheckDeps when a required tool is missing.
var (
	ErrHandBrakeNotFound = errors.New("HandBrakeCLI not found")
	ErrFfprobeNotFound   = errors.New("ffprobe not found")
)

// Logger is the subset of logging.Logger that RunCheck needs.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
}

const versionTimeout = 10 * time.Second

// CheckDeps verifies that the engine and prober binaries resolve and that
// the preset file, when given, exists.
func CheckDeps(cfg *config.Config) error {
	if _, err := exec.LookPath(cfg.HandBrakeBin); err != nil {
		return fmt.Errorf("%w: %s", ErrHandBrakeNotFound, cfg.HandBrakeBin)
	}
	if _, err := exec.LookPath(cfg.FfprobeBin); err != nil {
		return fmt.Errorf("%w: %s", ErrFfprobeNotFound, cfg.FfprobeBin)
	}
	if cfg.PresetFile != "" {
		if _, err := os.Stat(cfg.PresetFile); err != nil {
			return fmt.Errorf("preset file: %w", err)
		}
	}
	return nil
}

// RunCheck runs the --check flow: engine and prober versions, pause mode,
// host resources and temp dir space. It is informational and reports
// whether every required piece is usable.
func RunCheck(ctx context.Context, cfg *config.Config, log Logger) bool {
	log.Info("=== System Check ===")
	ok := true

	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	if v, err := handbrake.Version(ctx, cfg.HandBrakeBin); err != nil {
		log.Error("%s: %v", cfg.HandBrakeBin, err)
		ok = false
	} else {
		log.Success("Engine: %s", v)
	}

	if v, err := ffprobeVersion(ctx, cfg.FfprobeBin); err != nil {
		log.Error("%s: %v", cfg.FfprobeBin, err)
		ok = false
	} else {
		log.Success("Prober: %s", v)
	}

	if cfg.PresetFile != "" {
		if _, err := os.Stat(cfg.PresetFile); err != nil {
			log.Error("Preset file: %v", err)
			ok = false
		} else {
			log.Success("Preset file: %s", cfg.PresetFile)
		}
	}
	log.Info("Preset: %s", cfg.Preset)

	if cfg.SuspendMode == config.SuspendOff {
		log.Info("Pause: running jobs finish (suspension disabled)")
	} else {
		log.Info("Pause: running engines are suspended")
	}

	checkHost(ctx, cfg, log)

	if err := checkWritable(cfg.TempDir); err != nil {
		log.Error("Temp dir %s is not writable: %v", cfg.TempDir, err)
		ok = false
	} else {
		WarnLowDisk(cfg, log)
	}
	return ok
}

// checkHost logs CPU and memory so the worker count can be sized.
func checkHost(ctx context.Context, cfg *config.Config, log Logger) {
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		log.Info("CPUs: %d logical, %d workers configured", n, cfg.Workers)
		if cfg.Workers > n {
			log.Warn("More workers than CPUs; encodes will compete for cores")
		}
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		log.Info("Memory: %s available of %s",
			display.FormatBytes(int64(vm.Available)), display.FormatBytes(int64(vm.Total)))
	}
}

// FreeBytes reports the free space on the filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("disk usage %s: %w", path, err)
	}
	return u.Free, nil
}

// WarnLowDisk warns when the temp dir has less than cfg.LowDiskBytes free.
// It reports whether space is low.
func WarnLowDisk(cfg *config.Config, log Logger) bool {
	free, err := FreeBytes(cfg.TempDir)
	if err != nil {
		log.Warn("Cannot read free space: %v", err)
		return false
	}
	if free < cfg.LowDiskBytes {
		log.Warn("Low disk space on %s: %s free", cfg.TempDir, display.FormatBytes(int64(free)))
		return true
	}
	log.Info("Temp dir %s: %s free", cfg.TempDir, display.FormatBytes(int64(free)))
	return false
}

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".vidshrink-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// ffprobeVersion returns the first line of `ffprobe -version`.
func ffprobeVersion(ctx context.Context, binary string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i > 0 {
		line = line[:i]
	}
	return line, nil
}
