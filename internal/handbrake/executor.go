package handbrake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/backmassage/vidshrink/internal/proc"
)

// Engine launches HandBrakeCLI jobs.
type Engine struct {
	opts    Options
	procOpt proc.Options
}

// NewEngine returns an Engine. drainOnly disables subprocess suspension.
func NewEngine(o Options, drainOnly bool) *Engine {
	return &Engine{opts: o, procOpt: proc.Options{DrainOnly: drainOnly}}
}

// Args returns the command Start would run, for dry-run and debug logs.
func (e *Engine) Args(input, output string) []string {
	return Build(e.opts, input, output)
}

// Start launches the encode of input into output in its own process group.
// Cancelling ctx kills the child; normal teardown goes through the returned
// Process instead. stdin is detached so the engine never competes with the
// pause menu for keystrokes.
func (e *Engine) Start(ctx context.Context, input, output string) (proc.Process, error) {
	args := Build(e.opts, input, output)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = nil

	p, err := proc.Start(cmd, e.procOpt)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("%w: %s: %w", ErrEngineMissing, e.opts.Binary, err)
		}
		return nil, fmt.Errorf("start %s: %w", e.opts.Binary, err)
	}
	return p, nil
}

// Version runs `HandBrakeCLI --version` and returns the first line that
// names HandBrake.
func Version(ctx context.Context, binary string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, "--version").CombinedOutput()
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "HandBrake") {
			return line, nil
		}
	}
	return strings.TrimSpace(string(out)), nil
}
