// Package proc starts and controls the transcoding subprocess.
//
// Every child runs in its own process group, so a Ctrl+C delivered to the
// terminal reaches only this program. Whether a pause can actually freeze
// the child is a platform capability: the native implementation uses
// gopsutil's Suspend/Resume (SIGSTOP/SIGCONT on POSIX, NtSuspendProcess on
// Windows); elsewhere, or with suspension disabled, a drain-only
// implementation reports ErrSuspendUnsupported and the caller lets the job
// run to completion instead.
package proc

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
)

// ErrSuspendUnsupported is returned by Suspend and Resume when the process
// cannot be frozen on this platform or in this mode.
var ErrSuspendUnsupported = errors.New("process suspension not supported")

// Suspendable is the pause/teardown capability the pool depends on.
type Suspendable interface {
	Suspend() error
	Resume() error
	Terminate() error
}

// Process is a started, supervised subprocess.
type Process interface {
	Suspendable
	// Kill force-stops the process after Terminate was ignored.
	Kill() error
	// CanSuspend reports whether Suspend can succeed.
	CanSuspend() bool
	Pid() int
	// Output is the merged stdout/stderr stream. It reaches EOF when the
	// child (and anything holding its pipe) exits.
	Output() io.Reader
	// Wait blocks until the process exits. Safe to call more than once.
	Wait() error
	// Close releases the output pipe, unblocking a pending read.
	Close() error
}

// Options configures Start.
type Options struct {
	// DrainOnly disables suspension even where the platform supports it.
	DrainOnly bool
}

// SuspendSupported reports whether this platform has a native suspend.
func SuspendSupported() bool {
	switch runtime.GOOS {
	case "linux", "darwin", "freebsd", "netbsd", "openbsd", "dragonfly",
		"solaris", "illumos", "aix", "windows":
		return true
	}
	return false
}

// Start launches cmd in its own process group with stdout and stderr merged
// into one pipe. cmd.Stdout and cmd.Stderr must be unset.
func Start(cmd *exec.Cmd, opts Options) (Process, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd.Stdout = w
	cmd.Stderr = w
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, err
	}
	// The child holds its own copy of the write end.
	w.Close()

	p := &process{cmd: cmd, out: r, done: make(chan struct{})}
	if !opts.DrainOnly && SuspendSupported() {
		if n, err := newNative(cmd.Process.Pid); err == nil {
			p.ctl = n
		}
	}
	if p.ctl == nil {
		p.ctl = drainOnly{cmd.Process}
	}
	go p.wait()
	return p, nil
}

type control interface {
	Suspendable
	Kill() error
	CanSuspend() bool
}

type process struct {
	cmd *exec.Cmd
	out *os.File
	ctl control

	done    chan struct{}
	waitErr error

	closeOnce sync.Once
	closeErr  error
}

func (p *process) wait() {
	p.waitErr = p.cmd.Wait()
	close(p.done)
}

func (p *process) Suspend() error    { return p.ctl.Suspend() }
func (p *process) Resume() error     { return p.ctl.Resume() }
func (p *process) Terminate() error  { return p.ctl.Terminate() }
func (p *process) Kill() error       { return p.ctl.Kill() }
func (p *process) CanSuspend() bool  { return p.ctl.CanSuspend() }
func (p *process) Pid() int          { return p.cmd.Process.Pid }
func (p *process) Output() io.Reader { return p.out }

func (p *process) Wait() error {
	<-p.done
	return p.waitErr
}

func (p *process) Close() error {
	p.closeOnce.Do(func() { p.closeErr = p.out.Close() })
	return p.closeErr
}

// drainOnly cannot freeze the child; teardown is a hard kill.
type drainOnly struct{ p *os.Process }

func (d drainOnly) Suspend() error   { return ErrSuspendUnsupported }
func (d drainOnly) Resume() error    { return ErrSuspendUnsupported }
func (d drainOnly) Terminate() error { return d.p.Kill() }
func (d drainOnly) Kill() error      { return d.p.Kill() }
func (d drainOnly) CanSuspend() bool { return false }
