// Package control turns interrupt signals into pool state changes.
//
// The first Ctrl+C pauses the pool (workers suspend their engines) and
// opens a blocking menu on the terminal:
//
//	[R] resume   [Q] quit now   [S] stop after current jobs
//
// Quit terminates running engines and their jobs are recorded as
// interrupted; stop lets them finish and dequeues nothing further. An
// interrupt during a graceful stop, or SIGTERM at any time, escalates to
// an immediate shutdown.
package control

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	xterm "golang.org/x/term"

	"github.com/backmassage/vidshrink/internal/logging"
	"github.com/backmassage/vidshrink/internal/pipeline"
	"github.com/backmassage/vidshrink/internal/term"
)

// Choice is an operator decision from the pause menu.
type Choice int

const (
	Resume Choice = iota
	Quit
	Graceful
)

func (c Choice) String() string {
	switch c {
	case Quit:
		return "quit"
	case Graceful:
		return "graceful"
	}
	return "resume"
}

// ctrlC is what Ctrl+C reads as once the terminal is in raw mode.
const ctrlC = 0x03

// Suppressor is implemented by the progress renderer: while suppressed it
// stops drawing so the menu is not overwritten.
type Suppressor interface {
	Suppress(on bool)
}

// Options configures a Controller.
type Options struct {
	// Settle is waited after pausing, before the menu is drawn, so
	// in-flight output lands first.
	Settle time.Duration
	// Clear clears the screen before drawing the menu.
	Clear bool
	// Display is paused while the menu is open. May be nil.
	Display Suppressor
}

// Controller is the pause/resume controller.
type Controller struct {
	state *pipeline.State
	log   *logging.Logger
	out   io.Writer
	rd    *bufio.Reader
	opts  Options

	fd  int
	raw bool // in is a terminal: read single keys in raw mode

	mu    sync.Mutex
	saved *xterm.State
}

// New returns a Controller reading choices from in and drawing the menu on
// out. When in is a terminal, keys are read one at a time in raw mode.
func New(st *pipeline.State, log *logging.Logger, in io.Reader, out io.Writer, opts Options) *Controller {
	c := &Controller{
		state: st,
		log:   log,
		out:   out,
		rd:    bufio.NewReader(in),
		opts:  opts,
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(f) {
		c.fd = int(f.Fd())
		c.raw = true
	}
	return c
}

// Run handles signals from sigs until ctx is done.
func (c *Controller) Run(ctx context.Context, sigs <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			c.handle(ctx, sig, sigs)
		}
	}
}

// Close restores the terminal if a menu read was cut short.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saved != nil {
		_ = xterm.Restore(c.fd, c.saved)
		c.saved = nil
	}
}

func (c *Controller) handle(ctx context.Context, sig os.Signal, sigs <-chan os.Signal) {
	st := c.state
	if sig == syscall.SIGTERM {
		c.log.Warn("Received %v, stopping now", sig)
		st.Shutdown(pipeline.ShutdownImmediate)
		return
	}

	switch st.Snapshot().Shutdown {
	case pipeline.ShutdownGraceful:
		c.log.Warn("Interrupt during graceful stop, stopping now")
		st.Shutdown(pipeline.ShutdownImmediate)
		return
	case pipeline.ShutdownImmediate:
		return
	}
	if !st.Pause() {
		return
	}

	if d := c.opts.Display; d != nil {
		d.Suppress(true)
		defer d.Suppress(false)
	}
	if c.opts.Settle > 0 {
		select {
		case <-time.After(c.opts.Settle):
		case <-ctx.Done():
		}
	}

	// The menu owns stdin, so signals are watched alongside it: further
	// interrupts are spent, SIGTERM still stops the pool.
	stop := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		for {
			select {
			case <-stop:
				return
			case sig := <-sigs:
				c.duringMenu(sig)
			}
		}
	}()

	choice := c.prompt()
	close(stop)
	<-watched
drain:
	for {
		select {
		case sig := <-sigs:
			c.duringMenu(sig)
		default:
			break drain
		}
	}

	if st.Stopping() {
		return
	}
	c.apply(choice)
}

func (c *Controller) duringMenu(sig os.Signal) {
	if sig != syscall.SIGTERM || c.state.Stopping() {
		return
	}
	c.log.Warn("Received %v, stopping now", sig)
	c.state.Shutdown(pipeline.ShutdownImmediate)
}

func (c *Controller) apply(choice Choice) {
	st := c.state
	switch choice {
	case Quit:
		c.log.Warn("Quitting: terminating running jobs")
		st.Shutdown(pipeline.ShutdownImmediate)
	case Graceful:
		c.log.Info("Stopping after running jobs finish")
		st.Shutdown(pipeline.ShutdownGraceful)
	default:
		c.log.Info("Resuming")
		st.Resume()
	}
}

// prompt draws the menu and blocks until a valid key. End of input
// resumes.
func (c *Controller) prompt() Choice {
	nl := "\n"
	if c.raw {
		// Raw mode turns off output post-processing.
		nl = "\r\n"
	}
	if c.opts.Clear {
		fmt.Fprint(c.out, term.ClearScreen)
	}
	title := color.New(color.FgYellow, color.Bold)
	key := color.New(color.FgCyan, color.Bold)

	fmt.Fprint(c.out, nl)
	title.Fprint(c.out, "Paused.")
	fmt.Fprint(c.out, " Running jobs are on hold."+nl)
	fmt.Fprintf(c.out, "  %s Resume%s", key.Sprint("[R]"), nl)
	fmt.Fprintf(c.out, "  %s Quit now (running jobs recorded as interrupted)%s", key.Sprint("[Q]"), nl)
	fmt.Fprintf(c.out, "  %s Stop after running jobs finish%s", key.Sprint("[S]"), nl)

	for {
		fmt.Fprint(c.out, "Choice [R/Q/S]: ")
		b, err := c.readKey()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.log.Warn("Cannot read menu choice: %v", err)
			}
			fmt.Fprint(c.out, nl)
			return Resume
		}
		if b == ctrlC {
			fmt.Fprint(c.out, "^C"+nl)
			continue
		}
		if ch, ok := choiceFor(b); ok {
			if c.raw {
				fmt.Fprintf(c.out, "%c%s", b, nl)
			}
			return ch
		}
		if c.raw {
			fmt.Fprintf(c.out, "%c%s", b, nl)
		}
		fmt.Fprint(c.out, "Please press R, Q or S."+nl)
	}
}

func choiceFor(b byte) (Choice, bool) {
	switch b {
	case 'r', 'R':
		return Resume, true
	case 'q', 'Q':
		return Quit, true
	case 's', 'S':
		return Graceful, true
	}
	return Resume, false
}

// readKey returns one key press: a single byte in raw mode, otherwise the
// first non-blank byte of the next line.
func (c *Controller) readKey() (byte, error) {
	if c.raw {
		c.makeRaw()
		defer c.Close()
		return c.rd.ReadByte()
	}
	for {
		line, err := c.rd.ReadString('\n')
		if s := strings.TrimSpace(line); s != "" {
			return s[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

func (c *Controller) makeRaw() {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := xterm.MakeRaw(c.fd)
	if err != nil {
		c.log.Debug("Raw mode unavailable: %v", err)
		return
	}
	c.saved = st
}
