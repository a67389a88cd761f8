package display

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/backmassage/vidshrink/internal/progress"
	"github.com/backmassage/vidshrink/internal/term"
)

const (
	barWidth     = 24
	nameWidth    = 32
	redrawPeriod = 500 * time.Millisecond
)

var (
	phaseColor = map[progress.Phase]*color.Color{
		progress.Probing:     color.New(color.FgBlue),
		progress.Transcoding: color.New(color.FgGreen),
		progress.Paused:      color.New(color.FgYellow),
		progress.Finishing:   color.New(color.FgCyan),
	}
	dim = color.New(color.Faint)
)

// Renderer draws one progress line per busy worker at the bottom of the
// terminal. It is also the console writer for log output: each Write lifts
// the bars, prints the log line and redraws below it.
//
// A disabled Renderer passes writes straight through and never draws.
type Renderer struct {
	out     io.Writer
	agg     *progress.Aggregator
	enabled bool

	mu         sync.Mutex
	drawn      int // lines currently on screen
	suppressed bool
	stopped    bool
}

// NewRenderer returns a Renderer writing to out.
func NewRenderer(out io.Writer, agg *progress.Aggregator, enabled bool) *Renderer {
	return &Renderer{out: out, agg: agg, enabled: enabled}
}

// Write implements io.Writer.
func (r *Renderer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active() {
		return r.out.Write(p)
	}
	r.clear()
	n, err := r.out.Write(p)
	r.draw()
	return n, err
}

// SupportsColor lets hclog's AutoColor follow the resolved color mode when
// the renderer is its output.
func (r *Renderer) SupportsColor() bool { return term.Enabled() }

// Run redraws periodically until ctx is done or Stop is called.
func (r *Renderer) Run(ctx context.Context) {
	if !r.enabled {
		return
	}
	t := time.NewTicker(redrawPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Stop()
			return
		case <-t.C:
			if !r.Redraw() {
				return
			}
		}
	}
}

// Redraw repaints the bars. It reports false once the renderer is stopped.
func (r *Renderer) Redraw() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return false
	}
	if r.active() {
		r.clear()
		r.draw()
	}
	return true
}

// Suppress lifts the bars and stops drawing while on, e.g. while the pause
// menu owns the terminal.
func (r *Renderer) Suppress(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if on && r.active() {
		r.clear()
	}
	r.suppressed = on
}

// Stop removes the bars for good. Later writes pass straight through.
func (r *Renderer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active() {
		r.clear()
	}
	r.stopped = true
}

func (r *Renderer) active() bool {
	return r.enabled && !r.suppressed && !r.stopped
}

func (r *Renderer) clear() {
	if r.drawn == 0 {
		return
	}
	fmt.Fprint(r.out, term.CursorUp(r.drawn))
	r.drawn = 0
}

func (r *Renderer) draw() {
	now := time.Now()
	var b strings.Builder
	n := 0
	for _, s := range r.agg.Snapshots() {
		if s.Phase == progress.Idle {
			continue
		}
		b.WriteString(FormatBar(s, now))
		b.WriteByte('\n')
		n++
	}
	if n == 0 {
		return
	}
	fmt.Fprint(r.out, b.String())
	r.drawn = n
}

// FormatBar renders one worker line:
//
//	[2] movie.mkv                        [#########...............]  37.5%  24.1 fps  ETA 0:12:40
func FormatBar(s progress.Snapshot, now time.Time) string {
	filled := int(s.Percent / 100 * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)

	c, ok := phaseColor[s.Phase]
	if !ok {
		c = dim
	}
	line := fmt.Sprintf("[%d] %-*s [%s] %5.1f%%", s.Worker, nameWidth, truncate(s.File, nameWidth), c.Sprint(bar), s.Percent)

	switch s.Phase {
	case progress.Transcoding:
		if s.FPS > 0 {
			line += fmt.Sprintf("  %.1f fps", s.FPS)
		}
		if s.ETA > 0 {
			line += "  ETA " + FormatClock(s.ETA)
		}
	default:
		line += "  " + c.Sprint(s.Phase.String())
	}
	if s.Note != "" {
		line += " " + dim.Sprintf("(%s)", s.Note)
	}
	if !s.Started.IsZero() {
		line += dim.Sprintf("  %s", FormatClock(now.Sub(s.Started)))
	}
	return line
}

// truncate shortens s to n runes, keeping the tail.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n+1:])
}
