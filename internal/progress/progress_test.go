package progress

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		ok   bool
		want Update
	}{
		{
			name: "full line",
			line: "Encoding: task 1 of 1, 45.67 % (23.45 fps, avg 24.12 fps, ETA 00h15m42s)",
			ok:   true,
			want: Update{Task: 1, Tasks: 1, Percent: 45.67, FPS: 23.45, AvgFPS: 24.12, ETA: 15*time.Minute + 42*time.Second},
		},
		{
			name: "early line without rates",
			line: "Encoding: task 1 of 1, 0.52 %",
			ok:   true,
			want: Update{Task: 1, Tasks: 1, Percent: 0.52},
		},
		{
			name: "second pass",
			line: "Encoding: task 2 of 2, 100.00 % (80.00 fps, avg 79.10 fps, ETA 00h00m00s)",
			ok:   true,
			want: Update{Task: 2, Tasks: 2, Percent: 100, FPS: 80, AvgFPS: 79.1},
		},
		{
			name: "leading noise",
			line: "\x1b[K Encoding: task 1 of 1, 12 %",
			ok:   true,
			want: Update{Task: 1, Tasks: 1, Percent: 12},
		},
		{name: "log line", line: "[12:00:01] starting job", ok: false},
		{name: "truncated", line: "Encoding: task 1 of 1, 4", ok: false},
		{name: "empty", line: "", ok: false},
		{name: "binary garbage", line: "\xff\xfe\x00Encoding: \x00", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAggregator_LastWriteWins(t *testing.T) {
	a := NewAggregator()
	a.Begin(1, "a.mp4")
	a.SetPhase(1, Transcoding)

	assert.True(t, a.Observe(1, "Encoding: task 1 of 1, 10.00 % (20.00 fps, avg 20.00 fps, ETA 00h01m00s)"))
	assert.False(t, a.Observe(1, "x264 [info]: frame I:12"))
	assert.True(t, a.Observe(1, "Encoding: task 1 of 1, 12.50 %"))

	s, ok := a.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a.mp4", s.File)
	assert.Equal(t, Transcoding, s.Phase)
	assert.Equal(t, 12.5, s.Percent)
	assert.Equal(t, time.Minute, s.ETA, "rate-less line keeps the last ETA")

	a.Idle(1)
	s, _ = a.Get(1)
	assert.Equal(t, Idle, s.Phase)
	assert.Empty(t, s.File)
}

func TestAggregator_SnapshotsSorted(t *testing.T) {
	a := NewAggregator()
	for _, w := range []int{3, 1, 2} {
		a.Begin(w, "f")
	}
	got := a.Snapshots()
	require.Len(t, got, 3)
	for i, s := range got {
		assert.Equal(t, i+1, s.Worker)
	}
	a.Remove(2)
	assert.Len(t, a.Snapshots(), 2)
}

func TestAggregator_ConcurrentObserve(t *testing.T) {
	a := NewAggregator()
	var wg sync.WaitGroup
	for w := 1; w <= 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			a.Begin(w, "x.mkv")
			for i := 0; i <= 100; i++ {
				a.Observe(w, fmt.Sprintf("Encoding: task 1 of 1, %d.00 %%", i))
				_ = a.Snapshots()
			}
		}(w)
	}
	wg.Wait()
	for _, s := range a.Snapshots() {
		assert.Equal(t, 100.0, s.Percent)
	}
}

func TestReadLines_CarriageReturns(t *testing.T) {
	input := "HandBrake 1.7.0\n" +
		"Encoding: task 1 of 1, 1.00 %\r" +
		"Encoding: task 1 of 1, 2.00 %\r\n" +
		"\r\n" +
		"Encoding: task 1 of 1, 3.00 %"
	var lines []string
	err := ReadLines(strings.NewReader(input), func(l string) { lines = append(lines, l) })
	require.NoError(t, err)
	assert.Equal(t, []string{
		"HandBrake 1.7.0",
		"Encoding: task 1 of 1, 1.00 %",
		"Encoding: task 1 of 1, 2.00 %",
		"Encoding: task 1 of 1, 3.00 %",
	}, lines)
}

func TestReadLines_LongLineIsCut(t *testing.T) {
	long := strings.Repeat("x", maxLine+10) + "\nEncoding: task 1 of 1, 5 %\n"
	var n int
	var last string
	err := ReadLines(strings.NewReader(long), func(l string) { n++; last = l })
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "Encoding: task 1 of 1, 5 %", last)
}

func TestReadLines_InvalidUTF8(t *testing.T) {
	var got string
	err := ReadLines(strings.NewReader("bad \xff byte\n"), func(l string) { got = l })
	require.NoError(t, err)
	assert.Equal(t, "bad � byte", got)
}
