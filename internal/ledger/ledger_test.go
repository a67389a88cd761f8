package ledger

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/vidshrink/internal/skip"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   string
	}{
		{"success", Success(), "success"},
		{"failed", Failed(), "failed"},
		{"interrupted", Interrupted(), "interrupted"},
		{"low res", Skipped(skip.Verdict{Kind: skip.LowResolution, Width: 1280, Height: 720}), "skipped_low_res_1280x720"},
		{"efficient codec", Skipped(skip.Verdict{Kind: skip.AlreadyEfficientCodec, Codec: "hevc"}), "skipped_likely_larger_already_efficient_codec_hevc"},
		{"low bitrate", Skipped(skip.Verdict{Kind: skip.LowBitrate, Mbps: 2.14, Width: 1920, Height: 1080}), "skipped_likely_larger_low_bitrate_2.1_Mbps_for_1920x1080"},
		{"compact", Skipped(skip.Verdict{Kind: skip.AlreadyCompact, MBPerHour: 412.4}), "skipped_likely_larger_already_compact_412_MB/hour"},
		{"larger size", LargerSize(1.0456), "skipped_larger_size_1.046"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in       string
		kind     Kind
		ok       bool
		terminal bool
	}{
		{"success", KindSuccess, true, true},
		{"failed", KindFailed, true, true},
		{"interrupted", KindInterrupted, true, false},
		{"skipped_low_res_640x480", KindSkippedLowRes, true, true},
		{"skipped_likely_larger_already_efficient_codec_av1", KindSkippedLikelyLarger, true, true},
		{"skipped_larger_size_1.200", KindSkippedLargerSize, true, true},
		{"succ", KindUnknown, false, false},
		{"", KindUnknown, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			st, ok := ParseStatus(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, st.Kind)
			assert.Equal(t, tt.terminal, st.Terminal())
			if ok {
				assert.Equal(t, tt.in, st.String(), "parsed status should render verbatim")
			}
		})
	}
}

func TestOpen_NewFileWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "transcode_log.csv")
	l, err := Open(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())
	require.NoError(t, l.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(Header, ",")+"\n", string(b))
}

func TestAppend_RowFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	l, err := Open(path, Options{})
	require.NoError(t, err)

	ts := time.Date(2025, 3, 4, 5, 6, 7, 0, time.Local)
	require.NoError(t, l.Append(Outcome{
		Path:   "/media/a,b.mp4",
		Status: Success(),
		Time:   ts,
		Before: 100 * 1024 * 1024,
		After:  60 * 1024 * 1024,
	}))
	require.NoError(t, l.Append(Outcome{Path: "/media/c.mkv", Status: Failed(), Time: ts}))
	require.NoError(t, l.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"/media/a,b.mp4", "success", "2025-03-04 05:06:07", "100.00", "60.00", "0.600"}, rows[1])
	assert.Equal(t, []string{"/media/c.mkv", "failed", "2025-03-04 05:06:07", "", "", ""}, rows[2])
}

func TestOpen_RebuildTerminalSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	content := strings.Join([]string{
		"filepath,status,timestamp,before_size_mb,after_size_mb,compression_ratio",
		"/m/P.mp4,success,2025-01-01 00:00:00,10.00,6.00,0.600",
		"/m/Q.mp4,interrupted,2025-01-01 00:00:00,10.00,,",
		"/m/R.mkv,skipped_likely_larger_already_efficient_codec_hevc,2025-01-01 00:00:00,5.00,,",
		"/m/F.avi,failed,2025-01-01 00:00:00,,,",
		"/m/X.mp4,bogus,2025-01-01 00:00:00,,,",
		"/m/T.mp4,succ",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	l, err := Open(path, Options{})
	require.NoError(t, err)
	defer l.Close()

	assert.True(t, l.ContainsTerminal("/m/P.mp4"))
	assert.False(t, l.ContainsTerminal("/m/Q.mp4"), "interrupted must not block retry")
	assert.True(t, l.ContainsTerminal("/m/R.mkv"))
	assert.True(t, l.ContainsTerminal("/m/F.avi"), "failed is terminal by default")
	assert.False(t, l.ContainsTerminal("/m/X.mp4"))
	assert.False(t, l.ContainsTerminal("/m/T.mp4"), "truncated trailing row is skipped")
	assert.True(t, l.ContainsTerminal("/m/../m/P.mp4"), "paths are cleaned before lookup")

	st := l.Loaded()
	assert.Equal(t, 4, st.Rows)
	assert.Equal(t, 3, st.Terminal)
	assert.Equal(t, 2, st.Corrupt)
}

func TestOpen_RetryFailed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	require.NoError(t, os.WriteFile(path, []byte("/m/F.avi,failed,2025-01-01 00:00:00,,,\n"), 0o644))

	l, err := Open(path, Options{RetryFailed: true})
	require.NoError(t, err)
	defer l.Close()
	assert.False(t, l.ContainsTerminal("/m/F.avi"))

	require.NoError(t, l.Append(Outcome{Path: "/m/F.avi", Status: Failed()}))
	assert.False(t, l.ContainsTerminal("/m/F.avi"))
}

func TestOpen_TruncatedTailGetsNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	require.NoError(t, os.WriteFile(path, []byte("/m/P.mp4,success,2025-01-01 00:00:00,1.00,0.50,0.500\n/m/Q.mp4,succ"), 0o644))

	l, err := Open(path, Options{})
	require.NoError(t, err)
	require.NoError(t, l.Append(Outcome{Path: "/m/Q.mp4", Status: Success(), Before: 1 << 20, After: 1 << 19}))
	require.NoError(t, l.Close())

	l2, err := Open(path, Options{})
	require.NoError(t, err)
	defer l2.Close()
	assert.True(t, l2.ContainsTerminal("/m/Q.mp4"), "row after a truncated tail must parse")
	assert.Equal(t, 1, l2.Loaded().Corrupt)
}

func TestAppend_UpdatesTerminalSet(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "log.csv"), Options{})
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Append(Outcome{Path: "/m/c.mov", Status: Interrupted()}))
	assert.False(t, l.ContainsTerminal("/m/c.mov"))
	require.NoError(t, l.Append(Outcome{Path: "/m/c.mov", Status: LargerSize(1.1)}))
	assert.True(t, l.ContainsTerminal("/m/c.mov"))
}

func TestAppend_AfterCloseFails(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "log.csv"), Options{})
	require.NoError(t, err)
	require.NoError(t, l.Close())
	err = l.Append(Outcome{Path: "/m/a.mp4", Status: Success()})
	assert.ErrorIs(t, err, ErrAppend)
}

func TestAppend_ConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	l, err := Open(path, Options{})
	require.NoError(t, err)

	const workers, perWorker = 8, 125
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				errs <- l.Append(Outcome{
					Path:   fmt.Sprintf("/media/worker %d/file, %03d.mkv", w, i),
					Status: Skipped(skip.Verdict{Kind: skip.LowResolution, Width: 640, Height: 480}),
					Before: int64(i+1) * 1024 * 1024,
				})
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.NoError(t, l.Close())

	rows := readRows(t, path)
	require.Len(t, rows, workers*perWorker+1)
	seen := make(map[string]bool)
	for _, r := range rows[1:] {
		require.Len(t, r, len(Header))
		assert.Equal(t, "skipped_low_res_640x480", r[1])
		seen[r[0]] = true
	}
	assert.Len(t, seen, workers*perWorker)
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	require.NoError(t, err)
	return rows
}
