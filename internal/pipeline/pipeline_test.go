package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var testExts = map[string]bool{".mkv": true, ".mp4": true, ".avi": true, ".mov": true}

// --- Discover tests ---

func TestDiscover_FiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "movie.mkv")
	touch(t, dir, "show.mp4")
	touch(t, dir, "music.mp3")
	touch(t, dir, "readme.txt")
	touch(t, dir, "anime.avi")
	touch(t, dir, "clip.mov")

	files, err := Discover(dir, testExts, "")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	want := []string{"anime.avi", "clip.mov", "movie.mkv", "show.mp4"}
	got := basenames(files)
	if !sliceEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDiscover_PrunesBackupsAtRootOnly(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "main.mkv")
	os.MkdirAll(filepath.Join(dir, "backups"), 0o755)
	touch(t, filepath.Join(dir, "backups"), "main.mkv")
	os.MkdirAll(filepath.Join(dir, "Show", "backups"), 0o755)
	touch(t, filepath.Join(dir, "Show", "backups"), "kept.mkv")

	files, err := Discover(dir, testExts, "backups")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{
		filepath.Join(dir, "Show", "backups", "kept.mkv"),
		filepath.Join(dir, "main.mkv"),
	}
	if !sliceEqual(files, want) {
		t.Errorf("got %v, want %v", files, want)
	}
}

func TestDiscover_RecursiveAndSorted(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "Show", "Season 01"), 0o755)
	os.MkdirAll(filepath.Join(dir, "Show", "Season 02"), 0o755)
	touch(t, filepath.Join(dir, "Show", "Season 02"), "ep01.mkv")
	touch(t, filepath.Join(dir, "Show", "Season 01"), "ep02.mkv")
	touch(t, filepath.Join(dir, "Show", "Season 01"), "ep01.mkv")

	files, err := Discover(dir, testExts, "backups")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(files) != 3 {
		t.Fatalf("got %d files, want 3", len(files))
	}
	for i := 1; i < len(files); i++ {
		if files[i] < files[i-1] {
			t.Errorf("not sorted: %q before %q", files[i-1], files[i])
		}
	}
}

func TestDiscover_EmptyDir(t *testing.T) {
	files, err := Discover(t.TempDir(), testExts, "")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("got %d files, want 0", len(files))
	}
}

func TestDiscover_MissingRoot(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "nope"), testExts, ""); err == nil {
		t.Error("expected an error for a missing root")
	}
}

func TestDiscover_CaseInsensitiveExtension(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "MOVIE.MKV")
	touch(t, dir, "Show.Mp4")

	files, err := Discover(dir, testExts, "")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("got %d files, want 2 (case-insensitive ext matching)", len(files))
	}
}

// --- RunStats tests ---

func TestRunStats_SpaceSaved(t *testing.T) {
	s := RunStats{TotalInputBytes: 1000, TotalOutputBytes: 600}
	if got := s.SpaceSaved(); got != 400 {
		t.Errorf("SpaceSaved: got %d, want 400", got)
	}

	s2 := RunStats{TotalInputBytes: 100, TotalOutputBytes: 150}
	if got := s2.SpaceSaved(); got != -50 {
		t.Errorf("SpaceSaved (negative): got %d, want -50", got)
	}
}

func TestRunStats_Processed(t *testing.T) {
	s := RunStats{Succeeded: 2, Failed: 1, Interrupted: 1, SkippedLowRes: 1, SkippedLikelyLarger: 2, SkippedLargerSize: 1}
	if got := s.Skipped(); got != 4 {
		t.Errorf("Skipped: got %d, want 4", got)
	}
	if got := s.Processed(); got != 8 {
		t.Errorf("Processed: got %d, want 8", got)
	}
}

// --- Finalize tests ---

func TestBackupPath(t *testing.T) {
	root := filepath.FromSlash("/media")
	got, err := backupPath(root, "backups", filepath.FromSlash("/media/Show/a.mkv"))
	if err != nil {
		t.Fatalf("backupPath: %v", err)
	}
	if want := filepath.FromSlash("/media/backups/Show/a.mkv"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if _, err := backupPath(root, "backups", filepath.FromSlash("/other/a.mkv")); err == nil {
		t.Error("expected an error for a path outside root")
	}
}

func TestMoveFile_ReplacesDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tmp.mkv")
	dst := filepath.Join(dir, "movie.mkv")
	os.WriteFile(src, []byte("new"), 0o644)
	os.WriteFile(dst, []byte("original"), 0o644)

	if err := moveFile(src, dst); err != nil {
		t.Fatalf("moveFile: %v", err)
	}
	b, _ := os.ReadFile(dst)
	if string(b) != "new" {
		t.Errorf("dst = %q, want %q", b, "new")
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("src still exists: %v", err)
	}
}

func TestCopyFile_CreatesParents(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mp4")
	os.WriteFile(src, []byte("video"), 0o644)
	dst := filepath.Join(dir, "backups", "x", "a.mp4")

	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copyFile: %v", err)
	}
	b, _ := os.ReadFile(dst)
	if string(b) != "video" {
		t.Errorf("dst = %q", b)
	}
}

// --- Helpers ---

func touch(t *testing.T, dir, name string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func basenames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}

func sliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
