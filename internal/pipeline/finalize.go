package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/backmassage/vidshrink/internal/logging"
)

// partSuffix marks a cross-device copy in progress next to its destination.
const partSuffix = ".vidshrink-part"

// mover replaces originals with encoded output.
type mover struct {
	retries int
	delay   time.Duration
	backoff float64
	log     *logging.Logger
}

// finalize optionally backs up src under root/backupDir, then moves tmp
// over src. Each failed move is retried after a growing delay; once the
// attempts run out tmp is left in place for manual recovery.
func (m *mover) finalize(ctx context.Context, root, backupDir, src, tmp string) error {
	if backupDir != "" {
		dst, err := backupPath(root, backupDir, src)
		if err != nil {
			return err
		}
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("backup %s: %w", src, err)
		}
		m.log.Debug("Backed up original to %s", dst)
	}

	delay := m.delay
	for attempt := 1; ; attempt++ {
		err := moveFile(tmp, src)
		if err == nil {
			return nil
		}
		if attempt >= m.retries {
			return fmt.Errorf("replace %s after %d attempts: %w", src, attempt, err)
		}
		m.log.Warn("Replace failed (attempt %d/%d): %v; retrying in %s", attempt, m.retries, err, delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("replace %s: %w", src, ctx.Err())
		}
		delay = time.Duration(float64(delay) * m.backoff)
	}
}

// backupPath mirrors src's position under root into root/dir.
func backupPath(root, dir, src string) (string, error) {
	rel, err := filepath.Rel(root, src)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("backup: %s is outside %s", src, root)
	}
	return filepath.Join(root, dir, rel), nil
}

// moveFile renames src to dst, falling back to copy-and-remove when the
// rename fails (typically across devices). The copy lands next to dst and
// is renamed into place so dst is never half-written.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	part := dst + partSuffix
	if err := copyFile(src, part); err != nil {
		os.Remove(part)
		return err
	}
	if err := os.Rename(part, dst); err != nil {
		os.Remove(part)
		return err
	}
	return os.Remove(src)
}

// copyFile copies src to dst, creating dst's directory and syncing the data.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
