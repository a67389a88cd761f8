package progress

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"unicode/utf8"
)

// maxLine bounds a single token. Longer runs without a separator are cut
// rather than stalling the reader.
const maxLine = 64 * 1024

// ScanLines is a bufio.SplitFunc that ends a line at '\n', '\r' or "\r\n".
// A trailing partial line is returned at EOF.
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
			} else if !atEOF {
				// Need one more byte to tell "\r" from "\r\n".
				return 0, nil, nil
			}
		}
		return i + 1, data[:i], nil
	}
	if len(data) >= maxLine {
		return maxLine, data[:maxLine], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ReadLines scans r with ScanLines and calls fn for each non-blank line,
// with invalid UTF-8 replaced. It returns when r is exhausted. Read errors
// end the scan but any remaining bytes are drained so a writer on the
// other end of a pipe never blocks.
func ReadLines(r io.Reader, fn func(line string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLine)
	sc.Split(ScanLines)
	for sc.Scan() {
		line := sc.Text()
		if !utf8.ValidString(line) {
			line = strings.ToValidUTF8(line, "�")
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		fn(line)
	}
	err := sc.Err()
	if err != nil {
		_, _ = io.Copy(io.Discard, r)
	}
	return err
}
