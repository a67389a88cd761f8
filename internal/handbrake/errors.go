package handbrake

import (
	"errors"
	"regexp"
)

// ErrEngineMissing is returned by Engine.Start when the HandBrakeCLI binary
// cannot be executed at all. It wraps exec.ErrNotFound where that applies,
// and is fatal to the whole run.
var ErrEngineMissing = errors.New("HandBrakeCLI not found or not executable")

// Pre-compiled patterns for classifying the tail of a failed run. Checked
// in order by Diagnose; the first match wins.
var diagnoses = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`(?i)No title found|scan: unrecognized file type|libhb: scan thread found 0 valid title`), "unreadable input"},
	{regexp.MustCompile(`(?i)Invalid preset|Preset .* not found|Could not import preset`), "unknown preset"},
	{regexp.MustCompile(`(?i)No space left on device|ENOSPC`), "disk full"},
	{regexp.MustCompile(`(?i)Permission denied|Access is denied`), "permission denied"},
	{regexp.MustCompile(`(?i)Failed to open output|avformat_write_header failed|Error opening output`), "cannot write output"},
	{regexp.MustCompile(`(?i)Encode failed|encavcodec.*failed|error while encoding`), "encoder error"},
}

// Diagnose scans the last lines of engine output, newest first, and returns
// a short reason, or "" when nothing recognizable was printed.
func Diagnose(tail []string) string {
	for i := len(tail) - 1; i >= 0; i-- {
		for _, d := range diagnoses {
			if d.re.MatchString(tail[i]) {
				return d.reason
			}
		}
	}
	return ""
}
