package ledger

import (
	"fmt"
	"strings"

	"github.com/backmassage/vidshrink/internal/skip"
)

// Kind is the category of an Outcome.
type Kind int

const (
	KindUnknown Kind = iota
	KindSuccess
	KindFailed
	KindInterrupted
	KindSkippedLowRes
	KindSkippedLikelyLarger
	KindSkippedLargerSize
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailed:
		return "failed"
	case KindInterrupted:
		return "interrupted"
	case KindSkippedLowRes:
		return "skipped_low_res"
	case KindSkippedLikelyLarger:
		return "skipped_likely_larger"
	case KindSkippedLargerSize:
		return "skipped_larger_size"
	}
	return "unknown"
}

// Status is an Outcome's status with its detail kept structured. It is
// rendered to the ledger's string form only by String.
type Status struct {
	Kind    Kind
	Verdict skip.Verdict // KindSkippedLowRes, KindSkippedLikelyLarger
	Ratio   float64      // KindSkippedLargerSize: after/before

	raw string // set when parsed back from disk
}

// Success, Failed and Interrupted are the detail-free statuses.
func Success() Status     { return Status{Kind: KindSuccess} }
func Failed() Status      { return Status{Kind: KindFailed} }
func Interrupted() Status { return Status{Kind: KindInterrupted} }

// Skipped maps a non-Proceed skip verdict to its status.
func Skipped(v skip.Verdict) Status {
	if v.LikelyLarger() {
		return Status{Kind: KindSkippedLikelyLarger, Verdict: v}
	}
	return Status{Kind: KindSkippedLowRes, Verdict: v}
}

// LargerSize is the status for an encode that did not shrink the file.
func LargerSize(ratio float64) Status {
	return Status{Kind: KindSkippedLargerSize, Ratio: ratio}
}

// String renders the ledger form, e.g. "skipped_low_res_1280x720".
func (s Status) String() string {
	if s.raw != "" {
		return s.raw
	}
	switch s.Kind {
	case KindSkippedLowRes, KindSkippedLikelyLarger:
		return s.Kind.String() + "_" + s.Verdict.Detail()
	case KindSkippedLargerSize:
		return fmt.Sprintf("%s_%.3f", s.Kind, s.Ratio)
	}
	return s.Kind.String()
}

// Terminal reports whether the status marks the file as done for resume
// purposes. Interrupted and unknown statuses never do.
func (s Status) Terminal() bool {
	return s.Kind != KindUnknown && s.Kind != KindInterrupted
}

// ParseStatus classifies a status string read from disk. Detail suffixes are
// preserved verbatim but not re-parsed.
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	var k Kind
	switch {
	case s == "success":
		k = KindSuccess
	case s == "failed":
		k = KindFailed
	case s == "interrupted":
		k = KindInterrupted
	case strings.HasPrefix(s, "skipped_low_res"):
		k = KindSkippedLowRes
	case strings.HasPrefix(s, "skipped_likely_larger"):
		k = KindSkippedLikelyLarger
	case strings.HasPrefix(s, "skipped_larger_size"):
		k = KindSkippedLargerSize
	default:
		return Status{}, false
	}
	return Status{Kind: k, raw: s}, true
}
