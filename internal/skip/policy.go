// Package skip decides, from probe metadata alone, whether a file is worth
// transcoding. Evaluate is pure: no I/O, no clock, no globals.
package skip

import (
	"fmt"
	"sort"
	"strings"

	"github.com/backmassage/vidshrink/internal/probe"
)

// Kind tags a Verdict.
type Kind int

const (
	Proceed Kind = iota
	AlreadyEfficientCodec
	LowResolution
	LowBitrate
	AlreadyCompact
)

func (k Kind) String() string {
	switch k {
	case Proceed:
		return "proceed"
	case AlreadyEfficientCodec:
		return "already_efficient_codec"
	case LowResolution:
		return "low_resolution"
	case LowBitrate:
		return "low_bitrate"
	case AlreadyCompact:
		return "already_compact"
	}
	return "unknown"
}

// Verdict is the result of Evaluate. Only the fields relevant to Kind are set.
type Verdict struct {
	Kind      Kind
	Codec     string
	Width     int
	Height    int
	Mbps      float64
	MBPerHour float64
}

// Skipped reports whether the verdict is anything other than Proceed.
func (v Verdict) Skipped() bool { return v.Kind != Proceed }

// LikelyLarger reports whether the verdict belongs to the "transcoding would
// probably grow the file" family.
func (v Verdict) LikelyLarger() bool {
	switch v.Kind {
	case AlreadyEfficientCodec, LowBitrate, AlreadyCompact:
		return true
	}
	return false
}

// Detail renders the verdict's structured fields in the ledger's
// underscore-joined form, e.g. "low_bitrate_2.1_Mbps_for_1920x1080".
func (v Verdict) Detail() string {
	switch v.Kind {
	case AlreadyEfficientCodec:
		return "already_efficient_codec_" + v.Codec
	case LowResolution:
		return fmt.Sprintf("%dx%d", v.Width, v.Height)
	case LowBitrate:
		return fmt.Sprintf("low_bitrate_%.1f_Mbps_for_%dx%d", v.Mbps, v.Width, v.Height)
	case AlreadyCompact:
		return fmt.Sprintf("already_compact_%.0f_MB/hour", v.MBPerHour)
	}
	return ""
}

// Reason is the human-readable form used in log lines.
func (v Verdict) Reason() string {
	switch v.Kind {
	case AlreadyEfficientCodec:
		return fmt.Sprintf("already efficient codec (%s)", v.Codec)
	case LowResolution:
		return fmt.Sprintf("low resolution (%dx%d)", v.Width, v.Height)
	case LowBitrate:
		return fmt.Sprintf("low bitrate (%.1f Mbps for %dx%d)", v.Mbps, v.Width, v.Height)
	case AlreadyCompact:
		return fmt.Sprintf("already compact (%.0f MB/hour)", v.MBPerHour)
	}
	return "proceed"
}

// BitrateTier sets the bitrate floor for sources of at least MinPixels.
// Sources below the floor are already lean for their resolution.
type BitrateTier struct {
	MinPixels  int   `yaml:"min_pixels"`
	MinBitrate int64 `yaml:"min_bitrate"` // bits/sec
}

// Thresholds configures Evaluate.
type Thresholds struct {
	EfficientCodecs []string      `yaml:"efficient_codecs"`
	MinWidth        int           `yaml:"min_width"`
	MinHeight       int           `yaml:"min_height"`
	BitrateTiers    []BitrateTier `yaml:"bitrate_tiers"`
	// MaxBytesPerHour is the compact limit; 0 disables the rule.
	MaxBytesPerHour int64 `yaml:"max_bytes_per_hour"`
}

const mib = 1024 * 1024

// DefaultThresholds returns the stock thresholds: HEVC/AV1 are left alone,
// anything below 1080p in both dimensions is skipped, and 1080p/720p sources
// under 3/1.5 Mbps or under 500 MiB per hour are considered already lean.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EfficientCodecs: []string{"h265", "hevc", "x265", "av1"},
		MinWidth:        1920,
		MinHeight:       1080,
		BitrateTiers: []BitrateTier{
			{MinPixels: 1920 * 1080, MinBitrate: 3_000_000},
			{MinPixels: 1280 * 720, MinBitrate: 1_500_000},
		},
		MaxBytesPerHour: 500 * mib,
	}
}

// Evaluate applies the rules in fixed order (codec, resolution, bitrate,
// density); the first match wins.
func Evaluate(pr *probe.ProbeResult, th Thresholds) Verdict {
	v := pr.PrimaryVideo
	if v == nil {
		return Verdict{Kind: Proceed}
	}

	codec := strings.ToLower(v.Codec)
	for _, eff := range th.EfficientCodecs {
		if eff != "" && strings.Contains(codec, strings.ToLower(eff)) {
			return Verdict{Kind: AlreadyEfficientCodec, Codec: codec}
		}
	}

	w, h := v.Width, v.Height
	if w > 0 && h > 0 && h < th.MinHeight && w < th.MinWidth {
		return Verdict{Kind: LowResolution, Width: w, Height: h}
	}

	if bitrate := pr.VideoBitRate(); bitrate > 0 && w > 0 && h > 0 {
		if tier, ok := tierFor(th.BitrateTiers, w*h); ok && bitrate < tier.MinBitrate {
			return Verdict{Kind: LowBitrate, Mbps: float64(bitrate) / 1e6, Width: w, Height: h}
		}
	}

	if th.MaxBytesPerHour > 0 && pr.Format.Size > 0 && pr.Format.Duration > 0 {
		perHour := float64(pr.Format.Size) / (pr.Format.Duration / 3600)
		if perHour < float64(th.MaxBytesPerHour) {
			return Verdict{Kind: AlreadyCompact, MBPerHour: perHour / mib}
		}
	}

	return Verdict{Kind: Proceed}
}

// tierFor returns the highest tier whose pixel floor the source reaches.
func tierFor(tiers []BitrateTier, pixels int) (BitrateTier, bool) {
	sorted := make([]BitrateTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinPixels > sorted[j].MinPixels })
	for _, t := range sorted {
		if pixels >= t.MinPixels {
			return t, true
		}
	}
	return BitrateTier{}, false
}
