package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNoVideo is returned when ffprobe succeeds but reports no usable video stream.
var ErrNoVideo = errors.New("no video stream")

// Prober runs ffprobe. The zero value uses "ffprobe" from PATH.
type Prober struct {
	Binary string
}

// New returns a Prober that invokes binary.
func New(binary string) *Prober {
	return &Prober{Binary: binary}
}

// Probe runs a single ffprobe JSON call against path and returns the parsed
// result. A file without a primary video stream yields ErrNoVideo.
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	bin := p.Binary
	if bin == "" {
		bin = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %q: %w", path, err)
	}

	pr, err := ParseJSON(out)
	if err != nil {
		return nil, err
	}
	if pr.PrimaryVideo == nil {
		return nil, fmt.Errorf("ffprobe %q: %w", path, ErrNoVideo)
	}
	return pr, nil
}

// ParseJSON converts raw ffprobe JSON output into a ProbeResult.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	return buildResult(&raw), nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index       int            `json:"index"`
	CodecName   string         `json:"codec_name"`
	CodecType   string         `json:"codec_type"`
	Profile     string         `json:"profile"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	BitRate     string         `json:"bit_rate"`
	Disposition map[string]int `json:"disposition"`
}

// --- Conversion from wire types to domain types ---

func buildResult(raw *ffprobeOutput) *ProbeResult {
	pr := &ProbeResult{
		Format: FormatInfo{
			Filename:   raw.Format.Filename,
			FormatName: raw.Format.FormatName,
			Duration:   parseFloat(raw.Format.Duration),
			Size:       parseInt64(raw.Format.Size),
			BitRate:    parseInt64(raw.Format.BitRate),
		},
	}

	for i := range raw.Streams {
		s := &raw.Streams[i]
		if s.CodecType != "video" {
			continue
		}
		vs := VideoStream{
			Index:         s.Index,
			Codec:         s.CodecName,
			Profile:       s.Profile,
			Width:         s.Width,
			Height:        s.Height,
			BitRate:       parseInt64(s.BitRate),
			IsAttachedPic: s.Disposition["attached_pic"] == 1,
		}
		if !vs.IsAttachedPic {
			pr.PrimaryVideo = &vs
			break
		}
	}
	return pr
}

// ffprobe reports numbers as strings; "N/A" and empty parse to zero.

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
