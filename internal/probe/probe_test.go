package probe

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"
)

// Matroska file with a cover-art attached pic ahead of the real HEVC stream.
const sampleHEVC = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "mjpeg",
      "codec_type": "video",
      "width": 600,
      "height": 900,
      "disposition": { "default": 0, "attached_pic": 1 }
    },
    {
      "index": 1,
      "codec_name": "hevc",
      "codec_type": "video",
      "profile": "Main 10",
      "width": 1920,
      "height": 1080,
      "bit_rate": "5000000",
      "disposition": { "default": 1, "attached_pic": 0 }
    },
    {
      "index": 2,
      "codec_name": "aac",
      "codec_type": "audio",
      "disposition": { "default": 1 }
    }
  ],
  "format": {
    "filename": "/media/test/Show.S01E01.mkv",
    "format_name": "matroska,webm",
    "duration": "1437.123000",
    "size": "1234567890",
    "bit_rate": "6873456"
  }
}`

// H.264 file whose stream bitrate is missing (common for MKV).
const sampleNoStreamBitrate = `{
  "streams": [
    {
      "index": 0,
      "codec_name": "h264",
      "codec_type": "video",
      "width": 1280,
      "height": 720,
      "disposition": {}
    }
  ],
  "format": {
    "filename": "clip.mkv",
    "format_name": "matroska,webm",
    "duration": "60.0",
    "size": "3000000",
    "bit_rate": "400000"
  }
}`

const sampleAudioOnly = `{
  "streams": [
    { "index": 0, "codec_name": "flac", "codec_type": "audio" }
  ],
  "format": { "filename": "song.mkv", "duration": "180.0", "size": "20000000", "bit_rate": "N/A" }
}`

func TestParseJSON_SkipsAttachedPic(t *testing.T) {
	pr, err := ParseJSON([]byte(sampleHEVC))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	v := pr.PrimaryVideo
	if v == nil {
		t.Fatal("PrimaryVideo is nil")
	}
	if v.Index != 1 || v.Codec != "hevc" {
		t.Errorf("primary video: got index %d codec %q, want 1 hevc", v.Index, v.Codec)
	}
	if v.Width != 1920 || v.Height != 1080 {
		t.Errorf("dimensions: got %dx%d", v.Width, v.Height)
	}
	if pr.Format.Duration != 1437.123 {
		t.Errorf("duration: got %v", pr.Format.Duration)
	}
	if pr.Format.Size != 1234567890 {
		t.Errorf("size: got %d", pr.Format.Size)
	}
}

func TestParseJSON_NoVideo(t *testing.T) {
	pr, err := ParseJSON([]byte(sampleAudioOnly))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if pr.PrimaryVideo != nil {
		t.Errorf("PrimaryVideo: got %+v, want nil", pr.PrimaryVideo)
	}
	if pr.Format.BitRate != 0 {
		t.Errorf("N/A bitrate should parse to 0, got %d", pr.Format.BitRate)
	}
	if got := pr.Codec(); got != "unknown" {
		t.Errorf("Codec: got %q, want unknown", got)
	}
}

func TestParseJSON_Invalid(t *testing.T) {
	if _, err := ParseJSON([]byte("{not json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestVideoBitRate(t *testing.T) {
	// Stream bitrate available → use it.
	pr, _ := ParseJSON([]byte(sampleHEVC))
	if got := pr.VideoBitRate(); got != 5000000 {
		t.Errorf("with stream bitrate: got %d, want 5000000", got)
	}

	// Stream bitrate missing → fall back to format.
	pr, _ = ParseJSON([]byte(sampleNoStreamBitrate))
	if got := pr.VideoBitRate(); got != 400000 {
		t.Errorf("fallback to format: got %d, want 400000", got)
	}
}

func TestResolution(t *testing.T) {
	pr, _ := ParseJSON([]byte(sampleHEVC))
	if got := pr.Resolution(); got != "1920x1080" {
		t.Errorf("got %q, want 1920x1080", got)
	}

	pr, _ = ParseJSON([]byte(sampleNoStreamBitrate))
	if got := pr.Resolution(); got != "1280x720" {
		t.Errorf("got %q, want 1280x720", got)
	}

	empty := &ProbeResult{}
	if got := empty.Resolution(); got != "unknown" {
		t.Errorf("got %q, want unknown", got)
	}
}

func TestProbe_MissingFile(t *testing.T) {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}
	_, err := New("ffprobe").Probe(context.Background(), filepath.Join(t.TempDir(), "nope.mkv"))
	if err == nil {
		t.Fatal("expected error probing a missing file")
	}
	if errors.Is(err, ErrNoVideo) {
		t.Errorf("missing file should be an ffprobe failure, not ErrNoVideo: %v", err)
	}
}
