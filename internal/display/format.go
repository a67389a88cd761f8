package display

import (
	"fmt"
	"time"
)

var byteUnits = []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

// FormatBytes returns a binary-prefixed size such as "700.0 MiB".
func FormatBytes(n int64) string {
	if n < 1024 && n > -1024 {
		return fmt.Sprintf("%d B", n)
	}
	v := float64(n) / 1024
	u := 0
	for (v >= 1024 || v <= -1024) && u < len(byteUnits)-1 {
		v /= 1024
		u++
	}
	return fmt.Sprintf("%.1f %s", v, byteUnits[u])
}

// FormatBytesWithSign renders a size delta with an explicit sign, e.g.
// "- 1.2 GiB" for space freed.
func FormatBytesWithSign(n int64) string {
	switch {
	case n > 0:
		return "+ " + FormatBytes(n)
	case n < 0:
		return "- " + FormatBytes(-n)
	}
	return FormatBytes(0)
}

// FormatBitrateLabel renders a rate given in kbps, switching to Mbps from
// 1000 kbps up. Zero means the prober did not report one.
func FormatBitrateLabel(kbps int64) string {
	switch {
	case kbps <= 0:
		return "unknown bitrate"
	case kbps < 1000:
		return fmt.Sprintf("%d kbps", kbps)
	}
	return fmt.Sprintf("%.1f Mbps", float64(kbps)/1000)
}

// FormatClock renders d as h:mm:ss.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d:%02d", int(d/time.Hour), int(d/time.Minute)%60, int(d/time.Second)%60)
}
