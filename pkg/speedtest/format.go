package speedtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatResult renders a result as plain text for logs or simple UI
// surfaces. Richer presentation is the UI layer's job.
func FormatResult(r Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Download: %.1f Mbps\n", r.DownloadMbps)
	fmt.Fprintf(&b, "Upload:   %.1f Mbps\n", r.UploadMbps)
	fmt.Fprintf(&b, "Ping:     %d ms\n", r.PingMs)
	fmt.Fprintf(&b, "Jitter:   %d ms\n", r.JitterMs)
	fmt.Fprintf(&b, "Network:  %s", r.ServerLabel)
	if r.ClientAddress != "" {
		fmt.Fprintf(&b, " (%s)", r.ClientAddress)
	}
	b.WriteByte('\n')
	if r.Degraded {
		b.WriteString("Note:     endpoint unreachable, fallback values shown\n")
	}
	fmt.Fprintf(&b, "Captured: %s (%s)",
		r.DisplayTimestamp,
		humanize.RelTime(time.UnixMilli(r.CapturedAt), time.Now(), "ago", "from now"))
	return b.String()
}

// FormatStats renders trend statistics as plain text.
func FormatStats(s *TrendStats) string {
	if s == nil || s.TestCount == 0 {
		return "No measurement data in this window"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d tests\n", s.Period, s.TestCount)
	fmt.Fprintf(&b, "Download: avg %.1f / min %.1f / max %.1f Mbps\n", s.AvgDownload, s.MinDownload, s.MaxDownload)
	fmt.Fprintf(&b, "Upload:   avg %.1f / min %.1f / max %.1f Mbps\n", s.AvgUpload, s.MinUpload, s.MaxUpload)
	fmt.Fprintf(&b, "Ping:     avg %.0f / min %.0f / max %.0f ms", s.AvgPing, s.MinPing, s.MaxPing)
	return b.String()
}
