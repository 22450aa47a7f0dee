package summarizer

import (
	"fmt"
	"strings"
	"time"
)

// MarkdownFormatter renders a Summary as a Markdown document.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a new MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

func (f *MarkdownFormatter) Format(s *Summary) string {
	var b strings.Builder

	b.WriteString("# Encoding Summary\n\n")
	fmt.Fprintf(&b, "Generated at %s\n\n", s.GeneratedAt.Format(time.RFC3339))

	b.WriteString("## Output\n\n")
	b.WriteString("| Item | Value |\n|------|-------|\n")
	fmt.Fprintf(&b, "| Path | %s |\n", s.Output.Path)
	if s.Output.Format != "" {
		fmt.Fprintf(&b, "| Format | %s |\n", s.Output.Format)
	}
	fmt.Fprintf(&b, "| File Size | %s |\n", formatBytes(s.Output.FileSize))
	b.WriteString("\n")

	b.WriteString("## Settings\n\n")
	b.WriteString("| Item | Value |\n|------|-------|\n")
	if s.Settings.Backend != "" {
		fmt.Fprintf(&b, "| Backend | %s |\n", s.Settings.Backend)
	}
	fmt.Fprintf(&b, "| Codec | %s |\n", s.Settings.Codec)
	fmt.Fprintf(&b, "| Size | %dx%d |\n", s.Settings.Width, s.Settings.Height)
	fmt.Fprintf(&b, "| Pixel Format | %s |\n", s.Settings.PixelFormat)
	fmt.Fprintf(&b, "| Frame Rate | %d fps |\n", s.Settings.FPS)
	if s.Settings.Options != "" {
		fmt.Fprintf(&b, "| Options | `%s` |\n", s.Settings.Options)
	}
	if s.Settings.Interleaved {
		b.WriteString("| Interleaved | yes |\n")
	}
	b.WriteString("\n")

	b.WriteString("## Stream\n\n")
	b.WriteString("| Item | Value |\n|------|-------|\n")
	fmt.Fprintf(&b, "| Frames | %d |\n", s.Stream.Frames)
	if s.Stream.OutroFrames > 0 {
		fmt.Fprintf(&b, "| Outro Frames | %d |\n", s.Stream.OutroFrames)
	}
	fmt.Fprintf(&b, "| Packets | %d |\n", s.Stream.Packets)
	fmt.Fprintf(&b, "| Key Packets | %d |\n", s.Stream.KeyPackets)
	fmt.Fprintf(&b, "| Forced Key Frames | %d |\n", s.Stream.ForcedKeyFrames)
	fmt.Fprintf(&b, "| Flushed Packets | %d |\n", s.Stream.FlushedPackets)
	fmt.Fprintf(&b, "| Stream Bytes | %s |\n", formatBytes(s.Stream.Bytes))
	if missing := s.Stream.Frames - s.Stream.Packets; missing > 0 {
		fmt.Fprintf(&b, "\n> %d frame(s) were not written; the codec held more packets than the flush limit.\n", missing)
	}
	b.WriteString("\n")

	b.WriteString("## Timing\n\n")
	b.WriteString("| Item | Value |\n|------|-------|\n")
	fmt.Fprintf(&b, "| Duration | %s |\n", formatDuration(s.Timing.Duration))
	fmt.Fprintf(&b, "| Elapsed | %s |\n", formatDuration(s.Timing.Elapsed))
	fmt.Fprintf(&b, "| Bitrate | %s |\n", formatBitrate(s.Bitrate()))
	if speed := s.Speed(); speed > 0 {
		fmt.Fprintf(&b, "| Speed | %.2fx |\n", speed)
	}

	return b.String()
}

func formatBytes(n int64) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.2f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func formatBitrate(bps float64) string {
	switch {
	case bps >= 1e6:
		return fmt.Sprintf("%.2f Mbps", bps/1e6)
	case bps >= 1e3:
		return fmt.Sprintf("%.1f kbps", bps/1e3)
	default:
		return fmt.Sprintf("%.0f bps", bps)
	}
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%d ms", d.Milliseconds())
}
