package summarizer

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewSummary(t *testing.T) {
	before := time.Now()
	summary := NewSummary()
	after := time.Now()

	if summary.GeneratedAt.Before(before) || summary.GeneratedAt.After(after) {
		t.Errorf("GeneratedAt should be between %v and %v, got %v",
			before, after, summary.GeneratedAt)
	}
}

func TestBuilder(t *testing.T) {
	summary := NewBuilder().
		WithOutput("out.mp4", "fmp4", 4096).
		WithSettings(Settings{Codec: "h264", Width: 640, Height: 360, FPS: 30}).
		WithStream(StreamInfo{Frames: 90, Packets: 90, KeyPackets: 8}).
		WithTiming(3*time.Second, 1500*time.Millisecond).
		Build()

	if summary.Output.Path != "out.mp4" || summary.Output.FileSize != 4096 {
		t.Errorf("unexpected output %+v", summary.Output)
	}
	if summary.Settings.Width != 640 {
		t.Errorf("expected width 640, got %d", summary.Settings.Width)
	}
	if summary.Stream.KeyPackets != 8 {
		t.Errorf("expected 8 key packets, got %d", summary.Stream.KeyPackets)
	}
	if summary.Timing.Duration != 3*time.Second {
		t.Errorf("expected 3s duration, got %v", summary.Timing.Duration)
	}
}

func TestSummary_BitrateAndSpeed(t *testing.T) {
	s := &Summary{
		Stream: StreamInfo{Bytes: 250000},
		Timing: TimingInfo{Duration: 2 * time.Second, Elapsed: 500 * time.Millisecond},
	}
	if s.Bitrate() != 1e6 {
		t.Errorf("Bitrate = %v, want 1e6", s.Bitrate())
	}
	if s.Speed() != 4 {
		t.Errorf("Speed = %v, want 4", s.Speed())
	}

	empty := &Summary{}
	if empty.Bitrate() != 0 || empty.Speed() != 0 {
		t.Error("zero durations should give zero rates")
	}
}

func TestForPath(t *testing.T) {
	summary := NewBuilder().
		WithOutput("out.ts", "mpegts", 1000).
		WithStream(StreamInfo{Frames: 30, Packets: 30, Bytes: 1000}).
		WithTiming(time.Second, 500*time.Millisecond).
		Build()

	out := ForPath("summary.JSON").Format(summary)
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("JSON summary does not parse: %v\n%s", err, out)
	}
	if decoded["bitrate"].(float64) != 8000 {
		t.Errorf("bitrate = %v, want 8000", decoded["bitrate"])
	}
	if decoded["speed"].(float64) != 2 {
		t.Errorf("speed = %v, want 2", decoded["speed"])
	}
	stream := decoded["stream"].(map[string]interface{})
	if stream["frames"].(float64) != 30 {
		t.Errorf("stream.frames = %v, want 30", stream["frames"])
	}

	if md := ForPath("summary.md").Format(summary); !strings.HasPrefix(md, "# Encoding Summary") {
		t.Errorf("Markdown summary expected, got:\n%s", md)
	}
}
