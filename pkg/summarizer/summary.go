// Package summarizer renders a human-readable summary of an encoding
// session.
package summarizer

import "time"

// Summary contains all data collected during an encoding session.
type Summary struct {
	GeneratedAt time.Time `json:"generatedAt"`

	Output   OutputInfo `json:"output"`
	Settings Settings   `json:"settings"`
	Stream   StreamInfo `json:"stream"`
	Timing   TimingInfo `json:"timing"`
}

// OutputInfo describes the written file.
type OutputInfo struct {
	Path     string `json:"path"`
	Format   string `json:"format"`
	FileSize int64  `json:"fileSize"`
}

// Settings contains the encoder configuration.
type Settings struct {
	Backend     string `json:"backend"`
	Codec       string `json:"codec"`
	PixelFormat string `json:"pixelFormat"`
	Options     string `json:"options"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	FPS         int    `json:"fps"`
	Interleaved bool   `json:"interleaved"`
}

// StreamInfo counts what went into the container.
type StreamInfo struct {
	Frames          int   `json:"frames"`
	OutroFrames     int   `json:"outroFrames"`
	Packets         int   `json:"packets"`
	KeyPackets      int   `json:"keyPackets"`
	ForcedKeyFrames int   `json:"forcedKeyFrames"`
	FlushedPackets  int   `json:"flushedPackets"`
	Bytes           int64 `json:"bytes"`
}

// TimingInfo contains durations of the video and of the run.
type TimingInfo struct {
	Duration time.Duration `json:"duration"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Bitrate returns the average stream bitrate in bits per second.
func (s *Summary) Bitrate() float64 {
	if s.Timing.Duration <= 0 {
		return 0
	}
	return float64(s.Stream.Bytes*8) / s.Timing.Duration.Seconds()
}

// Speed returns encoded video seconds per wall-clock second.
func (s *Summary) Speed() float64 {
	if s.Timing.Elapsed <= 0 {
		return 0
	}
	return s.Timing.Duration.Seconds() / s.Timing.Elapsed.Seconds()
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

func (b *Builder) WithOutput(path, format string, size int64) *Builder {
	b.summary.Output = OutputInfo{Path: path, Format: format, FileSize: size}
	return b
}

func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

func (b *Builder) WithStream(stream StreamInfo) *Builder {
	b.summary.Stream = stream
	return b
}

func (b *Builder) WithTiming(duration, elapsed time.Duration) *Builder {
	b.summary.Timing = TimingInfo{Duration: duration, Elapsed: elapsed}
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
