package pipeline

import (
	"time"

	"github.com/user/framecoder/pkg/ports"
)

// Dimension represents width and height.
type Dimension struct {
	Width  int
	Height int
}

// EncodeInput contains parameters for the encode stage.
type EncodeInput struct {
	Source ports.FrameSource

	// MaxFrames stops after this many source frames; 0 reads until io.EOF.
	MaxFrames int

	// OutroFrames repeats the last frame this many times at FPS.
	OutroFrames int
	FPS         int
}

// DefaultEncodeInput returns EncodeInput with default values.
func DefaultEncodeInput() EncodeInput {
	return EncodeInput{FPS: 30}
}

// EncodeResult describes what the stage fed to the encoder.
type EncodeResult struct {
	Frames      int // frames passed to EncodeRaw, outro included
	OutroFrames int
	FirstPTS    int64
	LastPTS     int64
	// Duration spans the first to the last frame PTS plus one frame.
	Duration time.Duration
	Elapsed  time.Duration
}

// Realtime returns how many seconds of video were encoded per second of
// wall time.
func (r EncodeResult) Realtime() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return r.Duration.Seconds() / r.Elapsed.Seconds()
}
