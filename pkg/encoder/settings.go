package encoder

import (
	"fmt"

	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/ports"
)

// AssumedFrameRate is the frame rate reported to the codec. Frames carry
// their own timestamps so it only informs rate control.
const AssumedFrameRate = 30

const (
	preferredH264 = "libx264"
	standardH264  = "h264"
)

// Settings is an immutable encoder configuration.
type Settings struct {
	width       int
	height      int
	pixelFormat media.PixelFormat
	options     Options
}

// ForH264YUV420P returns H.264 settings with YUV420P output. When realtime
// is set the low-latency option preset is used.
func ForH264YUV420P(width, height int, realtime bool) Settings {
	opts := NewH264Options()
	if realtime {
		opts = NewH264RealtimeOptions()
	}
	return Settings{
		width:       width,
		height:      height,
		pixelFormat: media.PixelFormatYUV420P,
		options:     opts,
	}
}

// ForH264Custom returns H.264 settings with a caller chosen pixel format
// and options.
func ForH264Custom(width, height int, pixelFormat media.PixelFormat, options Options) Settings {
	return Settings{
		width:       width,
		height:      height,
		pixelFormat: pixelFormat,
		options:     options.Clone(),
	}
}

func (s Settings) Width() int                     { return s.width }
func (s Settings) Height() int                    { return s.height }
func (s Settings) PixelFormat() media.PixelFormat { return s.pixelFormat }

// Options returns a copy of the codec options.
func (s Settings) Options() Options {
	return s.options.Clone()
}

// Codec returns the codec to open: libx264 if present, else any H.264 encoder.
func (s Settings) Codec() ports.CodecSelection {
	return ports.CodecSelection{Preferred: preferredH264, Standard: standardH264}
}

// Validate checks that the settings can be applied to a codec.
func (s Settings) Validate() error {
	if s.width <= 0 || s.height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidSettings, s.width, s.height)
	}
	if s.pixelFormat.PlaneCount() == 0 {
		return fmt.Errorf("%w: pixel format %s", ErrInvalidSettings, s.pixelFormat)
	}
	return nil
}

// ApplyTo writes width, height, pixel format, frame rate, codec selection
// and options into cfg.
func (s Settings) ApplyTo(cfg *ports.CodecConfig) {
	cfg.Codec = s.Codec()
	cfg.Width = s.width
	cfg.Height = s.height
	cfg.PixelFormat = s.pixelFormat
	cfg.FrameRate = media.NewRational(AssumedFrameRate, 1)
	cfg.Options = s.Options()
}

func (s Settings) String() string {
	return fmt.Sprintf("h264 %dx%d %s [%s]", s.width, s.height, s.pixelFormat, s.options)
}
