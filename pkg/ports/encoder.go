package ports

import "github.com/user/framecoder/pkg/media"

// VideoEncoder is what the encode stage drives.
type VideoEncoder interface {
	// EncodeRaw encodes one frame whose PTS is in the encoder's time base.
	EncodeRaw(frame *media.RawFrame) error

	// Finish drains the codec and writes the container trailer.
	Finish() error

	// TimeBase is the time base frames must be stamped in.
	TimeBase() media.Rational
}

// FrameSource produces raw frames. Next returns io.EOF when exhausted.
type FrameSource interface {
	// Next returns the next frame with PTS expressed in tb.
	Next(tb media.Rational) (*media.RawFrame, error)
}
