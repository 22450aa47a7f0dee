package ports

import "github.com/user/framecoder/pkg/media"

// CodecSelection names the codec to open: a preferred implementation and
// the standard to fall back to when that implementation is unavailable.
type CodecSelection struct {
	Preferred string // e.g. "libx264"
	Standard  string // e.g. "h264"
}

// CodecConfig is everything a backend needs to open an encoder.
type CodecConfig struct {
	Codec       CodecSelection
	Width       int
	Height      int
	PixelFormat media.PixelFormat
	FrameRate   media.Rational
	TimeBase    media.Rational
	// GlobalHeader asks the codec to emit parameter sets out of band
	// (in CodecParameters.ExtraData) instead of in every key frame.
	GlobalHeader bool
	Options      map[string]string
}

// CodecEncoder is an opened video codec.
//
// Submit and DrainOne follow the send/receive model: a codec may hold
// several frames before producing the first packet, and a single Submit
// may make zero or more packets available.
type CodecEncoder interface {
	// Submit hands one frame in the codec's pixel format to the codec.
	Submit(frame *media.RawFrame) error

	// DrainOne asks for at most one packet. DrainAgain means more input is
	// needed; DrainEnd means the codec is exhausted after SignalEnd.
	DrainOne() (media.Drained, error)

	// SignalEnd tells the codec no more frames will be submitted.
	SignalEnd() error

	// TimeBase is the time base of frame and packet timestamps.
	TimeBase() media.Rational

	// Parameters describes the opened codec for a muxer.
	Parameters() media.CodecParameters

	// Close releases codec resources.
	Close() error
}

// ConverterConfig describes a pixel conversion. The source format is taken
// from each frame so one converter can accept several input formats.
type ConverterConfig struct {
	Width  int
	Height int
	Target media.PixelFormat
}

// PixelConverter converts frames to the codec's pixel format at the same
// dimensions, preserving PTS.
type PixelConverter interface {
	Convert(frame *media.RawFrame) (*media.RawFrame, error)
	Close() error
}

// CodecBackend opens codecs and converters.
type CodecBackend interface {
	OpenEncoder(cfg CodecConfig) (CodecEncoder, error)
	NewConverter(cfg ConverterConfig) (PixelConverter, error)
}
