package ports

import (
	"io"

	"github.com/user/framecoder/pkg/media"
)

// MuxWriter is a container writer holding one or more streams.
type MuxWriter interface {
	// GlobalHeader reports whether the container wants codec parameter sets
	// out of band.
	GlobalHeader() bool

	// AddStream registers a stream for the given codec and returns its index.
	AddStream(codec string) (int, error)

	// SetStreamParameters copies the opened codec's parameters to a stream.
	SetStreamParameters(index int, params media.CodecParameters) error

	// StreamTimeBase returns the stream's current time base. It may change
	// when the header is written.
	StreamTimeBase(index int) (media.Rational, error)

	WriteHeader() error

	// Write writes a packet whose timestamps are already in the stream's
	// time base.
	Write(pkt *media.Packet) error

	// WriteInterleaved is Write with the container reordering packets by DTS
	// across streams.
	WriteInterleaved(pkt *media.Packet) error

	WriteTrailer() error
}

// MuxerFactory opens a MuxWriter for an output.
type MuxerFactory interface {
	// Open creates a muxer writing to w. Format may be empty, in which case
	// the muxer is chosen from name's extension.
	Open(w io.Writer, name, format string, options map[string]string) (MuxWriter, error)
}
