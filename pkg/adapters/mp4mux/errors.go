package mp4mux

import "errors"

var (
	// ErrUnsupportedCodec is returned by AddStream for codecs other than H.264.
	ErrUnsupportedCodec = errors.New("mp4mux: unsupported codec")

	// ErrSingleStream is returned when a second stream is added.
	ErrSingleStream = errors.New("mp4mux: only one video stream is supported")

	// ErrUnknownStream is returned for packets or queries on a stream that
	// was never added.
	ErrUnknownStream = errors.New("mp4mux: unknown stream")

	// ErrHeaderNotWritten is returned when packets arrive before WriteHeader.
	ErrHeaderNotWritten = errors.New("mp4mux: header not written")

	// ErrTrailerWritten is returned when writing after WriteTrailer.
	ErrTrailerWritten = errors.New("mp4mux: trailer already written")

	// ErrMissingParameterSets is returned when neither the stream parameters
	// nor the first key frame carry SPS and PPS.
	ErrMissingParameterSets = errors.New("mp4mux: SPS/PPS not found")

	// ErrNonMonotonicDTS is returned when a packet's DTS goes backwards.
	ErrNonMonotonicDTS = errors.New("mp4mux: non-monotonic DTS")
)
