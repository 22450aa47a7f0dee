// Package encoder turns a stream of raw RGB24/BGRA frames into an encoded
// H.264 video stream written to a container.
//
// An Encoder owns a pixel converter, an opened codec and one stream of a
// MuxWriter. Frames go through EncodeRaw; Finish flushes the codec and
// writes the trailer. The container header is written lazily with the
// first frame, so an Encoder that never sees a frame leaves the container
// untouched.
package encoder

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/user/framecoder/pkg/adapters/logger"
	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/ports"
)

const (
	// KeyFrameInterval forces an intra frame whenever the number of packets
	// written so far is a multiple of it.
	KeyFrameInterval = 12

	// MaxDrainIterations bounds the drain loop run by Finish.
	MaxDrainIterations = 100
)

// ErrFinished is returned by EncodeRaw after Finish has written the trailer.
var ErrFinished = errors.New("encoder: already finished")

// DrainPolicy controls how many packets EncodeRaw collects per frame.
type DrainPolicy int

const (
	// DrainSingle collects at most one packet per submitted frame. Packets
	// the codec still holds are written by Finish.
	DrainSingle DrainPolicy = iota
	// DrainEager collects every packet available after each frame.
	DrainEager
)

// Option configures an Encoder.
type Option func(*Encoder)

// WithLogger sets the logger. The encoder logs under the "encoder" component.
func WithLogger(l ports.Logger) Option {
	return func(e *Encoder) {
		if l != nil {
			e.logger = l.WithComponent("encoder")
		}
	}
}

// WithInterleaving selects interleaved packet writes.
func WithInterleaving(on bool) Option {
	return func(e *Encoder) {
		e.interleaved = on
	}
}

// WithDrainPolicy sets the per-frame drain policy.
func WithDrainPolicy(p DrainPolicy) Option {
	return func(e *Encoder) {
		e.drain = p
	}
}

// Stats counts what an Encoder has done so far.
type Stats struct {
	FramesSubmitted int
	PacketsWritten  int
	KeyPackets      int
	BytesWritten    int64
	ForcedKeyFrames int
	FlushedPackets  int
}

// Encoder is the encoding pipeline. All methods are safe to call from
// several goroutines; calls are serialized.
type Encoder struct {
	mu sync.Mutex

	mux         ports.MuxWriter
	streamIndex int
	codec       ports.CodecEncoder
	timeBase    media.Rational
	converter   ports.PixelConverter
	width       int
	height      int
	interleaved bool
	drain       DrainPolicy

	// packets written; drives the key frame cadence
	frameCount     int
	headerWritten  bool
	trailerWritten bool
	closed         bool

	stats  Stats
	logger ports.Logger
}

// New opens a codec for settings, registers a stream on mux and prepares
// a converter from the input formats to the codec's pixel format.
func New(mux ports.MuxWriter, settings Settings, backend ports.CodecBackend, opts ...Option) (*Encoder, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	e := &Encoder{
		mux:    mux,
		width:  settings.Width(),
		height: settings.Height(),
		logger: logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	globalHeader := mux.GlobalHeader()
	idx, err := mux.AddStream(settings.Codec().Standard)
	if err != nil {
		return nil, backendErr("add stream", err)
	}
	e.streamIndex = idx

	var cfg ports.CodecConfig
	settings.ApplyTo(&cfg)
	cfg.TimeBase = media.MicrosecondTimeBase
	cfg.GlobalHeader = globalHeader

	codec, err := backend.OpenEncoder(cfg)
	if err != nil {
		return nil, backendErr("open codec", err)
	}
	params := codec.Parameters()
	if err := mux.SetStreamParameters(idx, params); err != nil {
		codec.Close()
		return nil, backendErr("set stream parameters", err)
	}

	target := params.PixelFormat
	if target == media.PixelFormatNone {
		target = cfg.PixelFormat
	}
	conv, err := backend.NewConverter(ports.ConverterConfig{
		Width:  e.width,
		Height: e.height,
		Target: target,
	})
	if err != nil {
		codec.Close()
		return nil, backendErr("create converter", err)
	}

	e.codec = codec
	e.converter = conv
	e.timeBase = codec.TimeBase()
	e.logger.Debug("Opened %s (%s), stream %d, time base %s", params.Codec, settings, idx, e.timeBase)
	return e, nil
}

// TimeBase is the time base frame PTS values must be expressed in.
func (e *Encoder) TimeBase() media.Rational {
	return e.timeBase
}

// FrameCount returns the number of packets written so far.
func (e *Encoder) FrameCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frameCount
}

// Stats returns a snapshot of the counters.
func (e *Encoder) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Encode converts img to a raw frame, stamps it with ts aligned to the
// encoder time base and encodes it. Opaque images are sent as RGB24,
// others as BGRA.
func (e *Encoder) Encode(img image.Image, ts time.Duration) error {
	format := media.PixelFormatBGRA
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		format = media.PixelFormatRGB24
	}
	frame, err := media.FromImage(img, format)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFrameFormat, err)
	}
	frame.PTS = media.DurationToTicks(ts, e.timeBase)
	return e.EncodeRaw(frame)
}

// EncodeRaw encodes one frame. The frame must match the configured size
// and be RGB24 or BGRA; its PTS must be in TimeBase units.
//
// The container header is written before the first frame. At most one
// packet is collected per call under the default drain policy, so the
// codec may lag behind the input until Finish.
func (e *Encoder) EncodeRaw(frame *media.RawFrame) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.trailerWritten {
		return ErrFinished
	}
	if frame == nil ||
		frame.Width != e.width || frame.Height != e.height ||
		(frame.Format != media.PixelFormatRGB24 && frame.Format != media.PixelFormatBGRA) {
		return e.invalidFrame(frame)
	}
	if err := frame.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFrameFormat, err)
	}

	if !e.headerWritten {
		if err := e.mux.WriteHeader(); err != nil {
			return backendErr("write header", err)
		}
		e.headerWritten = true
		e.logger.Debug("Container header written")
	}

	converted, err := e.converter.Convert(frame)
	if err != nil {
		return backendErr("convert frame", err)
	}
	converted.PTS = frame.PTS
	converted.PictureType = media.PictureTypeNone
	if e.frameCount%KeyFrameInterval == 0 {
		converted.PictureType = media.PictureTypeI
		e.stats.ForcedKeyFrames++
	}

	if err := e.codec.Submit(converted); err != nil {
		return backendErr("submit frame", err)
	}
	e.stats.FramesSubmitted++

	for {
		d, err := e.codec.DrainOne()
		if err != nil {
			return backendErr("receive packet", err)
		}
		if d.State != media.DrainPacket {
			return nil
		}
		if err := e.write(d.Packet); err != nil {
			return err
		}
		if e.drain == DrainSingle {
			return nil
		}
	}
}

// Finish flushes the codec and writes the trailer. It does nothing when no
// header was written or the trailer already was; a failed Finish is not
// retried.
func (e *Encoder) Finish() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return e.finish()
}

// Close finishes the stream if needed and releases the codec and the
// converter. An error from finishing is discarded; call Finish first to
// observe it.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	if err := e.finish(); err != nil {
		e.logger.Debug("Finish on close failed: %v", err)
	}
	e.closed = true
	return errors.Join(e.converter.Close(), e.codec.Close())
}

func (e *Encoder) finish() error {
	if !e.headerWritten || e.trailerWritten {
		return nil
	}
	e.trailerWritten = true

	if err := e.flush(); err != nil {
		return err
	}
	if err := e.mux.WriteTrailer(); err != nil {
		return backendErr("write trailer", err)
	}
	e.logger.Debug("Trailer written after %d packets", e.frameCount)
	return nil
}

// flush signals end of input and writes what the codec still holds. The
// loop stops at the first codec error, at end of stream, or after
// MaxDrainIterations attempts.
func (e *Encoder) flush() error {
	if err := e.codec.SignalEnd(); err != nil {
		return backendErr("signal end", err)
	}
	for i := 0; i < MaxDrainIterations; i++ {
		d, err := e.codec.DrainOne()
		if err != nil {
			e.logger.Debug("Drain stopped: %v", err)
			return nil
		}
		switch d.State {
		case media.DrainPacket:
			if err := e.write(d.Packet); err != nil {
				return err
			}
			e.stats.FlushedPackets++
		case media.DrainAgain:
			continue
		case media.DrainEnd:
			return nil
		}
	}
	return nil
}

func (e *Encoder) write(pkt *media.Packet) error {
	pkt.StreamIndex = e.streamIndex
	pkt.Pos = -1

	tb, err := e.mux.StreamTimeBase(e.streamIndex)
	if err != nil {
		return backendErr("query stream time base", err)
	}
	pkt.RescaleTS(e.timeBase, tb)

	if e.interleaved {
		err = e.mux.WriteInterleaved(pkt)
	} else {
		err = e.mux.Write(pkt)
	}
	if err != nil {
		return backendErr("write packet", err)
	}

	e.frameCount++
	e.stats.PacketsWritten++
	e.stats.BytesWritten += int64(len(pkt.Data))
	if pkt.Key {
		e.stats.KeyPackets++
	}
	return nil
}

func (e *Encoder) invalidFrame(frame *media.RawFrame) error {
	if frame == nil {
		return fmt.Errorf("%w: nil frame", ErrInvalidFrameFormat)
	}
	return fmt.Errorf("%w: got %dx%d %s, want %dx%d rgb24 or bgra",
		ErrInvalidFrameFormat, frame.Width, frame.Height, frame.Format, e.width, e.height)
}
