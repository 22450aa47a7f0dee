package libav

import (
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/user/framecoder/pkg/adapters/logger"
	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/ports"
)

// ioBufferSize is the size of the buffer between libav and the writer.
const ioBufferSize = 64 * 1024

var ErrUnknownStream = errors.New("libav: unknown stream")

// Muxer is a ports.MuxWriter backed by a libav output format context. The
// container's bytes are written to an io.Writer through a custom IO
// context; when the writer is also an io.Seeker, libav may seek back to
// patch headers (e.g. progressive MP4 moov).
type Muxer struct {
	closer  *astikit.Closer
	fc      *astiav.FormatContext
	w       io.Writer
	logger  ports.Logger
	packet  *astiav.Packet
	streams []*astiav.Stream
	options map[string]string
}

// MuxerOption configures a Muxer.
type MuxerOption func(*Muxer)

// WithMuxerLogger sets the logger.
func WithMuxerLogger(l ports.Logger) MuxerOption {
	return func(m *Muxer) {
		if l != nil {
			m.logger = l.WithComponent("libav-mux")
		}
	}
}

// WithFormatOptions sets private muxer options passed to WriteHeader.
func WithFormatOptions(opts map[string]string) MuxerOption {
	return func(m *Muxer) {
		m.options = opts
	}
}

// NewMuxer allocates an output context for format (or, when empty, the
// format guessed from name) writing to w.
func NewMuxer(w io.Writer, name, format string, opts ...MuxerOption) (*Muxer, error) {
	m := &Muxer{
		closer: astikit.NewCloser(),
		w:      w,
		logger: logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	fc, err := astiav.AllocOutputFormatContext(nil, format, name)
	if err != nil {
		return nil, fmt.Errorf("allocate output format context: %w", err)
	}
	if fc == nil {
		return nil, fmt.Errorf("%w: output format context", ErrAlloc)
	}
	m.fc = fc
	m.closer.Add(fc.Free)

	if !fc.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		var seek astiav.IOContextSeekFunc
		if s, ok := w.(io.Seeker); ok {
			seek = func(offset int64, whence int) (int64, error) {
				return s.Seek(offset, whence)
			}
		}
		ioc, err := astiav.AllocIOContext(ioBufferSize, true, nil, seek, func(b []byte) (int, error) {
			return w.Write(b)
		})
		if err != nil {
			m.closer.Close()
			return nil, fmt.Errorf("allocate io context: %w", err)
		}
		m.closer.Add(ioc.Free)
		fc.SetPb(ioc)
	}

	m.packet = astiav.AllocPacket()
	m.closer.Add(m.packet.Free)
	return m, nil
}

// GlobalHeader reports whether the output format stores parameter sets in
// the container header.
func (m *Muxer) GlobalHeader() bool {
	return m.fc.OutputFormat().Flags().Has(astiav.IOFormatFlagGlobalheader)
}

// AddStream creates a new stream. codec is informational; the stream's
// parameters are filled from the opened codec.
func (m *Muxer) AddStream(codec string) (int, error) {
	s := m.fc.NewStream(nil)
	if s == nil {
		return 0, fmt.Errorf("%w: stream for %s", ErrAlloc, codec)
	}
	m.streams = append(m.streams, s)
	return s.Index(), nil
}

func (m *Muxer) stream(index int) (*astiav.Stream, error) {
	if index < 0 || index >= len(m.streams) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStream, index)
	}
	return m.streams[index], nil
}

// SetStreamParameters copies the codec context referenced by params into
// the stream.
func (m *Muxer) SetStreamParameters(index int, params media.CodecParameters) error {
	s, err := m.stream(index)
	if err != nil {
		return err
	}
	cc, ok := params.Native.(*astiav.CodecContext)
	if !ok {
		return ErrForeignParameters
	}
	if err := s.CodecParameters().FromCodecContext(cc); err != nil {
		return fmt.Errorf("copy codec parameters: %w", err)
	}
	s.SetTimeBase(toRational(params.TimeBase))
	return nil
}

// StreamTimeBase returns the stream's time base, which the muxer may have
// changed while writing the header.
func (m *Muxer) StreamTimeBase(index int) (media.Rational, error) {
	s, err := m.stream(index)
	if err != nil {
		return media.Rational{}, err
	}
	return fromRational(s.TimeBase()), nil
}

func (m *Muxer) WriteHeader() error {
	var d *astiav.Dictionary
	if len(m.options) > 0 {
		d = dictionary(m.options)
		defer d.Free()
	}
	if err := m.fc.WriteHeader(d); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	m.logger.Debug("Header written for %d stream(s)", len(m.streams))
	return nil
}

func (m *Muxer) Write(pkt *media.Packet) error {
	if err := m.load(pkt); err != nil {
		return err
	}
	defer m.packet.Unref()
	if err := m.fc.WriteFrame(m.packet); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	return nil
}

func (m *Muxer) WriteInterleaved(pkt *media.Packet) error {
	if err := m.load(pkt); err != nil {
		return err
	}
	defer m.packet.Unref()
	if err := m.fc.WriteInterleavedFrame(m.packet); err != nil {
		return fmt.Errorf("write interleaved packet: %w", err)
	}
	return nil
}

func (m *Muxer) load(pkt *media.Packet) error {
	if _, err := m.stream(pkt.StreamIndex); err != nil {
		return err
	}
	if err := m.packet.FromData(pkt.Data); err != nil {
		return fmt.Errorf("load packet data: %w", err)
	}
	m.packet.SetPts(pkt.PTS)
	m.packet.SetDts(pkt.DTS)
	m.packet.SetDuration(pkt.Duration)
	m.packet.SetStreamIndex(pkt.StreamIndex)
	m.packet.SetPos(pkt.Pos)
	if pkt.Key {
		m.packet.SetFlags(astiav.NewPacketFlags(astiav.PacketFlagKey))
	}
	return nil
}

func (m *Muxer) WriteTrailer() error {
	if err := m.fc.WriteTrailer(); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}
	return nil
}

// Close frees the format and IO contexts. It does not close the writer.
func (m *Muxer) Close() error {
	return m.closer.Close()
}

var _ ports.MuxWriter = (*Muxer)(nil)
