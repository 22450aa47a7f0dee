// Package tsmux writes a single H.264 stream as MPEG-TS.
package tsmux

import (
	"errors"
	"fmt"
	"io"

	"github.com/bluenviron/mediacommon/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/pkg/formats/mpegts"
	"github.com/user/framecoder/pkg/adapters/logger"
	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/ports"
)

// TimestampOffset is added to every PTS/DTS so that the PCR, which leads
// DTS, stays positive for streams starting at zero.
const TimestampOffset = 90000

var (
	ErrUnsupportedCodec = errors.New("tsmux: unsupported codec")
	ErrSingleStream     = errors.New("tsmux: only one video stream is supported")
	ErrUnknownStream    = errors.New("tsmux: unknown stream")
	ErrHeaderNotWritten = errors.New("tsmux: header not written")
	ErrTrailerWritten   = errors.New("tsmux: trailer already written")
)

// Muxer is a ports.MuxWriter producing MPEG-TS with 90 kHz timestamps.
type Muxer struct {
	w      io.Writer
	logger ports.Logger

	track          *mpegts.Track
	writer         *mpegts.Writer
	paramSets      [][]byte
	trailerWritten bool
	packets        int
}

// Option configures a Muxer.
type Option func(*Muxer)

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(m *Muxer) {
		if l != nil {
			m.logger = l.WithComponent("tsmux")
		}
	}
}

// New creates a muxer writing to w.
func New(w io.Writer, opts ...Option) *Muxer {
	m := &Muxer{w: w, logger: logger.NewNoop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GlobalHeader is false: every key frame carries its parameter sets.
func (m *Muxer) GlobalHeader() bool {
	return false
}

func (m *Muxer) AddStream(codec string) (int, error) {
	switch codec {
	case "h264", "avc", "libx264":
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCodec, codec)
	}
	if m.track != nil {
		return 0, ErrSingleStream
	}
	m.track = &mpegts.Track{Codec: &mpegts.CodecH264{}}
	return 0, nil
}

// SetStreamParameters keeps out-of-band parameter sets, if any, so they can
// be repeated in front of key frames that lack them.
func (m *Muxer) SetStreamParameters(index int, params media.CodecParameters) error {
	if err := m.checkStream(index); err != nil {
		return err
	}
	if len(params.ExtraData) == 0 || params.ExtraData[0] == 1 {
		return nil
	}
	nalus, err := h264.AnnexBUnmarshal(params.ExtraData)
	if err != nil {
		return fmt.Errorf("unmarshal extradata: %w", err)
	}
	m.paramSets = nalus
	return nil
}

// StreamTimeBase is always 1/90000.
func (m *Muxer) StreamTimeBase(index int) (media.Rational, error) {
	if err := m.checkStream(index); err != nil {
		return media.Rational{}, err
	}
	return media.MPEGTimeBase, nil
}

// WriteHeader sets up the transport stream. PAT and PMT are emitted with
// the first random access packet.
func (m *Muxer) WriteHeader() error {
	if m.track == nil {
		return ErrUnknownStream
	}
	if m.writer == nil {
		m.writer = mpegts.NewWriter(m.w, []*mpegts.Track{m.track})
	}
	return nil
}

func (m *Muxer) Write(pkt *media.Packet) error {
	if err := m.checkStream(pkt.StreamIndex); err != nil {
		return err
	}
	if m.writer == nil {
		return ErrHeaderNotWritten
	}
	if m.trailerWritten {
		return ErrTrailerWritten
	}

	au, err := h264.AnnexBUnmarshal(pkt.Data)
	if err != nil {
		return fmt.Errorf("unmarshal annex b: %w", err)
	}
	randomAccess := pkt.Key || h264.IDRPresent(au)
	if randomAccess && m.paramSets != nil && !hasParamSets(au) {
		au = append(append([][]byte{}, m.paramSets...), au...)
	}

	dts := pkt.DTS
	if dts == media.NoPTS {
		dts = pkt.PTS
	}
	pts := pkt.PTS
	if pts == media.NoPTS {
		pts = dts
	}
	if err := m.writer.WriteH26x(m.track, pts+TimestampOffset, dts+TimestampOffset, randomAccess, au); err != nil {
		return fmt.Errorf("write access unit: %w", err)
	}
	m.packets++
	return nil
}

// WriteInterleaved is Write; with one stream there is nothing to interleave.
func (m *Muxer) WriteInterleaved(pkt *media.Packet) error {
	return m.Write(pkt)
}

// WriteTrailer marks the end of the stream. MPEG-TS has no trailer.
func (m *Muxer) WriteTrailer() error {
	if m.writer == nil {
		return ErrHeaderNotWritten
	}
	if m.trailerWritten {
		return ErrTrailerWritten
	}
	m.trailerWritten = true
	m.logger.Debug("Trailer written after %d packets", m.packets)
	return nil
}

func (m *Muxer) checkStream(index int) error {
	if m.track == nil || index != 0 {
		return fmt.Errorf("%w: %d", ErrUnknownStream, index)
	}
	return nil
}

func hasParamSets(au [][]byte) bool {
	for _, nalu := range au {
		if len(nalu) > 0 && h264.NALUType(nalu[0]&0x1F) == h264.NALUTypeSPS {
			return true
		}
	}
	return false
}

var _ ports.MuxWriter = (*Muxer)(nil)
