// Package mp4mux writes a single H.264 stream as fragmented MP4.
//
// WriteHeader emits ftyp and, when the stream parameters carry SPS/PPS,
// the moov box. Otherwise moov is emitted with the first key frame, whose
// in-band parameter sets are used. Each key frame starts a new moof/mdat
// fragment, so memory use is bounded by one GOP.
package mp4mux

import (
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/bluenviron/mediacommon/pkg/codecs/h264"
	"github.com/user/framecoder/pkg/adapters/logger"
	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/ports"
)

// Timescale is the media timescale of the video track.
const Timescale = 90000

const trackID = 1

type sample struct {
	dts  int64
	cto  int32
	dur  int64
	key  bool
	data []byte
}

// Muxer is a ports.MuxWriter producing fragmented MP4.
type Muxer struct {
	w      io.Writer
	logger ports.Logger

	hasStream      bool
	params         media.CodecParameters
	sps, pps       []byte
	headerWritten  bool
	initWritten    bool
	trailerWritten bool

	firstDTS   int64
	lastDTS    int64
	pending    []sample
	seq        uint32
	defaultDur int64

	fragments int
	samples   int
}

// Option configures a Muxer.
type Option func(*Muxer)

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(m *Muxer) {
		if l != nil {
			m.logger = l.WithComponent("mp4mux")
		}
	}
}

// New creates a muxer writing to w.
func New(w io.Writer, opts ...Option) *Muxer {
	m := &Muxer{
		w:          w,
		logger:     logger.NewNoop(),
		seq:        1,
		defaultDur: Timescale / 30,
		firstDTS:   media.NoPTS,
		lastDTS:    media.NoPTS,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GlobalHeader is true: MP4 keeps parameter sets in the sample description.
func (m *Muxer) GlobalHeader() bool {
	return true
}

func (m *Muxer) AddStream(codec string) (int, error) {
	switch codec {
	case "h264", "avc", "libx264":
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCodec, codec)
	}
	if m.hasStream {
		return 0, ErrSingleStream
	}
	m.hasStream = true
	return 0, nil
}

func (m *Muxer) SetStreamParameters(index int, params media.CodecParameters) error {
	if err := m.checkStream(index); err != nil {
		return err
	}
	sps, pps, err := extraDataParameterSets(params.ExtraData)
	if err != nil {
		return err
	}
	m.params = params
	m.sps, m.pps = sps, pps
	if fr := params.FrameRate; fr.Valid() && fr.Num > 0 {
		m.defaultDur = media.Rescale(1, fr.Invert(), media.NewRational(1, Timescale))
	}
	return nil
}

// StreamTimeBase is always 1/90000.
func (m *Muxer) StreamTimeBase(index int) (media.Rational, error) {
	if err := m.checkStream(index); err != nil {
		return media.Rational{}, err
	}
	return media.NewRational(1, Timescale), nil
}

func (m *Muxer) WriteHeader() error {
	if !m.hasStream {
		return ErrUnknownStream
	}
	if m.headerWritten {
		return nil
	}
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "avc1", "mp41"})
	if err := ftyp.Encode(m.w); err != nil {
		return fmt.Errorf("encode ftyp: %w", err)
	}
	m.headerWritten = true
	if m.sps != nil && m.pps != nil {
		return m.writeInit()
	}
	return nil
}

func (m *Muxer) Write(pkt *media.Packet) error {
	if err := m.checkStream(pkt.StreamIndex); err != nil {
		return err
	}
	if !m.headerWritten {
		return ErrHeaderNotWritten
	}
	if m.trailerWritten {
		return ErrTrailerWritten
	}

	nalus, err := splitAccessUnit(pkt.Data)
	if err != nil {
		return err
	}
	if !m.initWritten {
		if sps, pps := parameterSets(nalus); sps != nil && pps != nil {
			m.sps, m.pps = sps, pps
		}
		if m.sps == nil || m.pps == nil {
			return ErrMissingParameterSets
		}
		if err := m.writeInit(); err != nil {
			return err
		}
	}

	data, err := toAVCC(nalus)
	if err != nil {
		return fmt.Errorf("marshal avcc: %w", err)
	}

	dts := pkt.DTS
	if dts == media.NoPTS {
		dts = pkt.PTS
	}
	if m.lastDTS != media.NoPTS && dts < m.lastDTS {
		return fmt.Errorf("%w: %d after %d", ErrNonMonotonicDTS, dts, m.lastDTS)
	}
	if m.firstDTS == media.NoPTS {
		m.firstDTS = dts
	}

	if n := len(m.pending); n > 0 {
		m.pending[n-1].dur = dts - m.pending[n-1].dts
		if pkt.Key {
			if err := m.flushFragment(); err != nil {
				return err
			}
		}
	}

	dur := pkt.Duration
	if dur <= 0 {
		dur = m.defaultDur
	}
	var cto int32
	if pkt.PTS != media.NoPTS {
		cto = int32(pkt.PTS - dts)
	}
	m.pending = append(m.pending, sample{
		dts:  dts,
		cto:  cto,
		dur:  dur,
		key:  pkt.Key || h264.IDRPresent(nalus),
		data: data,
	})
	m.lastDTS = dts
	return nil
}

// WriteInterleaved is Write; with one stream there is nothing to interleave.
func (m *Muxer) WriteInterleaved(pkt *media.Packet) error {
	return m.Write(pkt)
}

func (m *Muxer) WriteTrailer() error {
	if !m.headerWritten {
		return ErrHeaderNotWritten
	}
	if m.trailerWritten {
		return ErrTrailerWritten
	}
	m.trailerWritten = true
	if len(m.pending) > 0 {
		return m.flushFragment()
	}
	return nil
}

// Fragments returns the number of moof/mdat pairs written.
func (m *Muxer) Fragments() int {
	return m.fragments
}

func (m *Muxer) checkStream(index int) error {
	if !m.hasStream || index != 0 {
		return fmt.Errorf("%w: %d", ErrUnknownStream, index)
	}
	return nil
}

func (m *Muxer) writeInit() error {
	width, height := m.params.Width, m.params.Height
	if width == 0 || height == 0 {
		var s h264.SPS
		if err := s.Unmarshal(m.sps); err != nil {
			return fmt.Errorf("parse sps: %w", err)
		}
		width, height = s.Width(), s.Height()
	}

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(Timescale, "video", "und")
	trak := init.Moov.Trak

	avcC, err := mp4.CreateAvcC([][]byte{m.sps}, [][]byte{m.pps}, true)
	if err != nil {
		return fmt.Errorf("create avcC: %w", err)
	}
	avc1 := mp4.CreateVisualSampleEntryBox("avc1", uint16(width), uint16(height), avcC)
	trak.Mdia.Minf.Stbl.Stsd.AddChild(avc1)
	trak.Tkhd.Width = mp4.Fixed32(width << 16)
	trak.Tkhd.Height = mp4.Fixed32(height << 16)

	if err := init.Moov.Encode(m.w); err != nil {
		return fmt.Errorf("encode moov: %w", err)
	}
	m.initWritten = true
	return nil
}

func (m *Muxer) flushFragment() error {
	frag, err := mp4.CreateFragment(m.seq, trackID)
	if err != nil {
		return fmt.Errorf("create fragment: %w", err)
	}
	for _, s := range m.pending {
		flags := mp4.NonSyncSampleFlags
		if s.key {
			flags = mp4.SyncSampleFlags
		}
		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags:                 flags,
				Size:                  uint32(len(s.data)),
				Dur:                   uint32(s.dur),
				CompositionTimeOffset: s.cto,
			},
			DecodeTime: uint64(s.dts - m.firstDTS),
			Data:       s.data,
		})
	}
	if err := frag.Encode(m.w); err != nil {
		return fmt.Errorf("encode fragment: %w", err)
	}
	m.logger.Debug("Fragment %d written: %d samples", m.seq, len(m.pending))
	m.samples += len(m.pending)
	m.fragments++
	m.seq++
	m.pending = m.pending[:0]
	return nil
}

// Samples returns the number of samples written so far.
func (m *Muxer) Samples() int {
	return m.samples
}

var _ ports.MuxWriter = (*Muxer)(nil)
