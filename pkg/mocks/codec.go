package mocks

import (
	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/ports"
)

// CodecEncoder is a fake H.264 codec. It holds Lookahead frames before
// releasing packets in submission order, like a codec with B-frame or
// rate-control lookahead. Frames marked PictureTypeI, and the first frame,
// come out as key packets.
type CodecEncoder struct {
	Lookahead  int
	TB         media.Rational
	Params     media.CodecParameters
	InBandSPS  bool
	SubmitFunc func(frame *media.RawFrame) error
	DrainFunc  func() (media.Drained, error)
	EndFunc    func() error
	CloseFunc  func() error

	// Recorded calls for verification
	Submitted       []*media.RawFrame
	DrainCalls      int
	SignalEndCalled bool
	Closed          bool

	queue []*media.RawFrame
	ended bool
	seq   int
}

// NewCodecEncoder returns a fake codec with a microsecond time base.
func NewCodecEncoder(lookahead int) *CodecEncoder {
	return &CodecEncoder{
		Lookahead: lookahead,
		TB:        media.MicrosecondTimeBase,
		InBandSPS: true,
	}
}

func (m *CodecEncoder) Submit(frame *media.RawFrame) error {
	m.Submitted = append(m.Submitted, frame)
	if m.SubmitFunc != nil {
		return m.SubmitFunc(frame)
	}
	m.queue = append(m.queue, frame)
	return nil
}

func (m *CodecEncoder) DrainOne() (media.Drained, error) {
	m.DrainCalls++
	if m.DrainFunc != nil {
		return m.DrainFunc()
	}
	if len(m.queue) > m.Lookahead || (m.ended && len(m.queue) > 0) {
		f := m.queue[0]
		m.queue = m.queue[1:]
		key := f.PictureType == media.PictureTypeI || m.seq == 0
		pkt := &media.Packet{
			Data:     AccessUnit(key, m.seq, m.InBandSPS),
			PTS:      f.PTS,
			DTS:      f.PTS,
			Duration: media.Rescale(1, media.NewRational(1, 30), m.TB),
			Key:      key,
		}
		m.seq++
		return media.Drained{State: media.DrainPacket, Packet: pkt}, nil
	}
	if m.ended {
		return media.Drained{State: media.DrainEnd}, nil
	}
	return media.Drained{State: media.DrainAgain}, nil
}

func (m *CodecEncoder) SignalEnd() error {
	m.SignalEndCalled = true
	m.ended = true
	if m.EndFunc != nil {
		return m.EndFunc()
	}
	return nil
}

func (m *CodecEncoder) TimeBase() media.Rational {
	return m.TB
}

func (m *CodecEncoder) Parameters() media.CodecParameters {
	return m.Params
}

func (m *CodecEncoder) Close() error {
	m.Closed = true
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Pending returns the number of frames held by the fake codec.
func (m *CodecEncoder) Pending() int {
	return len(m.queue)
}

// PixelConverter is a mock ports.PixelConverter. Unless ConvertFunc is set
// it returns a blank frame in the target format carrying the input PTS.
type PixelConverter struct {
	Target      media.PixelFormat
	ConvertFunc func(frame *media.RawFrame) (*media.RawFrame, error)

	Converted []*media.RawFrame
	Closed    bool
}

func (m *PixelConverter) Convert(frame *media.RawFrame) (*media.RawFrame, error) {
	m.Converted = append(m.Converted, frame)
	if m.ConvertFunc != nil {
		return m.ConvertFunc(frame)
	}
	out := media.NewRawFrame(frame.Width, frame.Height, m.Target)
	out.PTS = frame.PTS
	return out, nil
}

func (m *PixelConverter) Close() error {
	m.Closed = true
	return nil
}

// CodecBackend is a mock ports.CodecBackend handing out Encoder and
// Converter. Nil fields are created on demand.
type CodecBackend struct {
	Encoder   *CodecEncoder
	Converter *PixelConverter

	OpenEncoderFunc  func(cfg ports.CodecConfig) (ports.CodecEncoder, error)
	NewConverterFunc func(cfg ports.ConverterConfig) (ports.PixelConverter, error)

	CodecConfigs     []ports.CodecConfig
	ConverterConfigs []ports.ConverterConfig
}

// NewCodecBackend returns a backend whose codec has the given lookahead.
func NewCodecBackend(lookahead int) *CodecBackend {
	return &CodecBackend{Encoder: NewCodecEncoder(lookahead)}
}

func (m *CodecBackend) OpenEncoder(cfg ports.CodecConfig) (ports.CodecEncoder, error) {
	m.CodecConfigs = append(m.CodecConfigs, cfg)
	if m.OpenEncoderFunc != nil {
		return m.OpenEncoderFunc(cfg)
	}
	if m.Encoder == nil {
		m.Encoder = NewCodecEncoder(0)
	}
	m.Encoder.TB = cfg.TimeBase
	m.Encoder.Params = media.CodecParameters{
		Codec:       cfg.Codec.Preferred,
		Width:       cfg.Width,
		Height:      cfg.Height,
		PixelFormat: cfg.PixelFormat,
		TimeBase:    cfg.TimeBase,
		FrameRate:   cfg.FrameRate,
	}
	if cfg.GlobalHeader {
		m.Encoder.Params.ExtraData = ExtraData()
		m.Encoder.InBandSPS = false
	}
	return m.Encoder, nil
}

func (m *CodecBackend) NewConverter(cfg ports.ConverterConfig) (ports.PixelConverter, error) {
	m.ConverterConfigs = append(m.ConverterConfigs, cfg)
	if m.NewConverterFunc != nil {
		return m.NewConverterFunc(cfg)
	}
	if m.Converter == nil {
		m.Converter = &PixelConverter{}
	}
	m.Converter.Target = cfg.Target
	return m.Converter, nil
}

var (
	_ ports.CodecEncoder   = (*CodecEncoder)(nil)
	_ ports.PixelConverter = (*PixelConverter)(nil)
	_ ports.CodecBackend   = (*CodecBackend)(nil)
)
