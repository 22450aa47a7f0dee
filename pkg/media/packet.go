package media

// Packet is one unit of compressed data produced by a codec.
type Packet struct {
	Data        []byte
	PTS         int64
	DTS         int64
	Duration    int64
	StreamIndex int
	// Pos is the byte position in the output; -1 means unknown.
	Pos int64
	Key bool
}

// RescaleTS converts PTS, DTS and Duration from one time base to another.
func (p *Packet) RescaleTS(from, to Rational) {
	p.PTS = Rescale(p.PTS, from, to)
	p.DTS = Rescale(p.DTS, from, to)
	if p.Duration > 0 {
		p.Duration = Rescale(p.Duration, from, to)
	}
}

// CodecParameters describe an opened codec to a muxer.
type CodecParameters struct {
	Codec       string
	Width       int
	Height      int
	PixelFormat PixelFormat
	TimeBase    Rational
	FrameRate   Rational
	// ExtraData holds out-of-band headers (SPS/PPS for H.264) when the codec
	// was opened with global headers. Either Annex B or avcC framing.
	ExtraData []byte
	// Native is a backend specific handle, e.g. a libav codec context, that a
	// muxer from the same backend may use to copy parameters losslessly.
	Native any
}

// DrainState tells what a single drain attempt produced.
type DrainState int

const (
	// DrainPacket means a packet is available.
	DrainPacket DrainState = iota
	// DrainAgain means the codec needs more input first.
	DrainAgain
	// DrainEnd means the codec is fully drained after end of input.
	DrainEnd
)

func (s DrainState) String() string {
	switch s {
	case DrainPacket:
		return "packet"
	case DrainAgain:
		return "again"
	case DrainEnd:
		return "end"
	}
	return "unknown"
}

// Drained is the result of asking a codec for one packet.
type Drained struct {
	State  DrainState
	Packet *Packet
}
