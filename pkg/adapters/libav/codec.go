package libav

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/ports"
)

// frameAlign is the buffer alignment used when copying planes.
const frameAlign = 1

// Codec is an opened libav encoder.
type Codec struct {
	closer *astikit.Closer
	cc     *astiav.CodecContext
	codec  *astiav.Codec
	frame  *astiav.Frame
	packet *astiav.Packet
	params media.CodecParameters
}

func openCodec(codec *astiav.Codec, cfg ports.CodecConfig) (*Codec, error) {
	c := &Codec{closer: astikit.NewCloser(), codec: codec}

	pf, err := pixelFormat(cfg.PixelFormat)
	if err != nil {
		return nil, err
	}

	if c.cc = astiav.AllocCodecContext(codec); c.cc == nil {
		return nil, fmt.Errorf("%w: codec context", ErrAlloc)
	}
	c.closer.Add(c.cc.Free)

	c.cc.SetWidth(cfg.Width)
	c.cc.SetHeight(cfg.Height)
	c.cc.SetPixelFormat(pf)
	c.cc.SetTimeBase(toRational(cfg.TimeBase))
	c.cc.SetFramerate(toRational(cfg.FrameRate))
	if cfg.GlobalHeader {
		c.cc.SetFlags(c.cc.Flags().Add(astiav.CodecContextFlagGlobalHeader))
	}

	opts := dictionary(cfg.Options)
	defer opts.Free()
	if err := c.cc.Open(codec, opts); err != nil {
		c.closer.Close()
		return nil, fmt.Errorf("open codec %s: %w", codec.Name(), err)
	}

	c.frame = astiav.AllocFrame()
	c.closer.Add(c.frame.Free)
	c.packet = astiav.AllocPacket()
	c.closer.Add(c.packet.Free)

	c.params = media.CodecParameters{
		Codec:       codec.Name(),
		Width:       c.cc.Width(),
		Height:      c.cc.Height(),
		PixelFormat: media.PixelFormat(c.cc.PixelFormat().Name()),
		TimeBase:    fromRational(c.cc.TimeBase()),
		FrameRate:   cfg.FrameRate,
		ExtraData:   extraData(c.cc),
		Native:      c.cc,
	}
	return c, nil
}

func extraData(cc *astiav.CodecContext) []byte {
	cp := astiav.AllocCodecParameters()
	if cp == nil {
		return nil
	}
	defer cp.Free()
	if err := cp.FromCodecContext(cc); err != nil {
		return nil
	}
	return append([]byte(nil), cp.ExtraData()...)
}

// Submit copies frame into a libav frame and sends it to the codec.
func (c *Codec) Submit(frame *media.RawFrame) error {
	defer c.frame.Unref()

	pf, err := pixelFormat(frame.Format)
	if err != nil {
		return err
	}
	c.frame.SetWidth(frame.Width)
	c.frame.SetHeight(frame.Height)
	c.frame.SetPixelFormat(pf)
	if err := c.frame.AllocBuffer(frameAlign); err != nil {
		return fmt.Errorf("alloc frame buffer: %w", err)
	}
	if err := c.frame.Data().SetBytes(frame.Bytes(), frameAlign); err != nil {
		return fmt.Errorf("copy frame data: %w", err)
	}
	c.frame.SetPts(frame.PTS)
	if frame.PictureType == media.PictureTypeI {
		c.frame.SetPictureType(astiav.PictureTypeI)
	} else {
		c.frame.SetPictureType(astiav.PictureTypeNone)
	}

	if err := c.cc.SendFrame(c.frame); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

// DrainOne receives at most one packet.
func (c *Codec) DrainOne() (media.Drained, error) {
	err := c.cc.ReceivePacket(c.packet)
	switch {
	case errors.Is(err, astiav.ErrEagain):
		return media.Drained{State: media.DrainAgain}, nil
	case errors.Is(err, astiav.ErrEof):
		return media.Drained{State: media.DrainEnd}, nil
	case err != nil:
		return media.Drained{}, fmt.Errorf("receive packet: %w", err)
	}
	defer c.packet.Unref()

	return media.Drained{
		State: media.DrainPacket,
		Packet: &media.Packet{
			Data:     append([]byte(nil), c.packet.Data()...),
			PTS:      c.packet.Pts(),
			DTS:      c.packet.Dts(),
			Duration: c.packet.Duration(),
			Pos:      -1,
			Key:      c.packet.Flags().Has(astiav.PacketFlagKey),
		},
	}, nil
}

// SignalEnd sends the end-of-stream marker.
func (c *Codec) SignalEnd() error {
	if err := c.cc.SendFrame(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
		return fmt.Errorf("send eof: %w", err)
	}
	return nil
}

func (c *Codec) TimeBase() media.Rational {
	return fromRational(c.cc.TimeBase())
}

func (c *Codec) Parameters() media.CodecParameters {
	return c.params
}

// Close frees the codec context and buffers.
func (c *Codec) Close() error {
	return c.closer.Close()
}

var _ ports.CodecEncoder = (*Codec)(nil)
