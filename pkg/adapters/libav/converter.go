package libav

import (
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/ports"
)

// Converter converts frames with swscale. One scale context is kept per
// source pixel format.
type Converter struct {
	closer *astikit.Closer
	cfg    ports.ConverterConfig
	target astiav.PixelFormat
	src    *astiav.Frame
	dst    *astiav.Frame
	scales map[media.PixelFormat]*astiav.SoftwareScaleContext
}

// NewConverter creates a converter producing cfg.Target at cfg's size.
func NewConverter(cfg ports.ConverterConfig) (*Converter, error) {
	target, err := pixelFormat(cfg.Target)
	if err != nil {
		return nil, err
	}
	c := &Converter{
		closer: astikit.NewCloser(),
		cfg:    cfg,
		target: target,
		scales: make(map[media.PixelFormat]*astiav.SoftwareScaleContext),
	}
	c.src = astiav.AllocFrame()
	c.closer.Add(c.src.Free)
	c.dst = astiav.AllocFrame()
	c.closer.Add(c.dst.Free)
	return c, nil
}

// Convert scales frame to the target format. The result carries the
// input PTS.
func (c *Converter) Convert(frame *media.RawFrame) (*media.RawFrame, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	ssc, err := c.scaleContext(frame.Format)
	if err != nil {
		return nil, err
	}
	defer c.src.Unref()
	defer c.dst.Unref()

	pf, _ := pixelFormat(frame.Format)
	c.src.SetWidth(frame.Width)
	c.src.SetHeight(frame.Height)
	c.src.SetPixelFormat(pf)
	if err := c.src.AllocBuffer(frameAlign); err != nil {
		return nil, fmt.Errorf("alloc source buffer: %w", err)
	}
	if err := c.src.Data().SetBytes(frame.Bytes(), frameAlign); err != nil {
		return nil, fmt.Errorf("copy source data: %w", err)
	}

	if err := ssc.ScaleFrame(c.src, c.dst); err != nil {
		return nil, fmt.Errorf("scale frame: %w", err)
	}

	data, err := c.dst.Data().Bytes(frameAlign)
	if err != nil {
		return nil, fmt.Errorf("read scaled data: %w", err)
	}
	out := media.NewRawFrame(c.cfg.Width, c.cfg.Height, c.cfg.Target)
	if err := out.SetBytes(data); err != nil {
		return nil, err
	}
	out.PTS = frame.PTS
	return out, nil
}

func (c *Converter) scaleContext(src media.PixelFormat) (*astiav.SoftwareScaleContext, error) {
	if ssc, ok := c.scales[src]; ok {
		return ssc, nil
	}
	pf, err := pixelFormat(src)
	if err != nil {
		return nil, err
	}
	ssc, err := astiav.CreateSoftwareScaleContext(
		c.cfg.Width, c.cfg.Height, pf,
		c.cfg.Width, c.cfg.Height, c.target,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return nil, fmt.Errorf("create scale context %s->%s: %w", src, c.cfg.Target, err)
	}
	c.closer.Add(ssc.Free)
	c.scales[src] = ssc
	return ssc, nil
}

// Close frees all scale contexts and frames.
func (c *Converter) Close() error {
	return c.closer.Close()
}

var _ ports.PixelConverter = (*Converter)(nil)
