// Package swconverter is a pure Go ports.PixelConverter for packed RGB
// input. It needs no native libraries, so it backs tests and builds
// without libav.
package swconverter

import (
	"errors"
	"fmt"

	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/ports"
)

var (
	// ErrUnsupportedSource is returned for input formats other than RGB24, BGRA and RGBA.
	ErrUnsupportedSource = errors.New("swconverter: unsupported source format")
	// ErrUnsupportedTarget is returned by New for targets it cannot produce.
	ErrUnsupportedTarget = errors.New("swconverter: unsupported target format")
	// ErrSizeMismatch is returned when a frame does not match the configured size.
	ErrSizeMismatch = errors.New("swconverter: frame size mismatch")
)

// Converter converts packed RGB frames to a fixed target format at the
// same dimensions using BT.601 limited range coefficients.
type Converter struct {
	width  int
	height int
	target media.PixelFormat
}

// New creates a converter for cfg.
func New(cfg ports.ConverterConfig) (*Converter, error) {
	switch cfg.Target {
	case media.PixelFormatYUV420P, media.PixelFormatNV12,
		media.PixelFormatRGB24, media.PixelFormatBGRA, media.PixelFormatRGBA:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTarget, cfg.Target)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrSizeMismatch, cfg.Width, cfg.Height)
	}
	return &Converter{width: cfg.Width, height: cfg.Height, target: cfg.Target}, nil
}

// Convert returns a new frame in the target format carrying frame's PTS.
func (c *Converter) Convert(frame *media.RawFrame) (*media.RawFrame, error) {
	if frame.Width != c.width || frame.Height != c.height {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d", ErrSizeMismatch, frame.Width, frame.Height, c.width, c.height)
	}
	order, ok := channelOrder(frame.Format)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, frame.Format)
	}
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	out := media.NewRawFrame(c.width, c.height, c.target)
	out.PTS = frame.PTS
	out.PictureType = frame.PictureType

	switch c.target {
	case media.PixelFormatYUV420P:
		c.toYUV(frame, order, out.Planes[0], out.Strides[0], func(x, y int, u, v byte) {
			out.Planes[1][y*out.Strides[1]+x] = u
			out.Planes[2][y*out.Strides[2]+x] = v
		})
	case media.PixelFormatNV12:
		c.toYUV(frame, order, out.Planes[0], out.Strides[0], func(x, y int, u, v byte) {
			o := y*out.Strides[1] + 2*x
			out.Planes[1][o] = u
			out.Planes[1][o+1] = v
		})
	default:
		dst, _ := channelOrder(c.target)
		repack(frame, order, out, dst)
	}
	return out, nil
}

// Close does nothing.
func (c *Converter) Close() error {
	return nil
}

// rgba offsets of the red, green, blue and alpha bytes within a pixel;
// alpha is -1 when absent.
type layout struct {
	r, g, b, a int
	bpp        int
}

func channelOrder(f media.PixelFormat) (layout, bool) {
	switch f {
	case media.PixelFormatRGB24:
		return layout{0, 1, 2, -1, 3}, true
	case media.PixelFormatBGRA:
		return layout{2, 1, 0, 3, 4}, true
	case media.PixelFormatRGBA:
		return layout{0, 1, 2, 3, 4}, true
	}
	return layout{}, false
}

// toYUV writes luma into y and calls chroma once per 2x2 block with the
// block's averaged U and V.
func (c *Converter) toYUV(src *media.RawFrame, l layout, y []byte, yStride int, chroma func(x, y int, u, v byte)) {
	pix, stride := src.Planes[0], src.Strides[0]
	for row := 0; row < c.height; row++ {
		line := pix[row*stride:]
		for col := 0; col < c.width; col++ {
			o := col * l.bpp
			y[row*yStride+col] = luma(int(line[o+l.r]), int(line[o+l.g]), int(line[o+l.b]))
		}
	}
	for cy := 0; cy < (c.height+1)/2; cy++ {
		for cx := 0; cx < (c.width+1)/2; cx++ {
			var r, g, b, n int
			for dy := 0; dy < 2; dy++ {
				py := cy*2 + dy
				if py >= c.height {
					continue
				}
				for dx := 0; dx < 2; dx++ {
					px := cx*2 + dx
					if px >= c.width {
						continue
					}
					o := py*stride + px*l.bpp
					r += int(pix[o+l.r])
					g += int(pix[o+l.g])
					b += int(pix[o+l.b])
					n++
				}
			}
			r, g, b = r/n, g/n, b/n
			chroma(cx, cy, chromaU(r, g, b), chromaV(r, g, b))
		}
	}
}

func repack(src *media.RawFrame, from layout, dst *media.RawFrame, to layout) {
	for row := 0; row < src.Height; row++ {
		in := src.Planes[0][row*src.Strides[0]:]
		out := dst.Planes[0][row*dst.Strides[0]:]
		for col := 0; col < src.Width; col++ {
			i, o := col*from.bpp, col*to.bpp
			out[o+to.r] = in[i+from.r]
			out[o+to.g] = in[i+from.g]
			out[o+to.b] = in[i+from.b]
			if to.a >= 0 {
				alpha := byte(0xff)
				if from.a >= 0 {
					alpha = in[i+from.a]
				}
				out[o+to.a] = alpha
			}
		}
	}
}

func luma(r, g, b int) byte {
	return clamp(((66*r + 129*g + 25*b + 128) >> 8) + 16)
}

func chromaU(r, g, b int) byte {
	return clamp(((-38*r - 74*g + 112*b + 128) >> 8) + 128)
}

func chromaV(r, g, b int) byte {
	return clamp(((112*r - 94*g - 18*b + 128) >> 8) + 128)
}

func clamp(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

var _ ports.PixelConverter = (*Converter)(nil)
