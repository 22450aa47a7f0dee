package media

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPixelFormat is returned when a pixel format name is not recognised.
var ErrUnknownPixelFormat = errors.New("media: unknown pixel format")

// PixelFormat names a raw image layout. Values use libav naming.
type PixelFormat string

const (
	PixelFormatNone    PixelFormat = ""
	PixelFormatRGB24   PixelFormat = "rgb24"
	PixelFormatBGRA    PixelFormat = "bgra"
	PixelFormatRGBA    PixelFormat = "rgba"
	PixelFormatYUV420P PixelFormat = "yuv420p"
	PixelFormatNV12    PixelFormat = "nv12"
)

var knownFormats = []PixelFormat{
	PixelFormatRGB24,
	PixelFormatBGRA,
	PixelFormatRGBA,
	PixelFormatYUV420P,
	PixelFormatNV12,
}

// ParsePixelFormat parses a libav style pixel format name.
func ParsePixelFormat(s string) (PixelFormat, error) {
	name := PixelFormat(strings.ToLower(strings.TrimSpace(s)))
	for _, f := range knownFormats {
		if f == name {
			return f, nil
		}
	}
	return PixelFormatNone, fmt.Errorf("%w: %q", ErrUnknownPixelFormat, s)
}

func (f PixelFormat) String() string {
	if f == PixelFormatNone {
		return "none"
	}
	return string(f)
}

// Packed reports whether all components live in a single interleaved plane.
func (f PixelFormat) Packed() bool {
	switch f {
	case PixelFormatRGB24, PixelFormatBGRA, PixelFormatRGBA:
		return true
	}
	return false
}

// BytesPerPixel returns the pixel size of a packed format, or 0.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormatRGB24:
		return 3
	case PixelFormatBGRA, PixelFormatRGBA:
		return 4
	}
	return 0
}

// PlaneCount returns the number of planes the format uses.
func (f PixelFormat) PlaneCount() int {
	switch f {
	case PixelFormatRGB24, PixelFormatBGRA, PixelFormatRGBA:
		return 1
	case PixelFormatNV12:
		return 2
	case PixelFormatYUV420P:
		return 3
	}
	return 0
}

// PlaneGeometry returns the tightly packed stride and row count of plane i
// for an image of the given size.
func (f PixelFormat) PlaneGeometry(i, width, height int) (stride, rows int) {
	cw, ch := (width+1)/2, (height+1)/2
	switch f {
	case PixelFormatRGB24, PixelFormatBGRA, PixelFormatRGBA:
		if i == 0 {
			return width * f.BytesPerPixel(), height
		}
	case PixelFormatYUV420P:
		switch i {
		case 0:
			return width, height
		case 1, 2:
			return cw, ch
		}
	case PixelFormatNV12:
		switch i {
		case 0:
			return width, height
		case 1:
			return cw * 2, ch
		}
	}
	return 0, 0
}

// ImageSize returns the number of bytes of a tightly packed image.
func (f PixelFormat) ImageSize(width, height int) int {
	n := 0
	for i := 0; i < f.PlaneCount(); i++ {
		s, r := f.PlaneGeometry(i, width, height)
		n += s * r
	}
	return n
}
