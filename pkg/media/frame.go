package media

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// ErrPlaneLayout is returned when a frame's planes do not match its format.
var ErrPlaneLayout = errors.New("media: plane layout does not match pixel format")

// PictureType is a hint to the codec about how to code a frame.
type PictureType int

const (
	// PictureTypeNone lets the codec decide.
	PictureTypeNone PictureType = iota
	// PictureTypeI requests an intra-coded (key) frame.
	PictureTypeI
	PictureTypeP
	PictureTypeB
)

func (p PictureType) String() string {
	switch p {
	case PictureTypeI:
		return "I"
	case PictureTypeP:
		return "P"
	case PictureTypeB:
		return "B"
	}
	return "?"
}

// RawFrame is an uncompressed image with a presentation timestamp.
// PTS is expressed in the time base of whoever owns the frame.
type RawFrame struct {
	Width       int
	Height      int
	Format      PixelFormat
	Planes      [][]byte
	Strides     []int
	PTS         int64
	PictureType PictureType
}

// NewRawFrame allocates a tightly packed frame.
func NewRawFrame(width, height int, format PixelFormat) *RawFrame {
	n := format.PlaneCount()
	f := &RawFrame{
		Width:   width,
		Height:  height,
		Format:  format,
		Planes:  make([][]byte, n),
		Strides: make([]int, n),
		PTS:     NoPTS,
	}
	for i := 0; i < n; i++ {
		stride, rows := format.PlaneGeometry(i, width, height)
		f.Planes[i] = make([]byte, stride*rows)
		f.Strides[i] = stride
	}
	return f
}

// Validate checks that the planes are large enough for the declared geometry.
func (f *RawFrame) Validate() error {
	n := f.Format.PlaneCount()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPixelFormat, f.Format)
	}
	if len(f.Planes) < n || len(f.Strides) < n {
		return fmt.Errorf("%w: want %d planes, got %d", ErrPlaneLayout, n, len(f.Planes))
	}
	for i := 0; i < n; i++ {
		minStride, rows := f.Format.PlaneGeometry(i, f.Width, f.Height)
		if f.Strides[i] < minStride {
			return fmt.Errorf("%w: plane %d stride %d < %d", ErrPlaneLayout, i, f.Strides[i], minStride)
		}
		if rows > 0 && len(f.Planes[i]) < f.Strides[i]*(rows-1)+minStride {
			return fmt.Errorf("%w: plane %d too short", ErrPlaneLayout, i)
		}
	}
	return nil
}

// Bytes returns the image packed plane after plane without row padding.
func (f *RawFrame) Bytes() []byte {
	out := make([]byte, 0, f.Format.ImageSize(f.Width, f.Height))
	for i := 0; i < f.Format.PlaneCount() && i < len(f.Planes); i++ {
		width, rows := f.Format.PlaneGeometry(i, f.Width, f.Height)
		for y := 0; y < rows; y++ {
			off := y * f.Strides[i]
			out = append(out, f.Planes[i][off:off+width]...)
		}
	}
	return out
}

// SetBytes fills a tightly packed frame from data produced by Bytes.
func (f *RawFrame) SetBytes(data []byte) error {
	if len(data) < f.Format.ImageSize(f.Width, f.Height) {
		return fmt.Errorf("%w: %d bytes for %dx%d %s", ErrPlaneLayout, len(data), f.Width, f.Height, f.Format)
	}
	off := 0
	for i := 0; i < f.Format.PlaneCount(); i++ {
		width, rows := f.Format.PlaneGeometry(i, f.Width, f.Height)
		for y := 0; y < rows; y++ {
			copy(f.Planes[i][y*f.Strides[i]:], data[off:off+width])
			off += width
		}
	}
	return nil
}

// Clone returns a deep copy.
func (f *RawFrame) Clone() *RawFrame {
	c := *f
	c.Planes = make([][]byte, len(f.Planes))
	for i, p := range f.Planes {
		c.Planes[i] = append([]byte(nil), p...)
	}
	c.Strides = append([]int(nil), f.Strides...)
	return &c
}

// FromImage copies img into a new packed frame of the requested format.
// Only RGB24, BGRA and RGBA targets are supported.
func FromImage(img image.Image, format PixelFormat) (*RawFrame, error) {
	if !format.Packed() {
		return nil, fmt.Errorf("%w: cannot build %s from an image", ErrPlaneLayout, format)
	}
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	}
	w, h := b.Dx(), b.Dy()
	f := NewRawFrame(w, h, format)
	dst := f.Planes[0]
	bpp := format.BytesPerPixel()
	for y := 0; y < h; y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		row := dst[y*f.Strides[0]:]
		for x := 0; x < w; x++ {
			r, g, bl, a := src[x*4], src[x*4+1], src[x*4+2], src[x*4+3]
			o := x * bpp
			switch format {
			case PixelFormatRGB24:
				row[o], row[o+1], row[o+2] = r, g, bl
			case PixelFormatBGRA:
				row[o], row[o+1], row[o+2], row[o+3] = bl, g, r, a
			case PixelFormatRGBA:
				row[o], row[o+1], row[o+2], row[o+3] = r, g, bl, a
			}
		}
	}
	return f, nil
}

// ToImage renders the frame as an image.Image. Planar YUV frames are
// returned as *image.YCbCr sharing the frame's memory when tightly packed.
func (f *RawFrame) ToImage() (image.Image, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, f.Width, f.Height)
	switch f.Format {
	case PixelFormatYUV420P:
		return &image.YCbCr{
			Y:              f.Planes[0],
			Cb:             f.Planes[1],
			Cr:             f.Planes[2],
			YStride:        f.Strides[0],
			CStride:        f.Strides[1],
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           rect,
		}, nil
	case PixelFormatNV12:
		img := image.NewYCbCr(rect, image.YCbCrSubsampleRatio420)
		copyPlane(img.Y, img.YStride, f.Planes[0], f.Strides[0], f.Width, f.Height)
		cw, ch := (f.Width+1)/2, (f.Height+1)/2
		for y := 0; y < ch; y++ {
			row := f.Planes[1][y*f.Strides[1]:]
			for x := 0; x < cw; x++ {
				img.Cb[y*img.CStride+x] = row[2*x]
				img.Cr[y*img.CStride+x] = row[2*x+1]
			}
		}
		return img, nil
	}
	img := image.NewRGBA(rect)
	bpp := f.Format.BytesPerPixel()
	for y := 0; y < f.Height; y++ {
		row := f.Planes[0][y*f.Strides[0]:]
		for x := 0; x < f.Width; x++ {
			o := x * bpp
			var c color.RGBA
			switch f.Format {
			case PixelFormatRGB24:
				c = color.RGBA{row[o], row[o+1], row[o+2], 0xff}
			case PixelFormatBGRA:
				c = color.RGBA{row[o+2], row[o+1], row[o], row[o+3]}
			case PixelFormatRGBA:
				c = color.RGBA{row[o], row[o+1], row[o+2], row[o+3]}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

func copyPlane(dst []byte, dstStride int, src []byte, srcStride, width, rows int) {
	for y := 0; y < rows; y++ {
		copy(dst[y*dstStride:y*dstStride+width], src[y*srcStride:y*srcStride+width])
	}
}
