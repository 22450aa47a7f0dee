package media

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestNewRawFrameGeometry(t *testing.T) {
	f := NewRawFrame(5, 3, PixelFormatYUV420P)
	if len(f.Planes) != 3 {
		t.Fatalf("expected 3 planes, got %d", len(f.Planes))
	}
	if f.Strides[0] != 5 || f.Strides[1] != 3 || f.Strides[2] != 3 {
		t.Errorf("unexpected strides %v", f.Strides)
	}
	if len(f.Planes[1]) != 3*2 {
		t.Errorf("chroma plane size = %d, want 6", len(f.Planes[1]))
	}
	if f.PTS != NoPTS {
		t.Errorf("new frame PTS = %d, want NoPTS", f.PTS)
	}
	if err := f.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestValidateRejectsShortPlane(t *testing.T) {
	f := NewRawFrame(4, 4, PixelFormatBGRA)
	f.Planes[0] = f.Planes[0][:10]
	if err := f.Validate(); !errors.Is(err, ErrPlaneLayout) {
		t.Fatalf("expected ErrPlaneLayout, got %v", err)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	f := NewRawFrame(4, 2, PixelFormatNV12)
	for i := range f.Planes[0] {
		f.Planes[0][i] = byte(i)
	}
	for i := range f.Planes[1] {
		f.Planes[1][i] = byte(100 + i)
	}
	data := f.Bytes()
	if len(data) != PixelFormatNV12.ImageSize(4, 2) {
		t.Fatalf("Bytes() len = %d", len(data))
	}
	g := NewRawFrame(4, 2, PixelFormatNV12)
	if err := g.SetBytes(data); err != nil {
		t.Fatalf("SetBytes() = %v", err)
	}
	if g.Planes[1][3] != 103 || g.Planes[0][7] != 7 {
		t.Errorf("round trip mismatch")
	}
}

func TestFromImageAndBack(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{10, 20, 30, 255})
	img.SetRGBA(1, 0, color.RGBA{40, 50, 60, 255})

	f, err := FromImage(img, PixelFormatBGRA)
	if err != nil {
		t.Fatalf("FromImage() = %v", err)
	}
	if got := f.Planes[0][:4]; got[0] != 30 || got[1] != 20 || got[2] != 10 {
		t.Errorf("BGRA pixel = %v", got)
	}

	rgb, err := FromImage(img, PixelFormatRGB24)
	if err != nil {
		t.Fatalf("FromImage() = %v", err)
	}
	if rgb.Strides[0] != 6 || rgb.Planes[0][3] != 40 {
		t.Errorf("RGB24 layout unexpected: %v", rgb.Planes[0])
	}

	back, err := f.ToImage()
	if err != nil {
		t.Fatalf("ToImage() = %v", err)
	}
	r, g, b, _ := back.At(1, 0).RGBA()
	if r>>8 != 40 || g>>8 != 50 || b>>8 != 60 {
		t.Errorf("pixel (1,0) = %d,%d,%d", r>>8, g>>8, b>>8)
	}

	if _, err := FromImage(img, PixelFormatYUV420P); err == nil {
		t.Error("expected error for planar target")
	}
}

func TestParsePixelFormat(t *testing.T) {
	f, err := ParsePixelFormat(" YUV420P ")
	if err != nil || f != PixelFormatYUV420P {
		t.Fatalf("ParsePixelFormat = %v, %v", f, err)
	}
	if _, err := ParsePixelFormat("p010le"); !errors.Is(err, ErrUnknownPixelFormat) {
		t.Fatalf("expected ErrUnknownPixelFormat, got %v", err)
	}
}
