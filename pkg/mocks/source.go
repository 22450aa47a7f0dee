package mocks

import (
	"io"

	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/ports"
)

// FrameSource yields Count blank frames at FPS, then io.EOF.
type FrameSource struct {
	Width  int
	Height int
	Format media.PixelFormat
	FPS    int
	Count  int

	NextFunc func(tb media.Rational) (*media.RawFrame, error)

	Served int
}

// NewFrameSource returns a BGRA source at 30 fps.
func NewFrameSource(width, height, count int) *FrameSource {
	return &FrameSource{
		Width:  width,
		Height: height,
		Format: media.PixelFormatBGRA,
		FPS:    30,
		Count:  count,
	}
}

func (m *FrameSource) Next(tb media.Rational) (*media.RawFrame, error) {
	if m.NextFunc != nil {
		return m.NextFunc(tb)
	}
	if m.Served >= m.Count {
		return nil, io.EOF
	}
	f := media.NewRawFrame(m.Width, m.Height, m.Format)
	f.PTS = media.Rescale(int64(m.Served), media.NewRational(1, m.FPS), tb)
	m.Served++
	return f, nil
}

var _ ports.FrameSource = (*FrameSource)(nil)
