// Package patternsource draws synthetic test frames with gg: colour bars,
// a moving marker and a frame counter.
package patternsource

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/fogleman/gg"

	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/ports"
)

var ErrInvalidConfig = errors.New("patternsource: invalid config")

// bars are the 75% SMPTE colour bars, left to right.
var bars = []color.RGBA{
	{191, 191, 191, 255},
	{191, 191, 0, 255},
	{0, 191, 191, 255},
	{0, 191, 0, 255},
	{191, 0, 191, 255},
	{191, 0, 0, 255},
	{0, 0, 191, 255},
}

// Config describes the generated sequence.
type Config struct {
	Width  int
	Height int
	FPS    int
	Count  int
	Format media.PixelFormat // rgb24, bgra or rgba
	Label  string
}

// Source implements ports.FrameSource.
type Source struct {
	cfg  Config
	next int
}

// New validates cfg and creates a source.
func New(cfg Config) (*Source, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidConfig, cfg.Width, cfg.Height)
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("%w: fps %d", ErrInvalidConfig, cfg.FPS)
	}
	if cfg.Format == "" {
		cfg.Format = media.PixelFormatBGRA
	}
	if !cfg.Format.Packed() {
		return nil, fmt.Errorf("%w: format %s", ErrInvalidConfig, cfg.Format)
	}
	return &Source{cfg: cfg}, nil
}

// Next draws the next frame. PTS is the frame index at the configured
// frame rate, expressed in tb.
func (s *Source) Next(tb media.Rational) (*media.RawFrame, error) {
	if s.next >= s.cfg.Count {
		return nil, io.EOF
	}
	n := s.next
	s.next++

	frame, err := media.FromImage(s.draw(n).Image(), s.cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("convert pattern frame: %w", err)
	}
	frame.PTS = media.Rescale(int64(n), media.NewRational(1, s.cfg.FPS), tb)
	return frame, nil
}

func (s *Source) draw(n int) *gg.Context {
	w, h := float64(s.cfg.Width), float64(s.cfg.Height)
	dc := gg.NewContext(s.cfg.Width, s.cfg.Height)

	barW := w / float64(len(bars))
	for i, c := range bars {
		dc.SetColor(c)
		dc.DrawRectangle(float64(i)*barW, 0, barW+1, h*0.75)
		dc.Fill()
	}
	dc.SetRGB(0.07, 0.07, 0.07)
	dc.DrawRectangle(0, h*0.75, w, h*0.25)
	dc.Fill()

	// marker sweeps across the lower band once per second
	size := h * 0.15
	x := (w - size) * float64(n%s.cfg.FPS) / float64(s.cfg.FPS)
	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(x, h*0.75+(h*0.25-size)/2, size, size)
	dc.Fill()

	text := fmt.Sprintf("#%d", n)
	if s.cfg.Label != "" {
		text = s.cfg.Label + " " + text
	}
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(text, w/2, h*0.375, 0.5, 0.5)
	return dc
}

// Remaining returns how many frames are left.
func (s *Source) Remaining() int {
	return s.cfg.Count - s.next
}

var _ ports.FrameSource = (*Source)(nil)
