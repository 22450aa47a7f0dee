// Package imagesource reads an image sequence as frames. Images are
// decoded by content (PNG, JPEG, GIF, BMP, TIFF, WebP) and scaled to the
// output size when they differ.
package imagesource

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/ports"
)

var (
	ErrNoImages      = errors.New("imagesource: no images match")
	ErrInvalidConfig = errors.New("imagesource: invalid config")
)

// Config describes the sequence.
type Config struct {
	// Pattern is a glob; matches are used in lexical order.
	Pattern string
	// Width and Height of the frames. Zero takes the first image's size.
	Width  int
	Height int
	FPS    int
	Format media.PixelFormat
	// Hold repeats each image for this many frames (default 1).
	Hold int
}

// Source implements ports.FrameSource.
type Source struct {
	fs     ports.FileSystem
	cfg    Config
	paths  []string
	next   int
	cached image.Image
	cidx   int
}

// New globs cfg.Pattern and creates a source.
func New(fs ports.FileSystem, cfg Config) (*Source, error) {
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("%w: fps %d", ErrInvalidConfig, cfg.FPS)
	}
	if cfg.Hold <= 0 {
		cfg.Hold = 1
	}
	if cfg.Format == "" {
		cfg.Format = media.PixelFormatBGRA
	}
	if !cfg.Format.Packed() {
		return nil, fmt.Errorf("%w: format %s", ErrInvalidConfig, cfg.Format)
	}

	paths, err := fs.Glob(cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", cfg.Pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoImages, cfg.Pattern)
	}
	return &Source{fs: fs, cfg: cfg, paths: paths, cidx: -1}, nil
}

// Len returns the number of frames the source yields.
func (s *Source) Len() int {
	return len(s.paths) * s.cfg.Hold
}

// Size returns the output size, reading the first image if needed.
func (s *Source) Size() (int, int, error) {
	if s.cfg.Width > 0 && s.cfg.Height > 0 {
		return s.cfg.Width, s.cfg.Height, nil
	}
	img, err := s.load(0)
	if err != nil {
		return 0, 0, err
	}
	b := img.Bounds()
	s.cfg.Width, s.cfg.Height = b.Dx(), b.Dy()
	return s.cfg.Width, s.cfg.Height, nil
}

func (s *Source) Next(tb media.Rational) (*media.RawFrame, error) {
	if s.next >= s.Len() {
		return nil, io.EOF
	}
	n := s.next
	s.next++

	w, h, err := s.Size()
	if err != nil {
		return nil, err
	}
	img, err := s.load(n / s.cfg.Hold)
	if err != nil {
		return nil, err
	}
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		img = resize(img, w, h)
	}

	frame, err := media.FromImage(img, s.cfg.Format)
	if err != nil {
		return nil, err
	}
	frame.PTS = media.Rescale(int64(n), media.NewRational(1, s.cfg.FPS), tb)
	return frame, nil
}

func (s *Source) load(i int) (image.Image, error) {
	if i == s.cidx {
		return s.cached, nil
	}
	data, err := s.fs.ReadFile(s.paths[i])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.paths[i], err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.paths[i], err)
	}
	s.cached, s.cidx = img, i
	return img, nil
}

func resize(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

var _ ports.FrameSource = (*Source)(nil)
