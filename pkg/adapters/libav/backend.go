// Package libav implements the codec, pixel converter and muxer ports on
// top of FFmpeg's libraries through go-astiav.
package libav

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/user/framecoder/pkg/adapters/logger"
	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/ports"
)

var (
	// ErrCodecNotFound is returned when neither the preferred nor the
	// standard codec is available.
	ErrCodecNotFound = errors.New("libav: codec not found")

	// ErrAlloc is returned when libav fails to allocate a context.
	ErrAlloc = errors.New("libav: allocation failed")

	// ErrPixelFormat is returned for pixel formats libav does not know.
	ErrPixelFormat = errors.New("libav: unknown pixel format")

	// ErrForeignParameters is returned when stream parameters do not come
	// from a libav codec.
	ErrForeignParameters = errors.New("libav: stream parameters were not produced by a libav codec")
)

var standardCodecs = map[string]astiav.CodecID{
	"h264": astiav.CodecIDH264,
	"hevc": astiav.CodecIDHevc,
}

var logOnce sync.Once

// Backend opens libav codecs and swscale converters.
type Backend struct {
	logger ports.Logger
}

// New creates a backend. libav's own log output is routed to l at the
// matching level.
func New(l ports.Logger) *Backend {
	if l == nil {
		l = logger.NewNoop()
	}
	b := &Backend{logger: l.WithComponent("libav")}
	logOnce.Do(func() {
		routeLogs(b.logger)
	})
	return b
}

// OpenEncoder finds cfg's preferred codec, falling back to any encoder for
// the standard, and opens it.
func (b *Backend) OpenEncoder(cfg ports.CodecConfig) (ports.CodecEncoder, error) {
	codec, err := b.findEncoder(cfg.Codec)
	if err != nil {
		return nil, err
	}
	return openCodec(codec, cfg)
}

// NewConverter creates a swscale based converter.
func (b *Backend) NewConverter(cfg ports.ConverterConfig) (ports.PixelConverter, error) {
	return NewConverter(cfg)
}

func (b *Backend) findEncoder(sel ports.CodecSelection) (*astiav.Codec, error) {
	if sel.Preferred != "" {
		if c := astiav.FindEncoderByName(sel.Preferred); c != nil {
			return c, nil
		}
	}
	id, ok := standardCodecs[sel.Standard]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCodecNotFound, sel.Standard)
	}
	c := astiav.FindEncoder(id)
	if c == nil {
		return nil, fmt.Errorf("%w: no %s encoder", ErrCodecNotFound, sel.Standard)
	}
	b.logger.Warn("Codec %s not found, falling back to %s", sel.Preferred, c.Name())
	return c, nil
}

func routeLogs(l ports.Logger) {
	astiav.SetLogLevel(astiav.LogLevelWarning)
	astiav.SetLogCallback(func(c astiav.Classer, level astiav.LogLevel, format, msg string) {
		msg = strings.TrimSpace(msg)
		switch {
		case level <= astiav.LogLevelError:
			l.Error("%s", msg)
		case level <= astiav.LogLevelWarning:
			l.Warn("%s", msg)
		default:
			l.Debug("%s", msg)
		}
	})
}

func pixelFormat(f media.PixelFormat) (astiav.PixelFormat, error) {
	pf := astiav.FindPixelFormatByName(string(f))
	if pf == astiav.PixelFormatNone {
		return pf, fmt.Errorf("%w: %s", ErrPixelFormat, f)
	}
	return pf, nil
}

func toRational(r media.Rational) astiav.Rational {
	return astiav.NewRational(r.Num, r.Den)
}

func fromRational(r astiav.Rational) media.Rational {
	return media.NewRational(r.Num(), r.Den())
}

func dictionary(options map[string]string) *astiav.Dictionary {
	d := astiav.NewDictionary()
	for k, v := range options {
		d.Set(k, v, 0)
	}
	return d
}

var _ ports.CodecBackend = (*Backend)(nil)
