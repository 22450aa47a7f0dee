package ffmpegcli

import (
	"github.com/user/framecoder/pkg/adapters/logger"
	"github.com/user/framecoder/pkg/adapters/swconverter"
	"github.com/user/framecoder/pkg/ports"
)

// Backend opens encoders as ffmpeg processes. Pixel conversion happens in
// process with swconverter.
type Backend struct {
	logger ports.Logger
}

// New creates a backend. ffmpeg is located when an encoder is opened.
func New(l ports.Logger) *Backend {
	if l == nil {
		l = logger.NewNoop()
	}
	return &Backend{logger: l.WithComponent("ffmpegcli")}
}

func (b *Backend) OpenEncoder(cfg ports.CodecConfig) (ports.CodecEncoder, error) {
	path, err := FindFFmpeg()
	if err != nil {
		return nil, err
	}
	return start(path, cfg, b.logger)
}

func (b *Backend) NewConverter(cfg ports.ConverterConfig) (ports.PixelConverter, error) {
	return swconverter.New(cfg)
}

var _ ports.CodecBackend = (*Backend)(nil)
