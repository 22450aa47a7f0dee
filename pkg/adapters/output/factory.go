// Package output chooses a muxer for an output name or format.
package output

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/user/framecoder/pkg/adapters/libav"
	"github.com/user/framecoder/pkg/adapters/logger"
	"github.com/user/framecoder/pkg/adapters/mp4mux"
	"github.com/user/framecoder/pkg/adapters/tsmux"
	"github.com/user/framecoder/pkg/ports"
)

// Muxer kinds.
const (
	KindFMP4   = "fmp4"
	KindMPEGTS = "mpegts"
	KindLibav  = "libav"
)

var ErrNoMuxer = errors.New("output: no muxer for output")

// Factory implements ports.MuxerFactory. The pure Go muxers are used for
// .mp4 and .ts outputs unless PreferLibav is set; every other format is
// handed to libav.
type Factory struct {
	logger      ports.Logger
	PreferLibav bool
	// DisableLibav restricts the factory to the pure Go muxers, e.g. when
	// the codec backend is not libav and cannot fill libav streams.
	DisableLibav bool
}

// NewFactory creates a factory.
func NewFactory(l ports.Logger) *Factory {
	if l == nil {
		l = logger.NewNoop()
	}
	return &Factory{logger: l}
}

// Kind returns the muxer kind that Open would select.
func (f *Factory) Kind(name, format string) string {
	switch strings.ToLower(format) {
	case "mp4", "fmp4", "mov":
		if f.PreferLibav && !f.DisableLibav {
			return KindLibav
		}
		return KindFMP4
	case "mpegts", "ts":
		if f.PreferLibav && !f.DisableLibav {
			return KindLibav
		}
		return KindMPEGTS
	case "":
	default:
		return KindLibav
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".m4v":
		return f.Kind("", "mp4")
	case ".ts", ".m2ts":
		return f.Kind("", "mpegts")
	}
	return KindLibav
}

func (f *Factory) Open(w io.Writer, name, format string, options map[string]string) (ports.MuxWriter, error) {
	kind := f.Kind(name, format)
	f.logger.Debug("Opening %s muxer for %s", kind, name)

	switch kind {
	case KindFMP4:
		return mp4mux.New(w, mp4mux.WithLogger(f.logger)), nil
	case KindMPEGTS:
		return tsmux.New(w, tsmux.WithLogger(f.logger)), nil
	}

	if f.DisableLibav {
		return nil, fmt.Errorf("%w: %s (format %q)", ErrNoMuxer, name, format)
	}
	if format == "mp4" || (format == "" && strings.EqualFold(filepath.Ext(name), ".mp4")) {
		if _, ok := w.(io.Seeker); !ok && options["movflags"] == "" {
			options = withOption(options, "movflags", "frag_keyframe+empty_moov")
		}
	}
	m, err := libav.NewMuxer(w, name, format,
		libav.WithMuxerLogger(f.logger),
		libav.WithFormatOptions(options))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoMuxer, name, err)
	}
	return m, nil
}

func withOption(opts map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(opts)+1)
	for key, val := range opts {
		out[key] = val
	}
	out[k] = v
	return out
}

var _ ports.MuxerFactory = (*Factory)(nil)
