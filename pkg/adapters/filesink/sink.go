// Package filesink writes debug output (source frames, encode summary)
// under a directory.
package filesink

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"path/filepath"

	"github.com/user/framecoder/pkg/ports"
)

// Sink saves debug output to files.
type Sink struct {
	baseDir string
	fs      ports.FileSystem
	// Every keeps only every n-th source frame; 0 or 1 keeps all.
	Every int
}

// New creates a new Sink.
func New(baseDir string, fs ports.FileSystem) *Sink {
	return &Sink{baseDir: baseDir, fs: fs}
}

func (s *Sink) Enabled() bool {
	return true
}

// SaveSourceFrame saves a frame as frames/frame-NNNN.png.
func (s *Sink) SaveSourceFrame(index int, img image.Image) error {
	if s.Every > 1 && index%s.Every != 0 {
		return nil
	}
	dir := filepath.Join(s.baseDir, "frames")
	if err := s.fs.MkdirAll(dir); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode source frame: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("frame-%04d.png", index))
	return s.fs.WriteFile(path, buf.Bytes())
}

// SaveSummaryJSON saves summary.json.
func (s *Sink) SaveSummaryJSON(data []byte) error {
	return s.fs.WriteFile(filepath.Join(s.baseDir, "summary.json"), data)
}

var _ ports.DebugSink = (*Sink)(nil)
