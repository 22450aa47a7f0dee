// Package nullsink is the debug sink used when --debug is off.
package nullsink

import (
	"image"

	"github.com/user/framecoder/pkg/ports"
)

// Sink drops everything. Enabled reports false so the encode stage does
// not convert frames to images for it.
type Sink struct{}

func New() *Sink { return &Sink{} }

func (*Sink) Enabled() bool                          { return false }
func (*Sink) SaveSourceFrame(int, image.Image) error { return nil }
func (*Sink) SaveSummaryJSON([]byte) error           { return nil }

var _ ports.DebugSink = (*Sink)(nil)
