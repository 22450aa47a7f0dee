package ports

import (
	"image"
)

// DebugSink abstracts debug output for intermediate results.
type DebugSink interface {
	// Enabled returns true if debug output is enabled.
	Enabled() bool

	// SaveSourceFrame saves a frame as produced by the frame source.
	SaveSourceFrame(index int, img image.Image) error

	// SaveSummaryJSON saves the encode summary as JSON.
	SaveSummaryJSON(data []byte) error
}
