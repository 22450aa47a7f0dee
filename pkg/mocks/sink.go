package mocks

import (
	"image"
	"sync"

	"github.com/user/framecoder/pkg/ports"
)

// DebugSink records saved frames by index and the last summary.
type DebugSink struct {
	mu      sync.Mutex
	enabled bool

	SaveFrameFunc func(index int, img image.Image) error

	SourceFrames map[int]image.Image
	Order        []int
	SummaryJSON  []byte
}

func NewDebugSink(enabled bool) *DebugSink {
	return &DebugSink{
		enabled:      enabled,
		SourceFrames: make(map[int]image.Image),
	}
}

func (m *DebugSink) Enabled() bool {
	return m.enabled
}

func (m *DebugSink) SaveSourceFrame(index int, img image.Image) error {
	if m.SaveFrameFunc != nil {
		if err := m.SaveFrameFunc(index, img); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SourceFrames[index] = img
	m.Order = append(m.Order, index)
	return nil
}

func (m *DebugSink) SaveSummaryJSON(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummaryJSON = append([]byte(nil), data...)
	return nil
}

var _ ports.DebugSink = (*DebugSink)(nil)
