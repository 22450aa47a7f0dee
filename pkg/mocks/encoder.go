package mocks

import (
	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/ports"
)

// VideoEncoder is a mock implementation of ports.VideoEncoder.
type VideoEncoder struct {
	TB            media.Rational
	EncodeRawFunc func(frame *media.RawFrame) error
	FinishFunc    func() error

	// Recorded calls for verification
	PTS          []int64
	FinishCalled bool
}

func (m *VideoEncoder) EncodeRaw(frame *media.RawFrame) error {
	m.PTS = append(m.PTS, frame.PTS)
	if m.EncodeRawFunc != nil {
		return m.EncodeRawFunc(frame)
	}
	return nil
}

func (m *VideoEncoder) Finish() error {
	m.FinishCalled = true
	if m.FinishFunc != nil {
		return m.FinishFunc()
	}
	return nil
}

func (m *VideoEncoder) TimeBase() media.Rational {
	if m.TB.Den == 0 {
		return media.MicrosecondTimeBase
	}
	return m.TB
}

var _ ports.VideoEncoder = (*VideoEncoder)(nil)
