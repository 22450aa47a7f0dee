// Package encode implements the stage that feeds a frame source into a
// video encoder.
package encode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/user/framecoder/pkg/adapters/nullsink"
	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/pipeline"
	"github.com/user/framecoder/pkg/ports"
)

var ErrNoFrames = errors.New("encode: source produced no frames")

// Stage drives a FrameSource into a VideoEncoder. The context is checked
// between frames; a frame already handed to the encoder is never
// interrupted.
type Stage struct {
	encoder ports.VideoEncoder
	logger  ports.Logger
	sink    ports.DebugSink
	now     func() time.Time
}

// NewStage creates a new encode stage.
func NewStage(encoder ports.VideoEncoder, logger ports.Logger) *Stage {
	return &Stage{
		encoder: encoder,
		logger:  logger.WithComponent("encode"),
		sink:    nullsink.New(),
		now:     time.Now,
	}
}

// WithDebugSink saves every source frame to sink when it is enabled.
func (s *Stage) WithDebugSink(sink ports.DebugSink) *Stage {
	if sink != nil {
		s.sink = sink
	}
	return s
}

// Execute encodes the source and finishes the encoder.
func (s *Stage) Execute(ctx context.Context, input pipeline.EncodeInput) (pipeline.EncodeResult, error) {
	result := pipeline.EncodeResult{FirstPTS: media.NoPTS, LastPTS: media.NoPTS}
	start := s.now()
	tb := s.encoder.TimeBase()

	var last *media.RawFrame
	for input.MaxFrames == 0 || result.Frames < input.MaxFrames {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		frame, err := input.Source.Next(tb)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("read frame %d: %w", result.Frames, err)
		}

		if s.sink.Enabled() {
			if img, err := frame.ToImage(); err == nil {
				if err := s.sink.SaveSourceFrame(result.Frames, img); err != nil {
					s.logger.Warn("Failed to save frame %d: %v", result.Frames, err)
				}
			}
		}

		if err := s.encode(frame, &result); err != nil {
			return result, err
		}
		last = frame
	}

	if last == nil {
		return result, ErrNoFrames
	}

	if input.OutroFrames > 0 && input.FPS > 0 {
		step := media.Rescale(1, media.NewRational(1, input.FPS), tb)
		for i := 0; i < input.OutroFrames; i++ {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			default:
			}
			frame := last.Clone()
			frame.PTS = result.LastPTS + step
			if err := s.encode(frame, &result); err != nil {
				return result, fmt.Errorf("encode outro frame: %w", err)
			}
			result.OutroFrames++
		}
	}

	if err := s.encoder.Finish(); err != nil {
		return result, fmt.Errorf("finish encoding: %w", err)
	}

	frameDur := int64(0)
	if input.FPS > 0 {
		frameDur = media.Rescale(1, media.NewRational(1, input.FPS), tb)
	}
	result.Duration = media.TicksToDuration(result.LastPTS-result.FirstPTS+frameDur, tb)
	result.Elapsed = s.now().Sub(start)

	s.logger.Debug("Encoded %d frames (%d outro) in %v", result.Frames, result.OutroFrames, result.Elapsed)
	return result, nil
}

func (s *Stage) encode(frame *media.RawFrame, result *pipeline.EncodeResult) error {
	if err := s.encoder.EncodeRaw(frame); err != nil {
		return fmt.Errorf("encode frame %d (pts %d): %w", result.Frames, frame.PTS, err)
	}
	if result.FirstPTS == media.NoPTS {
		result.FirstPTS = frame.PTS
	}
	result.LastPTS = frame.PTS
	result.Frames++
	return nil
}

var _ pipeline.Stage[pipeline.EncodeInput, pipeline.EncodeResult] = (*Stage)(nil)
