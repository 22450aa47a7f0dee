package encode

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/user/framecoder/pkg/adapters/logger"
	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/mocks"
	"github.com/user/framecoder/pkg/pipeline"
)

func TestStage_Execute(t *testing.T) {
	mockEncoder := &mocks.VideoEncoder{}
	stage := NewStage(mockEncoder, logger.NewNoop())

	input := pipeline.EncodeInput{
		Source: mocks.NewFrameSource(64, 48, 3),
		FPS:    30,
	}

	result, err := stage.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !mockEncoder.FinishCalled {
		t.Error("expected Finish to be called")
	}
	if len(mockEncoder.PTS) != 3 {
		t.Fatalf("expected 3 EncodeRaw calls, got %d", len(mockEncoder.PTS))
	}
	want := []int64{0, 33333, 66667}
	for i, pts := range want {
		if mockEncoder.PTS[i] != pts {
			t.Errorf("frame %d PTS = %d, want %d", i, mockEncoder.PTS[i], pts)
		}
	}
	if result.Frames != 3 {
		t.Errorf("expected 3 frames, got %d", result.Frames)
	}
	// 66667us + one frame at 30fps
	if result.Duration != 100*time.Millisecond {
		t.Errorf("expected duration 100ms, got %v", result.Duration)
	}
}

func TestStage_Execute_Outro(t *testing.T) {
	mockEncoder := &mocks.VideoEncoder{}
	stage := NewStage(mockEncoder, logger.NewNoop())

	input := pipeline.EncodeInput{
		Source:      mocks.NewFrameSource(64, 48, 2),
		OutroFrames: 2,
		FPS:         30,
	}

	result, err := stage.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 2 frames + 2 outro frames
	if len(mockEncoder.PTS) != 4 {
		t.Fatalf("expected 4 EncodeRaw calls, got %d", len(mockEncoder.PTS))
	}
	for i := 1; i < 4; i++ {
		if mockEncoder.PTS[i] <= mockEncoder.PTS[i-1] {
			t.Errorf("PTS not increasing at %d: %v", i, mockEncoder.PTS)
		}
	}
	if result.OutroFrames != 2 {
		t.Errorf("expected 2 outro frames, got %d", result.OutroFrames)
	}
}

func TestStage_Execute_MaxFrames(t *testing.T) {
	mockEncoder := &mocks.VideoEncoder{}
	stage := NewStage(mockEncoder, logger.NewNoop())

	result, err := stage.Execute(context.Background(), pipeline.EncodeInput{
		Source:    mocks.NewFrameSource(64, 48, 100),
		MaxFrames: 5,
		FPS:       30,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Frames != 5 {
		t.Errorf("expected 5 frames, got %d", result.Frames)
	}
}

func TestStage_Execute_NoFrames(t *testing.T) {
	mockEncoder := &mocks.VideoEncoder{}
	stage := NewStage(mockEncoder, logger.NewNoop())

	_, err := stage.Execute(context.Background(), pipeline.EncodeInput{
		Source: mocks.NewFrameSource(64, 48, 0),
		FPS:    30,
	})
	if !errors.Is(err, ErrNoFrames) {
		t.Errorf("expected ErrNoFrames, got %v", err)
	}
	if mockEncoder.FinishCalled {
		t.Error("Finish should not be called without frames")
	}
}

func TestStage_Execute_ContextCancelled(t *testing.T) {
	mockEncoder := &mocks.VideoEncoder{}
	stage := NewStage(mockEncoder, logger.NewNoop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := stage.Execute(ctx, pipeline.EncodeInput{
		Source: mocks.NewFrameSource(64, 48, 3),
		FPS:    30,
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(mockEncoder.PTS) != 0 {
		t.Errorf("expected no frames encoded, got %d", len(mockEncoder.PTS))
	}
}

func TestStage_Execute_EncoderError(t *testing.T) {
	encodeErr := errors.New("boom")
	mockEncoder := &mocks.VideoEncoder{
		EncodeRawFunc: func(frame *media.RawFrame) error {
			return encodeErr
		},
	}
	stage := NewStage(mockEncoder, logger.NewNoop())

	_, err := stage.Execute(context.Background(), pipeline.EncodeInput{
		Source: mocks.NewFrameSource(64, 48, 3),
		FPS:    30,
	})
	if !errors.Is(err, encodeErr) {
		t.Errorf("expected wrapped encoder error, got %v", err)
	}
}

func TestStage_Execute_DebugSink(t *testing.T) {
	mockEncoder := &mocks.VideoEncoder{}
	sink := mocks.NewDebugSink(true)
	stage := NewStage(mockEncoder, logger.NewNoop()).WithDebugSink(sink)

	_, err := stage.Execute(context.Background(), pipeline.EncodeInput{
		Source: mocks.NewFrameSource(16, 8, 2),
		FPS:    30,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sink.SourceFrames) != 2 {
		t.Errorf("expected 2 saved frames, got %d", len(sink.SourceFrames))
	}
}

func TestStage_Execute_DebugSinkErrorIsNotFatal(t *testing.T) {
	mockEncoder := &mocks.VideoEncoder{}
	sink := mocks.NewDebugSink(true)
	sink.SaveFrameFunc = func(index int, img image.Image) error {
		if index == 1 {
			return errors.New("disk full")
		}
		return nil
	}
	stage := NewStage(mockEncoder, logger.NewNoop()).WithDebugSink(sink)

	result, err := stage.Execute(context.Background(), pipeline.EncodeInput{
		Source: mocks.NewFrameSource(16, 8, 3),
		FPS:    30,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Frames != 3 || len(mockEncoder.PTS) != 3 {
		t.Errorf("all frames should be encoded, got %d", len(mockEncoder.PTS))
	}
	if len(sink.Order) != 2 || sink.Order[0] != 0 || sink.Order[1] != 2 {
		t.Errorf("saved frames = %v, want [0 2]", sink.Order)
	}
}
