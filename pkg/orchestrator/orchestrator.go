// Package orchestrator wires an output, an encoder and the encode stage
// for one encoding session.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/user/framecoder/pkg/encoder"
	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/pipeline"
	"github.com/user/framecoder/pkg/ports"
	"github.com/user/framecoder/pkg/stages/encode"
)

// Config contains all configuration for one session.
type Config struct {
	// Output
	OutputPath   string
	Format       string            // container format; empty picks by extension
	MuxerOptions map[string]string // private container options

	// Video
	Width       int
	Height      int
	PixelFormat media.PixelFormat // codec pixel format
	FPS         int
	Realtime    bool
	Options     encoder.Options // overrides on top of the preset options

	// Encoding behaviour
	Interleaved bool
	EagerDrain  bool

	// Source
	MaxFrames   int
	OutroFrames int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Width:       640,
		Height:      360,
		PixelFormat: media.PixelFormatYUV420P,
		FPS:         encoder.AssumedFrameRate,
	}
}

// Settings builds encoder settings for the config.
func (c Config) Settings() encoder.Settings {
	pf := c.PixelFormat
	if pf == "" {
		pf = media.PixelFormatYUV420P
	}
	if pf == media.PixelFormatYUV420P && len(c.Options) == 0 {
		return encoder.ForH264YUV420P(c.Width, c.Height, c.Realtime)
	}
	base := encoder.NewH264Options()
	if c.Realtime {
		base = encoder.NewH264RealtimeOptions()
	}
	return encoder.ForH264Custom(c.Width, c.Height, pf, base.Merge(c.Options))
}

// Orchestrator runs encoding sessions.
type Orchestrator struct {
	backend ports.CodecBackend
	muxers  ports.MuxerFactory
	fs      ports.FileSystem
	sink    ports.DebugSink
	logger  ports.Logger
	now     func() time.Time
}

// New creates a new Orchestrator.
func New(
	backend ports.CodecBackend,
	muxers ports.MuxerFactory,
	fs ports.FileSystem,
	sink ports.DebugSink,
	logger ports.Logger,
) *Orchestrator {
	return &Orchestrator{
		backend: backend,
		muxers:  muxers,
		fs:      fs,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
}

// Run encodes source to config.OutputPath.
func (o *Orchestrator) Run(ctx context.Context, config Config, source ports.FrameSource) (result RunResult, err error) {
	settings := config.Settings()
	if err := settings.Validate(); err != nil {
		return RunResult{}, err
	}
	o.logger.Info(l10n.F("Encoding %dx%d to %s", config.Width, config.Height, config.OutputPath))
	o.logger.Debug("Settings: %s", settings)

	w, err := o.fs.Create(config.OutputPath)
	if err != nil {
		o.logger.Error(l10n.F("Failed to create output: %s", err))
		return RunResult{}, fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()

	mux, err := o.muxers.Open(w, config.OutputPath, config.Format, config.MuxerOptions)
	if err != nil {
		o.logger.Error(l10n.F("Failed to open muxer: %s", err))
		return RunResult{}, fmt.Errorf("open muxer: %w", err)
	}
	if c, ok := mux.(io.Closer); ok {
		defer c.Close()
	}

	drain := encoder.DrainSingle
	if config.EagerDrain {
		drain = encoder.DrainEager
	}
	enc, err := encoder.New(mux, settings, o.backend,
		encoder.WithLogger(o.logger),
		encoder.WithInterleaving(config.Interleaved),
		encoder.WithDrainPolicy(drain),
	)
	if err != nil {
		o.logger.Error(l10n.F("Failed to open encoder: %s", err))
		return RunResult{}, fmt.Errorf("open encoder: %w", err)
	}
	// Close finishes the stream when the stage stopped early.
	defer enc.Close()

	var stage pipeline.Stage[pipeline.EncodeInput, pipeline.EncodeResult] = encode.NewStage(enc, o.logger).WithDebugSink(o.sink)
	encoded, err := stage.Execute(ctx, pipeline.EncodeInput{
		Source:      source,
		MaxFrames:   config.MaxFrames,
		OutroFrames: config.OutroFrames,
		FPS:         config.FPS,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			o.logger.Warn(l10n.T("Encoding cancelled"))
		} else {
			o.logger.Error(l10n.F("Failed to encode video: %s", err))
		}
		return RunResult{}, fmt.Errorf("encode stage: %w", err)
	}

	stats := enc.Stats()
	result = RunResult{
		OutputPath:      config.OutputPath,
		Settings:        settings.String(),
		Width:           settings.Width(),
		Height:          settings.Height(),
		FPS:             config.FPS,
		Frames:          encoded.Frames,
		OutroFrames:     encoded.OutroFrames,
		Packets:         stats.PacketsWritten,
		KeyPackets:      stats.KeyPackets,
		ForcedKeyFrames: stats.ForcedKeyFrames,
		FlushedPackets:  stats.FlushedPackets,
		Bytes:           stats.BytesWritten,
		Duration:        encoded.Duration,
		Elapsed:         encoded.Elapsed,
		Realtime:        encoded.Realtime(),
	}
	o.logger.Info(l10n.F("Video encoded: %d frames, %d packets, %d bytes", result.Frames, result.Packets, result.Bytes))

	if o.sink.Enabled() {
		if data, err := json.MarshalIndent(result, "", "  "); err == nil {
			if err := o.sink.SaveSummaryJSON(data); err != nil {
				o.logger.Warn("Failed to save summary: %v", err)
			}
		}
	}

	return result, nil
}

// RunResult contains the results of a session for summary generation.
type RunResult struct {
	OutputPath string `json:"output"`
	Settings   string `json:"settings"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FPS        int    `json:"fps"`

	Frames          int   `json:"frames"`
	OutroFrames     int   `json:"outroFrames"`
	Packets         int   `json:"packets"`
	KeyPackets      int   `json:"keyPackets"`
	ForcedKeyFrames int   `json:"forcedKeyFrames"`
	FlushedPackets  int   `json:"flushedPackets"`
	Bytes           int64 `json:"bytes"`

	Duration time.Duration `json:"duration"`
	Elapsed  time.Duration `json:"elapsed"`
	Realtime float64       `json:"realtime"`
}

// Bitrate returns the average bitrate in bits per second.
func (r RunResult) Bitrate() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Bytes*8) / r.Duration.Seconds()
}
