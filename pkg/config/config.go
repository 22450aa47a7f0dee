// Package config loads framecoder configuration files.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/user/framecoder/pkg/encoder"
	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/orchestrator"
	"gopkg.in/yaml.v3"
)

// Config represents the full configuration for framecoder.
type Config struct {
	// Output
	OutputPath   string            `yaml:"output"`
	Format       string            `yaml:"format"`
	MuxerOptions map[string]string `yaml:"muxer_options"`

	// Video
	Width       int               `yaml:"width"`
	Height      int               `yaml:"height"`
	PixelFormat string            `yaml:"pixel_format"`
	FPS         int               `yaml:"fps"`
	Realtime    bool              `yaml:"realtime"`
	Options     map[string]string `yaml:"codec_options"`

	// Encoding behaviour
	Backend     string `yaml:"backend"` // libav or ffmpeg
	Interleaved bool   `yaml:"interleaved"`
	EagerDrain  bool   `yaml:"eager_drain"`

	// Source
	Source SourceConfig `yaml:"source"`

	// Debug
	Debug      bool   `yaml:"debug"`
	DebugDir   string `yaml:"debug_dir"`
	DebugEvery int    `yaml:"debug_every"`
}

// SourceConfig selects the frame source.
type SourceConfig struct {
	Images      string `yaml:"images"` // glob; empty uses the test pattern
	Frames      int    `yaml:"frames"`
	Hold        int    `yaml:"hold"`
	OutroFrames int    `yaml:"outro_frames"`
	Label       string `yaml:"label"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		OutputPath:  "output.mp4",
		Width:       640,
		Height:      360,
		PixelFormat: string(media.PixelFormatYUV420P),
		FPS:         encoder.AssumedFrameRate,
		Backend:     "libav",

		Source: SourceConfig{
			Frames: 90,
			Hold:   1,
		},

		DebugDir:   "./debug",
		DebugEvery: 1,
	}
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values that cannot be caught later with a clear message.
func (c Config) Validate() error {
	if c.OutputPath == "" {
		return fmt.Errorf("config: output path is required")
	}
	if _, err := media.ParsePixelFormat(c.PixelFormat); err != nil {
		return err
	}
	switch strings.ToLower(c.Backend) {
	case "", "libav", "ffmpeg":
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("config: fps must be positive, got %d", c.FPS)
	}
	return nil
}

// ToOrchestratorConfig converts Config to orchestrator.Config.
func (c Config) ToOrchestratorConfig() orchestrator.Config {
	pf, err := media.ParsePixelFormat(c.PixelFormat)
	if err != nil {
		pf = media.PixelFormatYUV420P
	}
	var opts encoder.Options
	if len(c.Options) > 0 {
		opts = encoder.Options(c.Options).Clone()
	}
	return orchestrator.Config{
		OutputPath:   c.OutputPath,
		Format:       c.Format,
		MuxerOptions: c.MuxerOptions,

		Width:       c.Width,
		Height:      c.Height,
		PixelFormat: pf,
		FPS:         c.FPS,
		Realtime:    c.Realtime,
		Options:     opts,

		Interleaved: c.Interleaved,
		// the ffmpeg process delivers packets asynchronously
		EagerDrain: c.EagerDrain || strings.EqualFold(c.Backend, "ffmpeg"),

		MaxFrames:   c.Source.Frames,
		OutroFrames: c.Source.OutroFrames,
	}
}
