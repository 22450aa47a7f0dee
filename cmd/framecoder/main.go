// Package main provides the CLI entry point for framecoder.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/framecoder/pkg/adapters/codecdetect"
	"github.com/user/framecoder/pkg/adapters/ffmpegcli"
	"github.com/user/framecoder/pkg/adapters/filesink"
	"github.com/user/framecoder/pkg/adapters/imagesource"
	"github.com/user/framecoder/pkg/adapters/libav"
	"github.com/user/framecoder/pkg/adapters/logger"
	"github.com/user/framecoder/pkg/adapters/nullsink"
	"github.com/user/framecoder/pkg/adapters/osfilesystem"
	"github.com/user/framecoder/pkg/adapters/output"
	"github.com/user/framecoder/pkg/adapters/patternsource"
	"github.com/user/framecoder/pkg/config"
	"github.com/user/framecoder/pkg/encoder"
	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/orchestrator"
	"github.com/user/framecoder/pkg/ports"
	"github.com/user/framecoder/pkg/summarizer"
)

var version = "dev"

// Flag categories
const (
	catOutput  = "Output"
	catVideo   = "Video and Quality"
	catSource  = "Source"
	catBackend = "Backend"
	catDebug   = "Debug"
	catLogging = "Logging"
)

func main() {
	app := &cli.App{
		Name:    "framecoder",
		Usage:   l10n.T("Encode raw frames into H.264 video files"),
		Version: version,
		Commands: []*cli.Command{
			encodeCommand(),
			probeCommand(),
			versionCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func encodeCommand() *cli.Command {
	return &cli.Command{
		Name:        "encode",
		Usage:       l10n.T("Encode a test pattern or an image sequence"),
		Description: l10n.T("Frames are converted to the codec pixel format, encoded with libx264 and written to a container chosen by the output extension."),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Category: l10n.T(catOutput), Usage: l10n.T("Output file path (- for stdout, overrides the config file)")},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Category: l10n.T(catOutput), Usage: l10n.T("YAML configuration file")},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Category: l10n.T(catOutput), Usage: l10n.T("Container format (default: from the output extension)")},
			&cli.StringSliceFlag{Name: "muxer-opt", Category: l10n.T(catOutput), Usage: l10n.T("Container option key=value (repeatable)")},
			&cli.StringFlag{Name: "summary", Category: l10n.T(catOutput), Usage: l10n.T("Write a summary to this path (.json or Markdown)")},

			&cli.IntFlag{Name: "width", Aliases: []string{"W"}, Category: l10n.T(catVideo), Usage: l10n.T("Video width (default: first image or 640)")},
			&cli.IntFlag{Name: "height", Aliases: []string{"H"}, Category: l10n.T(catVideo), Usage: l10n.T("Video height (default: first image or 360)")},
			&cli.IntFlag{Name: "fps", Category: l10n.T(catVideo), Usage: l10n.T("Frame rate (default: 30)")},
			&cli.StringFlag{Name: "pixel-format", Category: l10n.T(catVideo), Usage: l10n.T("Codec pixel format (yuv420p, nv12, ...)")},
			&cli.BoolFlag{Name: "realtime", Category: l10n.T(catVideo), Usage: l10n.T("Tune the codec for low latency")},
			&cli.StringSliceFlag{Name: "opt", Category: l10n.T(catVideo), Usage: l10n.T("Codec option key=value (repeatable)")},
			&cli.BoolFlag{Name: "interleaved", Category: l10n.T(catVideo), Usage: l10n.T("Use interleaved packet writes")},
			&cli.BoolFlag{Name: "eager-drain", Category: l10n.T(catVideo), Usage: l10n.T("Collect every available packet after each frame")},

			&cli.StringFlag{Name: "images", Category: l10n.T(catSource), Usage: l10n.T("Glob of input images (default: test pattern)")},
			&cli.IntFlag{Name: "frames", Aliases: []string{"n"}, Category: l10n.T(catSource), Usage: l10n.T("Number of frames to encode")},
			&cli.IntFlag{Name: "hold", Category: l10n.T(catSource), Usage: l10n.T("Repeat each image this many frames")},
			&cli.IntFlag{Name: "outro-frames", Category: l10n.T(catSource), Usage: l10n.T("Repeat the last frame this many times")},
			&cli.StringFlag{Name: "label", Category: l10n.T(catSource), Usage: l10n.T("Text drawn on the test pattern")},

			&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Category: l10n.T(catBackend), Usage: l10n.T("Codec backend (libav, ffmpeg)")},
			&cli.StringFlag{Name: "ffmpeg-path", Category: l10n.T(catBackend), EnvVars: []string{"FFMPEG_PATH"}, Usage: l10n.T("Path to the ffmpeg executable")},
			&cli.BoolFlag{Name: "prefer-libav-muxer", Category: l10n.T(catBackend), Usage: l10n.T("Use libav muxers for mp4 and ts outputs")},

			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Category: l10n.T(catDebug), Usage: l10n.T("Enable debug output")},
			&cli.StringFlag{Name: "debug-dir", Value: "./debug", Category: l10n.T(catDebug), Usage: l10n.T("Directory for debug output")},
			&cli.IntFlag{Name: "debug-every", Value: 1, Category: l10n.T(catDebug), Usage: l10n.T("Save every n-th source frame")},

			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Value: "info", Category: l10n.T(catLogging), Usage: l10n.T("Log level (debug, info, warn, error)")},
			&cli.StringFlag{Name: "log-format", Value: "text", Category: l10n.T(catLogging), Usage: l10n.T("Log format (text, json)")},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"Q"}, Category: l10n.T(catLogging), Usage: l10n.T("Suppress all log output")},
		},
		Action: runEncode,
	}
}

func runEncode(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return err
	}

	log, err := newLogger(c, cfg.OutputPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Warn(l10n.T("Interrupted, shutting down..."))
			cancel()
		case <-ctx.Done():
		}
	}()

	fs := osfilesystem.New()

	var sink ports.DebugSink = nullsink.New()
	if cfg.Debug {
		if err := fs.MkdirAll(cfg.DebugDir); err != nil {
			return fmt.Errorf("create debug directory: %w", err)
		}
		fsink := filesink.New(cfg.DebugDir, fs)
		fsink.Every = cfg.DebugEvery
		sink = fsink
	}

	source, err := buildSource(fs, &cfg, log)
	if err != nil {
		return err
	}

	muxers := output.NewFactory(log)
	muxers.PreferLibav = c.Bool("prefer-libav-muxer")

	var backend ports.CodecBackend
	switch strings.ToLower(cfg.Backend) {
	case "ffmpeg":
		if p := c.String("ffmpeg-path"); p != "" {
			ffmpegcli.SetFFmpegPath(p)
		}
		backend = ffmpegcli.New(log)
		muxers.DisableLibav = true
	default:
		backend = libav.New(log)
	}

	orch := orchestrator.New(backend, muxers, fs, sink, log)
	oc := cfg.ToOrchestratorConfig()

	result, err := orch.Run(ctx, oc, source)
	if err != nil {
		return err
	}
	log.Info(l10n.F("Output saved to %s", cfg.OutputPath))

	if path := c.String("summary"); path != "" {
		var size int64
		if st, err := os.Stat(cfg.OutputPath); err == nil {
			size = st.Size()
		}
		summary := summarizer.NewBuilder().
			WithOutput(cfg.OutputPath, muxers.Kind(cfg.OutputPath, cfg.Format), size).
			WithSettings(summarizer.Settings{
				Backend:     cfg.Backend,
				Codec:       "h264",
				PixelFormat: string(oc.PixelFormat),
				Options:     oc.Settings().Options().String(),
				Width:       result.Width,
				Height:      result.Height,
				FPS:         result.FPS,
				Interleaved: oc.Interleaved,
			}).
			WithStream(summarizer.StreamInfo{
				Frames:          result.Frames,
				OutroFrames:     result.OutroFrames,
				Packets:         result.Packets,
				KeyPackets:      result.KeyPackets,
				ForcedKeyFrames: result.ForcedKeyFrames,
				FlushedPackets:  result.FlushedPackets,
				Bytes:           result.Bytes,
			}).
			WithTiming(result.Duration, result.Elapsed).
			Build()
		w := summarizer.NewWriter(summarizer.ForPath(path), fs)
		if err := w.Write(path, summary); err != nil {
			log.Warn(l10n.F("Failed to write summary: %s", err))
		} else {
			log.Info(l10n.F("Summary saved to %s", path))
		}
	}
	return nil
}

func newLogger(c *cli.Context, outputPath string) (ports.Logger, error) {
	if c.Bool("quiet") {
		return logger.NewNoop(), nil
	}
	level, err := ports.ParseLogLevel(c.String("log-level"))
	if err != nil {
		return nil, err
	}
	if c.String("log-format") == "json" {
		return logger.NewStructured(os.Stderr, level), nil
	}
	// stdout may carry the video
	if outputPath == osfilesystem.Stdio {
		return logger.NewConsoleTo(os.Stderr, os.Stderr, level), nil
	}
	return logger.NewConsole(level), nil
}

// buildConfig loads the config file, if any, and applies flags on top.
func buildConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if c.IsSet("output") {
		cfg.OutputPath = c.String("output")
	}
	if c.IsSet("format") {
		cfg.Format = c.String("format")
	}
	if c.IsSet("muxer-opt") {
		opts, err := encoder.ParseOptions(c.StringSlice("muxer-opt"))
		if err != nil {
			return cfg, err
		}
		cfg.MuxerOptions = opts
	}
	if c.IsSet("width") {
		cfg.Width = c.Int("width")
	}
	if c.IsSet("height") {
		cfg.Height = c.Int("height")
	}
	if c.IsSet("fps") {
		cfg.FPS = c.Int("fps")
	}
	if c.IsSet("pixel-format") {
		cfg.PixelFormat = c.String("pixel-format")
	}
	if c.Bool("realtime") {
		cfg.Realtime = true
	}
	if c.IsSet("opt") {
		opts, err := encoder.ParseOptions(c.StringSlice("opt"))
		if err != nil {
			return cfg, err
		}
		cfg.Options = encoder.Options(cfg.Options).Merge(opts)
	}
	if c.Bool("interleaved") {
		cfg.Interleaved = true
	}
	if c.Bool("eager-drain") {
		cfg.EagerDrain = true
	}
	if c.IsSet("images") {
		cfg.Source.Images = c.String("images")
		if !c.IsSet("frames") {
			cfg.Source.Frames = 0
		}
	}
	if c.IsSet("frames") {
		cfg.Source.Frames = c.Int("frames")
	}
	if c.IsSet("hold") {
		cfg.Source.Hold = c.Int("hold")
	}
	if c.IsSet("outro-frames") {
		cfg.Source.OutroFrames = c.Int("outro-frames")
	}
	if c.IsSet("label") {
		cfg.Source.Label = c.String("label")
	}
	if c.IsSet("backend") {
		cfg.Backend = c.String("backend")
	}
	if c.Bool("debug") {
		cfg.Debug = true
	}
	if c.IsSet("debug-dir") || cfg.DebugDir == "" {
		cfg.DebugDir = c.String("debug-dir")
	}
	if c.IsSet("debug-every") {
		cfg.DebugEvery = c.Int("debug-every")
	}

	return cfg, cfg.Validate()
}

func buildSource(fs ports.FileSystem, cfg *config.Config, log ports.Logger) (ports.FrameSource, error) {
	if cfg.Source.Images == "" {
		if cfg.Source.Frames <= 0 {
			return nil, fmt.Errorf("the test pattern needs --frames")
		}
		return patternsource.New(patternsource.Config{
			Width:  cfg.Width,
			Height: cfg.Height,
			FPS:    cfg.FPS,
			Count:  cfg.Source.Frames,
			Label:  cfg.Source.Label,
		})
	}

	width, height := cfg.Width, cfg.Height
	src, err := imagesource.New(fs, imagesource.Config{
		Pattern: cfg.Source.Images,
		Width:   width,
		Height:  height,
		FPS:     cfg.FPS,
		Hold:    cfg.Source.Hold,
	})
	if err != nil {
		return nil, err
	}
	cfg.Width, cfg.Height, err = src.Size()
	if err != nil {
		return nil, err
	}
	log.Info(l10n.F("Loaded %d images from %s", src.Len()/max(cfg.Source.Hold, 1), cfg.Source.Images))
	return src, nil
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     l10n.T("Show the video track of an MP4 file"),
		ArgsUsage: "FILE",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.ShowSubcommandHelp(c)
			}
			info, err := codecdetect.ProbeFile(c.Args().First())
			if err != nil {
				return err
			}
			printInfo(c, info)
			return nil
		},
	}
}

func printInfo(c *cli.Context, info *codecdetect.Info) {
	w := c.App.Writer
	fmt.Fprintf(w, "%s: %s\n", l10n.T("Codec"), info.Codec)
	fmt.Fprintf(w, "%s: %dx%d\n", l10n.T("Size"), info.Width, info.Height)
	fmt.Fprintf(w, "%s: %v\n", l10n.T("Fragmented"), info.Fragmented)
	if info.Fragmented {
		fmt.Fprintf(w, "%s: %d\n", l10n.T("Fragments"), info.Fragments)
	}
	fmt.Fprintf(w, "%s: %d (%s: %d)\n", l10n.T("Samples"), info.Samples, l10n.T("key"), info.KeyFrames)
	fmt.Fprintf(w, "%s: %v\n", l10n.T("Duration"), info.Duration)
	if info.Duration > 0 && info.Samples > 0 {
		fps := float64(info.Samples) / info.Duration.Seconds()
		fmt.Fprintf(w, "%s: %.2f\n", l10n.T("Frame rate"), fps)
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: l10n.T("Show version information"),
		Action: func(c *cli.Context) error {
			fmt.Fprintln(c.App.Writer, l10n.F("framecoder version %s", version))
			fmt.Fprintln(c.App.Writer, l10n.F("Encoder time base %s, key frame every %d packets", media.MicrosecondTimeBase, encoder.KeyFrameInterval))
			return nil
		},
	}
}
