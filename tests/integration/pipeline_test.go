// Package integration contains integration tests for the framecoder pipeline.
package integration

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/bluenviron/mediacommon/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/pkg/formats/mpegts"

	"github.com/user/framecoder/pkg/adapters/codecdetect"
	"github.com/user/framecoder/pkg/adapters/ffmpegcli"
	"github.com/user/framecoder/pkg/adapters/filesink"
	"github.com/user/framecoder/pkg/adapters/imagesource"
	"github.com/user/framecoder/pkg/adapters/libav"
	"github.com/user/framecoder/pkg/adapters/logger"
	"github.com/user/framecoder/pkg/adapters/mp4mux"
	"github.com/user/framecoder/pkg/adapters/nullsink"
	"github.com/user/framecoder/pkg/adapters/osfilesystem"
	"github.com/user/framecoder/pkg/adapters/output"
	"github.com/user/framecoder/pkg/adapters/patternsource"
	"github.com/user/framecoder/pkg/encoder"
	"github.com/user/framecoder/pkg/mocks"
	"github.com/user/framecoder/pkg/orchestrator"
	"github.com/user/framecoder/pkg/ports"
)

func newPattern(t *testing.T, count int) *patternsource.Source {
	t.Helper()
	src, err := patternsource.New(patternsource.Config{
		Width:  64,
		Height: 48,
		FPS:    30,
		Count:  count,
		Label:  "it",
	})
	if err != nil {
		t.Fatalf("patternsource.New() error: %v", err)
	}
	return src
}

func testConfig(outputPath string) orchestrator.Config {
	config := orchestrator.DefaultConfig()
	config.OutputPath = outputPath
	config.Width = 64
	config.Height = 48
	config.FPS = 30
	config.Realtime = true
	return config
}

func newOrchestrator(backend ports.CodecBackend, muxers ports.MuxerFactory, sink ports.DebugSink) *orchestrator.Orchestrator {
	return orchestrator.New(backend, muxers, osfilesystem.New(), sink, logger.NewNoop())
}

func TestPatternToEncoderToMP4(t *testing.T) {
	var buf bytes.Buffer
	mux := mp4mux.New(&buf)
	backend := mocks.NewCodecBackend(0)

	enc, err := encoder.New(mux, encoder.ForH264YUV420P(64, 48, false), backend)
	if err != nil {
		t.Fatalf("encoder.New() error: %v", err)
	}
	src := newPattern(t, 25)
	tb := enc.TimeBase()
	for i := 0; i < 25; i++ {
		frame, err := src.Next(tb)
		if err != nil {
			t.Fatalf("Next(%d) error: %v", i, err)
		}
		if err := enc.EncodeRaw(frame); err != nil {
			t.Fatalf("EncodeRaw(%d) error: %v", i, err)
		}
	}
	if err := enc.Finish(); err != nil {
		t.Fatalf("Finish() error: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if !backend.Encoder.Closed {
		t.Error("codec should be closed")
	}
	if len(backend.Converter.Converted) != 25 {
		t.Errorf("converted %d frames, want 25", len(backend.Converter.Converted))
	}

	info, err := codecdetect.ProbeBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("ProbeBytes() error: %v", err)
	}
	if info.Codec != codecdetect.CodecH264 {
		t.Errorf("codec = %s, want h264", info.Codec)
	}
	if info.Width != 64 || info.Height != 48 {
		t.Errorf("size = %dx%d, want 64x48", info.Width, info.Height)
	}
	if info.Samples != 25 {
		t.Errorf("samples = %d, want 25", info.Samples)
	}
	// frames 0, 12 and 24
	if info.KeyFrames != 3 {
		t.Errorf("key frames = %d, want 3", info.KeyFrames)
	}
	if stats := enc.Stats(); stats.ForcedKeyFrames != 3 || stats.PacketsWritten != 25 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestOrchestratorWritesFragmentedMP4(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.mp4")

	o := newOrchestrator(mocks.NewCodecBackend(0), output.NewFactory(nil), nullsink.New())
	config := testConfig(out)
	config.OutroFrames = 5

	result, err := o.Run(context.Background(), config, newPattern(t, 20))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	// outro frames are counted in Frames
	if result.Frames != 25 || result.OutroFrames != 5 {
		t.Errorf("frames = %d (%d outro), want 25 (5 outro)", result.Frames, result.OutroFrames)
	}
	if result.Packets != 25 {
		t.Errorf("packets = %d, want 25", result.Packets)
	}

	info, err := codecdetect.ProbeFile(out)
	if err != nil {
		t.Fatalf("ProbeFile() error: %v", err)
	}
	if !info.Fragmented {
		t.Error("output should be fragmented")
	}
	if info.Samples != 25 {
		t.Errorf("samples = %d, want 25", info.Samples)
	}
	if info.KeyFrames != result.KeyPackets {
		t.Errorf("key frames = %d, result says %d", info.KeyFrames, result.KeyPackets)
	}
}

func TestOrchestratorWritesTransportStream(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.ts")

	o := newOrchestrator(mocks.NewCodecBackend(0), output.NewFactory(nil), nullsink.New())
	if _, err := o.Run(context.Background(), testConfig(out), newPattern(t, 15)); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	r, err := mpegts.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("mpegts.NewReader() error: %v", err)
	}
	tracks := r.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracks))
	}

	var pts []int64
	var idr []bool
	r.OnDataH26x(tracks[0], func(p, _ int64, au [][]byte) error {
		pts = append(pts, p)
		idr = append(idr, h264.IDRPresent(au))
		return nil
	})
	for {
		if err := r.Read(); err != nil {
			break
		}
	}

	if len(pts) != 15 {
		t.Fatalf("read %d access units, want 15", len(pts))
	}
	for i := 1; i < len(pts); i++ {
		if d := pts[i] - pts[i-1]; d != 3000 {
			t.Errorf("pts delta %d = %d, want 3000", i, d)
		}
	}
	if !idr[0] || !idr[12] || idr[1] {
		t.Errorf("unexpected IDR layout: %v", idr)
	}
}

func TestImagesToMP4WithDebugSink(t *testing.T) {
	dir := t.TempDir()
	fs := osfilesystem.New()
	for i, c := range []color.RGBA{{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}} {
		writePNG(t, filepath.Join(dir, "in", "img-"+string(rune('a'+i))+".png"), 80, 60, c)
	}

	src, err := imagesource.New(fs, imagesource.Config{
		Pattern: filepath.Join(dir, "in", "*.png"),
		Width:   64,
		Height:  48,
		FPS:     30,
		Hold:    4,
	})
	if err != nil {
		t.Fatalf("imagesource.New() error: %v", err)
	}

	debugDir := filepath.Join(dir, "debug")
	sink := filesink.New(debugDir, fs)
	o := newOrchestrator(mocks.NewCodecBackend(2), output.NewFactory(nil), sink)

	out := filepath.Join(dir, "images.mp4")
	result, err := o.Run(context.Background(), testConfig(out), src)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Frames != 12 {
		t.Errorf("frames = %d, want 12", result.Frames)
	}
	// lookahead packets come out of the final flush
	if result.FlushedPackets != 2 {
		t.Errorf("flushed packets = %d, want 2", result.FlushedPackets)
	}

	frames, err := filepath.Glob(filepath.Join(debugDir, "frames", "*.png"))
	if err != nil {
		t.Fatalf("Glob() error: %v", err)
	}
	if len(frames) != 12 {
		t.Errorf("debug frames = %d, want 12", len(frames))
	}
	if exists, _ := fs.Exists(filepath.Join(debugDir, "summary.json")); !exists {
		t.Error("summary.json should be written")
	}

	info, err := codecdetect.ProbeFile(out)
	if err != nil {
		t.Fatalf("ProbeFile() error: %v", err)
	}
	if info.Samples != 12 {
		t.Errorf("samples = %d, want 12", info.Samples)
	}
}

func TestFullPipelineWithLibav(t *testing.T) {
	if astiav.FindEncoderByName("libx264") == nil {
		t.Skip("libx264 not available")
	}

	dir := t.TempDir()
	out := filepath.Join(dir, "libav.mp4")
	o := newOrchestrator(libav.New(nil), output.NewFactory(nil), nullsink.New())

	result, err := o.Run(context.Background(), testConfig(out), newPattern(t, 30))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Packets != 30 {
		t.Errorf("packets = %d, want 30", result.Packets)
	}

	info, err := codecdetect.ProbeFile(out)
	if err != nil {
		t.Fatalf("ProbeFile() error: %v", err)
	}
	if info.Codec != codecdetect.CodecH264 || info.Samples != 30 {
		t.Errorf("probe = %s with %d samples", info.Codec, info.Samples)
	}
	if info.KeyFrames < 3 {
		t.Errorf("key frames = %d, want at least 3", info.KeyFrames)
	}
}

func TestFullPipelineWithFFmpeg(t *testing.T) {
	if !ffmpegcli.IsFFmpegAvailable() {
		t.Skip("ffmpeg not available")
	}

	dir := t.TempDir()
	out := filepath.Join(dir, "ffmpeg.ts")
	factory := output.NewFactory(nil)
	factory.DisableLibav = true
	o := newOrchestrator(ffmpegcli.New(nil), factory, nullsink.New())

	config := testConfig(out)
	config.EagerDrain = true
	result, err := o.Run(context.Background(), config, newPattern(t, 20))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if result.Packets != 20 {
		t.Errorf("packets = %d, want 20", result.Packets)
	}
	if result.Bytes == 0 {
		t.Error("no bytes written")
	}
}

func writePNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error: %v", err)
	}
	if err := osfilesystem.New().WriteFile(path, buf.Bytes()); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
}
