package encoder

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/mocks"
	"github.com/user/framecoder/pkg/ports"
)

func newTestEncoder(t *testing.T, lookahead int, opts ...Option) (*Encoder, *mocks.MuxWriter, *mocks.CodecBackend) {
	t.Helper()
	mux := mocks.NewMuxWriter()
	backend := mocks.NewCodecBackend(lookahead)
	enc, err := New(mux, ForH264YUV420P(64, 48, false), backend, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return enc, mux, backend
}

func frameAt(i int, format media.PixelFormat) *media.RawFrame {
	f := media.NewRawFrame(64, 48, format)
	f.PTS = media.Rescale(int64(i), media.NewRational(1, 30), media.MicrosecondTimeBase)
	return f
}

func TestNewOpensCodecAndStream(t *testing.T) {
	mux := mocks.NewMuxWriter()
	mux.Global = true
	backend := mocks.NewCodecBackend(0)

	enc, err := New(mux, ForH264YUV420P(64, 48, true), backend)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if len(backend.CodecConfigs) != 1 {
		t.Fatalf("expected one codec open, got %d", len(backend.CodecConfigs))
	}
	cfg := backend.CodecConfigs[0]
	if cfg.Width != 64 || cfg.Height != 48 || cfg.PixelFormat != media.PixelFormatYUV420P {
		t.Errorf("unexpected codec geometry: %+v", cfg)
	}
	if cfg.TimeBase != media.MicrosecondTimeBase {
		t.Errorf("codec time base = %s, want 1/1000000", cfg.TimeBase)
	}
	if cfg.FrameRate != media.NewRational(30, 1) {
		t.Errorf("frame rate = %s, want 30/1", cfg.FrameRate)
	}
	if cfg.Codec.Preferred != "libx264" || cfg.Codec.Standard != "h264" {
		t.Errorf("codec selection = %+v", cfg.Codec)
	}
	if !cfg.GlobalHeader {
		t.Error("expected global header flag to reach the codec")
	}
	if cfg.Options["tune"] != "zerolatency" || cfg.Options["preset"] != "medium" {
		t.Errorf("realtime options not applied: %v", cfg.Options)
	}

	if backend.ConverterConfigs[0].Target != media.PixelFormatYUV420P {
		t.Errorf("converter target = %s", backend.ConverterConfigs[0].Target)
	}
	if got := mux.Params[0].ExtraData; len(got) == 0 {
		t.Error("expected extradata copied to the stream")
	}
	if len(mux.Events) != 2 || mux.Events[0] != "add_stream" || mux.Events[1] != "set_parameters" {
		t.Errorf("events after New = %v", mux.Events)
	}
	if enc.TimeBase() != media.MicrosecondTimeBase {
		t.Errorf("TimeBase() = %s", enc.TimeBase())
	}
}

func TestNewRejectsBadSettings(t *testing.T) {
	_, err := New(mocks.NewMuxWriter(), ForH264YUV420P(0, 48, false), mocks.NewCodecBackend(0))
	if !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}
}

func TestNewClosesCodecWhenConverterFails(t *testing.T) {
	backend := mocks.NewCodecBackend(0)
	backend.NewConverterFunc = func(cfg ports.ConverterConfig) (ports.PixelConverter, error) {
		return nil, errors.New("no scaler")
	}
	_, err := New(mocks.NewMuxWriter(), ForH264YUV420P(64, 48, false), backend)
	var be *BackendError
	if !errors.As(err, &be) || be.Op != "create converter" {
		t.Fatalf("expected BackendError from converter, got %v", err)
	}
	if !backend.Encoder.Closed {
		t.Error("codec should be closed when New fails")
	}
}

func TestFinishWithoutFramesWritesNothing(t *testing.T) {
	enc, mux, backend := newTestEncoder(t, 0)

	if err := enc.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if mux.Count("header") != 0 || mux.Count("trailer") != 0 {
		t.Errorf("expected untouched container, events = %v", mux.Events)
	}
	if backend.Encoder.SignalEndCalled {
		t.Error("codec must not be flushed when no header was written")
	}
}

func TestHeaderWrittenOnceBeforeFirstPacket(t *testing.T) {
	enc, mux, _ := newTestEncoder(t, 0)

	for i := 0; i < 3; i++ {
		if err := enc.EncodeRaw(frameAt(i, media.PixelFormatBGRA)); err != nil {
			t.Fatalf("EncodeRaw(%d) error = %v", i, err)
		}
	}
	if mux.Count("header") != 1 {
		t.Fatalf("header written %d times", mux.Count("header"))
	}
	if mux.Events[2] != "header" || mux.Events[3] != "packet" {
		t.Errorf("header must precede packets: %v", mux.Events)
	}
}

func TestInvalidFrameFormat(t *testing.T) {
	enc, mux, backend := newTestEncoder(t, 0)

	wrongSize := media.NewRawFrame(32, 48, media.PixelFormatBGRA)
	if err := enc.EncodeRaw(wrongSize); !errors.Is(err, ErrInvalidFrameFormat) {
		t.Errorf("wrong size: expected ErrInvalidFrameFormat, got %v", err)
	}
	wrongFormat := media.NewRawFrame(64, 48, media.PixelFormatYUV420P)
	if err := enc.EncodeRaw(wrongFormat); !errors.Is(err, ErrInvalidFrameFormat) {
		t.Errorf("wrong format: expected ErrInvalidFrameFormat, got %v", err)
	}
	if err := enc.EncodeRaw(nil); !errors.Is(err, ErrInvalidFrameFormat) {
		t.Errorf("nil frame: expected ErrInvalidFrameFormat, got %v", err)
	}
	if mux.Count("header") != 0 {
		t.Error("rejected frames must not write the header")
	}
	if len(backend.Encoder.Submitted) != 0 {
		t.Error("rejected frames must not reach the codec")
	}
	if enc.FrameCount() != 0 {
		t.Errorf("frame count = %d after rejected frames, want 0", enc.FrameCount())
	}
	if stats := enc.Stats(); stats != (Stats{}) {
		t.Errorf("stats = %+v after rejected frames, want zero", stats)
	}

	if err := enc.EncodeRaw(frameAt(0, media.PixelFormatRGB24)); err != nil {
		t.Errorf("RGB24 frame rejected: %v", err)
	}
}

func TestSmallerFrameIntoLargerEncoder(t *testing.T) {
	mux := mocks.NewMuxWriter()
	backend := mocks.NewCodecBackend(0)
	enc, err := New(mux, ForH264YUV420P(800, 600, false), backend)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	frame := media.NewRawFrame(640, 480, media.PixelFormatRGB24)
	frame.PTS = 0
	if err := enc.EncodeRaw(frame); !errors.Is(err, ErrInvalidFrameFormat) {
		t.Fatalf("expected ErrInvalidFrameFormat, got %v", err)
	}
	if enc.FrameCount() != 0 || enc.Stats() != (Stats{}) {
		t.Errorf("encoder state changed: frames=%d stats=%+v", enc.FrameCount(), enc.Stats())
	}
	if backend.Encoder.Pending() != 0 || len(backend.Encoder.Submitted) != 0 {
		t.Error("codec state changed by a rejected frame")
	}
	if mux.Count("header") != 0 {
		t.Error("rejected frame wrote the header")
	}
}

func TestMalformedPlanesRejected(t *testing.T) {
	tests := []struct {
		name  string
		frame *media.RawFrame
	}{
		{
			name: "short plane",
			frame: &media.RawFrame{Width: 64, Height: 48, Format: media.PixelFormatBGRA,
				Planes: [][]byte{make([]byte, 10)}, Strides: []int{256}},
		},
		{
			name: "missing plane",
			frame: &media.RawFrame{Width: 64, Height: 48, Format: media.PixelFormatRGB24,
				Planes: nil, Strides: nil},
		},
		{
			name: "narrow stride",
			frame: &media.RawFrame{Width: 64, Height: 48, Format: media.PixelFormatRGB24,
				Planes: [][]byte{make([]byte, 64*3*48)}, Strides: []int{64}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, mux, backend := newTestEncoder(t, 0)
			err := enc.EncodeRaw(tt.frame)
			if !errors.Is(err, ErrInvalidFrameFormat) {
				t.Fatalf("expected ErrInvalidFrameFormat, got %v", err)
			}
			var backendErr *BackendError
			if errors.As(err, &backendErr) {
				t.Errorf("malformed frame reported as backend error: %v", err)
			}
			if mux.Count("header") != 0 {
				t.Error("malformed frame wrote the header")
			}
			if len(backend.Converter.Converted) != 0 {
				t.Error("malformed frame reached the converter")
			}
			if len(backend.Encoder.Submitted) != 0 {
				t.Error("malformed frame reached the codec")
			}
		})
	}
}

func TestKeyFrameCadence(t *testing.T) {
	enc, mux, backend := newTestEncoder(t, 0)

	for i := 0; i < 30; i++ {
		if err := enc.EncodeRaw(frameAt(i, media.PixelFormatBGRA)); err != nil {
			t.Fatalf("EncodeRaw(%d) error = %v", i, err)
		}
	}
	if err := enc.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	for i, f := range backend.Encoder.Submitted {
		wantKey := i%KeyFrameInterval == 0
		if (f.PictureType == media.PictureTypeI) != wantKey {
			t.Errorf("frame %d picture type = %s, want key=%v", i, f.PictureType, wantKey)
		}
	}
	if len(mux.Packets) != 30 {
		t.Fatalf("expected 30 packets, got %d", len(mux.Packets))
	}
	if s := enc.Stats(); s.ForcedKeyFrames != 3 || s.KeyPackets != 3 {
		t.Errorf("stats = %+v", s)
	}
}

func TestLookaheadCodecFlushedByFinish(t *testing.T) {
	enc, mux, backend := newTestEncoder(t, 3)

	for i := 0; i < 3; i++ {
		if err := enc.EncodeRaw(frameAt(i, media.PixelFormatBGRA)); err != nil {
			t.Fatalf("EncodeRaw(%d) error = %v", i, err)
		}
	}
	if len(mux.Packets) != 0 {
		t.Fatalf("codec lookahead should hold packets, got %d", len(mux.Packets))
	}
	if mux.Count("header") != 1 {
		t.Fatal("header must be written with the first frame even without packets")
	}

	for i := 3; i < 20; i++ {
		if err := enc.EncodeRaw(frameAt(i, media.PixelFormatBGRA)); err != nil {
			t.Fatalf("EncodeRaw(%d) error = %v", i, err)
		}
	}
	if len(mux.Packets) != 17 {
		t.Fatalf("expected 17 packets before finish, got %d", len(mux.Packets))
	}
	// the cadence counts written packets, so every frame submitted before
	// the first packet came out is forced to a key frame
	for i := 0; i < 4; i++ {
		if backend.Encoder.Submitted[i].PictureType != media.PictureTypeI {
			t.Errorf("frame %d should be forced key", i)
		}
	}
	if backend.Encoder.Submitted[4].PictureType == media.PictureTypeI {
		t.Error("frame 4 should not be forced key")
	}

	if err := enc.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if len(mux.Packets) != 20 {
		t.Fatalf("expected 20 packets after finish, got %d", len(mux.Packets))
	}
	if mux.Events[len(mux.Events)-1] != "trailer" {
		t.Errorf("trailer must be last: %v", mux.Events)
	}
	if enc.Stats().FlushedPackets != 3 {
		t.Errorf("flushed packets = %d, want 3", enc.Stats().FlushedPackets)
	}
	if enc.FrameCount() != 20 {
		t.Errorf("FrameCount() = %d, want 20", enc.FrameCount())
	}
}

func TestPacketTimestampsRescaledToStream(t *testing.T) {
	enc, mux, _ := newTestEncoder(t, 0)

	for i := 0; i < 3; i++ {
		if err := enc.EncodeRaw(frameAt(i, media.PixelFormatBGRA)); err != nil {
			t.Fatalf("EncodeRaw(%d) error = %v", i, err)
		}
	}
	want := []int64{0, 3000, 6000}
	for i, p := range mux.Packets {
		if p.PTS != want[i] || p.DTS != want[i] {
			t.Errorf("packet %d pts/dts = %d/%d, want %d", i, p.PTS, p.DTS, want[i])
		}
		if p.Duration != 3000 {
			t.Errorf("packet %d duration = %d, want 3000", i, p.Duration)
		}
		if p.StreamIndex != 0 || p.Pos != -1 {
			t.Errorf("packet %d stream/pos = %d/%d", i, p.StreamIndex, p.Pos)
		}
	}
	if mux.TBQueries != 3 {
		t.Errorf("stream time base queried %d times, want once per packet", mux.TBQueries)
	}
}

func TestStreamTimeBaseChangeAfterHeader(t *testing.T) {
	enc, mux, _ := newTestEncoder(t, 0)
	mux.WriteHeaderFunc = func() error {
		mux.TimeBases = []media.Rational{media.NewRational(1, 1000)}
		return nil
	}
	if err := enc.EncodeRaw(frameAt(3, media.PixelFormatBGRA)); err != nil {
		t.Fatalf("EncodeRaw() error = %v", err)
	}
	if got := mux.Packets[0].PTS; got != 100 {
		t.Errorf("pts = %d, want 100 in the post-header time base", got)
	}
}

func TestInterleavedWrites(t *testing.T) {
	enc, mux, _ := newTestEncoder(t, 0, WithInterleaving(true))
	if err := enc.EncodeRaw(frameAt(0, media.PixelFormatBGRA)); err != nil {
		t.Fatalf("EncodeRaw() error = %v", err)
	}
	if len(mux.Interleaved) != 1 || !mux.Interleaved[0] {
		t.Errorf("expected interleaved write, got %v", mux.Interleaved)
	}

	plain, mux2, _ := newTestEncoder(t, 0)
	if err := plain.EncodeRaw(frameAt(0, media.PixelFormatBGRA)); err != nil {
		t.Fatalf("EncodeRaw() error = %v", err)
	}
	if mux2.Interleaved[0] {
		t.Error("expected direct write by default")
	}
}

func scriptedDrain(results []media.Drained) func() (media.Drained, error) {
	i := 0
	return func() (media.Drained, error) {
		if i >= len(results) {
			return media.Drained{State: media.DrainAgain}, nil
		}
		d := results[i]
		i++
		return d, nil
	}
}

func TestDrainPolicy(t *testing.T) {
	burst := func() []media.Drained {
		return []media.Drained{
			{State: media.DrainPacket, Packet: &media.Packet{PTS: 0, DTS: 0, Data: []byte{1}}},
			{State: media.DrainPacket, Packet: &media.Packet{PTS: 1, DTS: 1, Data: []byte{2}}},
		}
	}

	single, mux, backend := newTestEncoder(t, 0)
	backend.Encoder.DrainFunc = scriptedDrain(burst())
	if err := single.EncodeRaw(frameAt(0, media.PixelFormatBGRA)); err != nil {
		t.Fatalf("EncodeRaw() error = %v", err)
	}
	if len(mux.Packets) != 1 {
		t.Errorf("single policy wrote %d packets, want 1", len(mux.Packets))
	}

	eager, mux2, backend2 := newTestEncoder(t, 0, WithDrainPolicy(DrainEager))
	backend2.Encoder.DrainFunc = scriptedDrain(burst())
	if err := eager.EncodeRaw(frameAt(0, media.PixelFormatBGRA)); err != nil {
		t.Fatalf("EncodeRaw() error = %v", err)
	}
	if len(mux2.Packets) != 2 {
		t.Errorf("eager policy wrote %d packets, want 2", len(mux2.Packets))
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	enc, mux, _ := newTestEncoder(t, 0)
	if err := enc.EncodeRaw(frameAt(0, media.PixelFormatBGRA)); err != nil {
		t.Fatalf("EncodeRaw() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := enc.Finish(); err != nil {
			t.Fatalf("Finish() #%d error = %v", i, err)
		}
	}
	if mux.Count("trailer") != 1 {
		t.Errorf("trailer written %d times", mux.Count("trailer"))
	}
	if err := enc.EncodeRaw(frameAt(1, media.PixelFormatBGRA)); !errors.Is(err, ErrFinished) {
		t.Errorf("EncodeRaw after Finish: expected ErrFinished, got %v", err)
	}
}

func TestFailedFinishIsNotRetried(t *testing.T) {
	enc, mux, _ := newTestEncoder(t, 2)
	for i := 0; i < 2; i++ {
		if err := enc.EncodeRaw(frameAt(i, media.PixelFormatBGRA)); err != nil {
			t.Fatalf("EncodeRaw(%d) error = %v", i, err)
		}
	}
	writeErr := errors.New("disk full")
	mux.WriteFunc = func(pkt *media.Packet) error { return writeErr }

	err := enc.Finish()
	if !errors.Is(err, writeErr) {
		t.Fatalf("Finish() error = %v, want disk full", err)
	}
	var be *BackendError
	if !errors.As(err, &be) || be.Op != "write packet" {
		t.Errorf("expected BackendError for write packet, got %v", err)
	}
	if mux.Count("trailer") != 0 {
		t.Error("trailer must not be written after a failed flush")
	}

	mux.WriteFunc = nil
	if err := enc.Finish(); err != nil {
		t.Errorf("second Finish() = %v, want nil", err)
	}
	if mux.Count("trailer") != 0 {
		t.Error("second Finish must not retry")
	}
}

func TestCodecErrorEndsDrain(t *testing.T) {
	enc, mux, backend := newTestEncoder(t, 5)
	for i := 0; i < 2; i++ {
		if err := enc.EncodeRaw(frameAt(i, media.PixelFormatBGRA)); err != nil {
			t.Fatalf("EncodeRaw(%d) error = %v", i, err)
		}
	}
	backend.Encoder.DrainFunc = func() (media.Drained, error) {
		return media.Drained{}, errors.New("codec broke")
	}
	if err := enc.Finish(); err != nil {
		t.Fatalf("Finish() error = %v, codec errors end the drain silently", err)
	}
	if mux.Count("trailer") != 1 {
		t.Error("trailer should still be written")
	}
}

func TestDrainBoundedByMaxIterations(t *testing.T) {
	enc, mux, backend := newTestEncoder(t, 0)
	if err := enc.EncodeRaw(frameAt(0, media.PixelFormatBGRA)); err != nil {
		t.Fatalf("EncodeRaw() error = %v", err)
	}
	calls := backend.Encoder.DrainCalls
	backend.Encoder.DrainFunc = func() (media.Drained, error) {
		return media.Drained{State: media.DrainAgain}, nil
	}
	if err := enc.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if got := backend.Encoder.DrainCalls - calls; got != MaxDrainIterations {
		t.Errorf("drain attempts = %d, want %d", got, MaxDrainIterations)
	}
	if mux.Count("trailer") != 1 {
		t.Error("trailer should be written after bounded drain")
	}
}

func TestSubmitErrorIsBackendError(t *testing.T) {
	enc, _, backend := newTestEncoder(t, 0)
	backend.Encoder.SubmitFunc = func(*media.RawFrame) error { return errors.New("rejected") }

	err := enc.EncodeRaw(frameAt(0, media.PixelFormatBGRA))
	var be *BackendError
	if !errors.As(err, &be) || be.Op != "submit frame" {
		t.Fatalf("expected submit BackendError, got %v", err)
	}
}

func TestCloseFinishesAndReleases(t *testing.T) {
	enc, mux, backend := newTestEncoder(t, 1)
	if err := enc.EncodeRaw(frameAt(0, media.PixelFormatBGRA)); err != nil {
		t.Fatalf("EncodeRaw() error = %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if mux.Count("trailer") != 1 || len(mux.Packets) != 1 {
		t.Errorf("Close should finish the stream: %v", mux.Events)
	}
	if !backend.Encoder.Closed || !backend.Converter.Closed {
		t.Error("Close should release codec and converter")
	}
	if err := enc.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if err := enc.EncodeRaw(frameAt(1, media.PixelFormatBGRA)); !errors.Is(err, ErrClosed) {
		t.Errorf("EncodeRaw after Close: expected ErrClosed, got %v", err)
	}
	if err := enc.Finish(); !errors.Is(err, ErrClosed) {
		t.Errorf("Finish after Close: expected ErrClosed, got %v", err)
	}
}

func TestCloseDiscardsFinishError(t *testing.T) {
	enc, mux, _ := newTestEncoder(t, 0)
	if err := enc.EncodeRaw(frameAt(0, media.PixelFormatBGRA)); err != nil {
		t.Fatalf("EncodeRaw() error = %v", err)
	}
	mux.TrailerFunc = func() error { return errors.New("trailer failed") }
	if err := enc.Close(); err != nil {
		t.Errorf("Close() = %v, want finish error discarded", err)
	}
}

func TestEncodeImage(t *testing.T) {
	enc, _, backend := newTestEncoder(t, 0)
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))

	if err := enc.Encode(img, 40*time.Millisecond); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got := backend.Converter.Converted[0]
	if got.Format != media.PixelFormatBGRA {
		t.Errorf("translucent image sent as %s, want bgra", got.Format)
	}
	if got.PTS != 40000 {
		t.Errorf("pts = %d, want 40000", got.PTS)
	}
	if backend.Encoder.Submitted[0].PTS != 40000 {
		t.Error("converted frame must keep the source pts")
	}

	small := image.NewRGBA(image.Rect(0, 0, 10, 10))
	if err := enc.Encode(small, 0); !errors.Is(err, ErrInvalidFrameFormat) {
		t.Errorf("expected ErrInvalidFrameFormat for wrong size, got %v", err)
	}
}
