package ffmpegcli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strconv"
	"sync"

	"github.com/asticode/go-astits"
	"github.com/bluenviron/mediacommon/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/pkg/formats/mpegts"
	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/ports"
)

var (
	ErrEnded      = errors.New("ffmpegcli: input already ended")
	ErrNoVideo    = errors.New("ffmpegcli: no H.264 track in ffmpeg output")
	ErrProcessRun = errors.New("ffmpegcli: ffmpeg failed")
)

// gopSize is the key frame distance requested from ffmpeg; the per-frame
// picture type cannot be passed through the pipe.
const gopSize = 12

type result struct {
	pts, dts int64
	key      bool
	data     []byte
}

// Codec is an encoder running in an ffmpeg process.
type Codec struct {
	cfg    ports.CodecConfig
	logger ports.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer

	// queue is unbounded and has its own lock so the reader never stalls
	// ffmpeg while Submit is blocked writing to stdin.
	qmu     sync.Mutex
	queue   []result
	notify  chan struct{}
	done    chan struct{}
	readErr error // valid once done is closed

	mu        sync.Mutex
	submitted []int64 // PTS of submitted frames, in submission order
	basePTS   int64   // 90 kHz PTS of the first output packet
	ended     bool
	waited    bool
	closed    bool
}

func start(path string, cfg ports.CodecConfig, l ports.Logger) (*Codec, error) {
	c := &Codec{
		cfg:     cfg,
		logger:  l,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		basePTS: media.NoPTS,
	}

	c.cmd = exec.Command(path, arguments(cfg)...)
	c.cmd.Stderr = &c.stderr

	stdin, err := c.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	c.stdin = stdin
	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := c.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	l.Debug("Started %s %v", path, c.cmd.Args[1:])

	go c.read(stdout)
	return c, nil
}

// arguments builds the ffmpeg command line. Codec options become private
// codec flags, e.g. preset=medium is passed as -preset medium.
func arguments(cfg ports.CodecConfig) []string {
	codec := cfg.Codec.Preferred
	if codec == "" {
		codec = cfg.Codec.Standard
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", string(cfg.PixelFormat),
		"-s", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-framerate", cfg.FrameRate.String(),
		"-i", "pipe:0",
		"-c:v", codec,
	}
	if _, ok := cfg.Options["g"]; !ok {
		args = append(args, "-g", strconv.Itoa(gopSize))
	}

	keys := make([]string, 0, len(cfg.Options))
	for k := range cfg.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-"+k, cfg.Options[k])
	}

	return append(args,
		"-pix_fmt", string(cfg.PixelFormat),
		"-f", "mpegts",
		"pipe:1",
	)
}

func (c *Codec) read(stdout io.Reader) {
	defer close(c.done)

	r, err := mpegts.NewReader(bufio.NewReader(stdout))
	if err != nil {
		if !errors.Is(err, io.EOF) {
			c.readErr = fmt.Errorf("read ffmpeg output: %w", err)
		}
		io.Copy(io.Discard, stdout)
		return
	}

	var track *mpegts.Track
	for _, t := range r.Tracks() {
		if _, ok := t.Codec.(*mpegts.CodecH264); ok {
			track = t
			break
		}
	}
	if track == nil {
		c.readErr = ErrNoVideo
		io.Copy(io.Discard, stdout)
		return
	}

	r.OnDecodeError(func(err error) {
		c.logger.Warn("MPEG-TS decode error: %v", err)
	})
	r.OnDataH26x(track, func(pts, dts int64, au [][]byte) error {
		data, err := h264.AnnexBMarshal(au)
		if err != nil {
			return err
		}
		c.qmu.Lock()
		c.queue = append(c.queue, result{pts: pts, dts: dts, key: h264.IDRPresent(au), data: data})
		c.qmu.Unlock()
		select {
		case c.notify <- struct{}{}:
		default:
		}
		return nil
	})

	for {
		if err := r.Read(); err != nil {
			if !errors.Is(err, astits.ErrNoMorePackets) && !errors.Is(err, io.EOF) {
				c.readErr = fmt.Errorf("read ffmpeg output: %w", err)
				io.Copy(io.Discard, stdout)
			}
			return
		}
	}
}

// Submit writes one frame to ffmpeg's stdin. Picture type hints cannot be
// passed through the pipe and are ignored.
func (c *Codec) Submit(frame *media.RawFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ended || c.closed {
		return ErrEnded
	}
	if frame.Format != c.cfg.PixelFormat || frame.Width != c.cfg.Width || frame.Height != c.cfg.Height {
		return fmt.Errorf("ffmpegcli: frame %dx%d %s does not match codec %dx%d %s",
			frame.Width, frame.Height, frame.Format, c.cfg.Width, c.cfg.Height, c.cfg.PixelFormat)
	}
	if _, err := c.stdin.Write(frame.Bytes()); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	c.submitted = append(c.submitted, frame.PTS)
	return nil
}

// DrainOne returns a packet if one has been read. Before SignalEnd it
// never blocks; after it, it waits for ffmpeg to produce the next packet
// or exit.
func (c *Codec) DrainOne() (media.Drained, error) {
	for {
		if res, ok := c.pop(); ok {
			c.mu.Lock()
			pkt := c.convert(res)
			c.mu.Unlock()
			return media.Drained{State: media.DrainPacket, Packet: pkt}, nil
		}
		c.mu.Lock()
		ended := c.ended
		c.mu.Unlock()

		select {
		case <-c.done:
			if c.pending() {
				continue
			}
			if err := c.wait(); err != nil {
				return media.Drained{}, err
			}
			if !ended {
				return media.Drained{State: media.DrainAgain}, nil
			}
			return media.Drained{State: media.DrainEnd}, nil
		default:
		}

		if !ended {
			return media.Drained{State: media.DrainAgain}, nil
		}
		select {
		case <-c.notify:
		case <-c.done:
		}
	}
}

func (c *Codec) pop() (result, bool) {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if len(c.queue) == 0 {
		return result{}, false
	}
	res := c.queue[0]
	c.queue = c.queue[1:]
	return res, true
}

func (c *Codec) pending() bool {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	return len(c.queue) > 0
}

// convert maps ffmpeg's 90 kHz timestamps back to the submitted PTS values.
// Frame n of ffmpeg's output corresponds to the n-th submitted frame.
// c.mu must be held.
func (c *Codec) convert(res result) *media.Packet {
	if c.basePTS == media.NoPTS {
		c.basePTS = res.pts
	}
	tb := c.TimeBase()
	frameTicks := media.Rescale(1, c.cfg.FrameRate.Invert(), media.MPEGTimeBase)

	var first int64
	if len(c.submitted) > 0 {
		first = c.submitted[0]
	}
	pts := first + media.Rescale(res.pts-c.basePTS, media.MPEGTimeBase, tb)
	if frameTicks > 0 {
		n := (res.pts - c.basePTS + frameTicks/2) / frameTicks
		if n >= 0 && int(n) < len(c.submitted) {
			pts = c.submitted[n]
		}
	}
	dts := first + media.Rescale(res.dts-c.basePTS, media.MPEGTimeBase, tb)
	if dts > pts {
		dts = pts
	}

	return &media.Packet{
		Data:     res.data,
		PTS:      pts,
		DTS:      dts,
		Duration: media.Rescale(1, c.cfg.FrameRate.Invert(), tb),
		Pos:      -1,
		Key:      res.key,
	}
}

// SignalEnd closes ffmpeg's stdin so it flushes its remaining packets.
func (c *Codec) SignalEnd() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return nil
	}
	c.ended = true
	if err := c.stdin.Close(); err != nil {
		return fmt.Errorf("close stdin: %w", err)
	}
	return nil
}

func (c *Codec) wait() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waited {
		return nil
	}
	c.waited = true
	if err := c.cmd.Wait(); err != nil {
		return fmt.Errorf("%w: %v\nstderr: %s", ErrProcessRun, err, c.stderr.String())
	}
	return c.readErr
}

// TimeBase is the configured time base; ffmpeg's are converted to it.
func (c *Codec) TimeBase() media.Rational {
	return c.cfg.TimeBase
}

// Parameters carries no extradata: parameter sets are always in band.
func (c *Codec) Parameters() media.CodecParameters {
	return media.CodecParameters{
		Codec:       c.cfg.Codec.Standard,
		Width:       c.cfg.Width,
		Height:      c.cfg.Height,
		PixelFormat: c.cfg.PixelFormat,
		TimeBase:    c.cfg.TimeBase,
		FrameRate:   c.cfg.FrameRate,
	}
}

// Close stops ffmpeg if it is still running.
func (c *Codec) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if !c.ended {
		c.ended = true
		c.stdin.Close()
	}
	waited := c.waited
	c.mu.Unlock()

	if waited {
		return nil
	}
	if c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
	<-c.done
	c.mu.Lock()
	c.waited = true
	c.mu.Unlock()
	c.cmd.Wait()
	return nil
}

var _ ports.CodecEncoder = (*Codec)(nil)
