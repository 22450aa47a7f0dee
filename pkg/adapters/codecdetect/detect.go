// Package codecdetect inspects MP4 files: video codec, geometry and sample
// statistics.
package codecdetect

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
)

// Codec represents a video codec type.
type Codec string

const (
	CodecH264    Codec = "h264"
	CodecHEVC    Codec = "hevc"
	CodecAV1     Codec = "av1"
	CodecUnknown Codec = "unknown"
)

// Info describes the first video track of an MP4 file.
type Info struct {
	Codec      Codec
	Fragmented bool
	Width      int
	Height     int
	Timescale  uint32
	Fragments  int
	Samples    int
	KeyFrames  int
	Duration   time.Duration
	// SampleSizes holds the size of every sample in decode order.
	SampleSizes []int
}

// DetectFromFile detects the video codec used in an MP4 file.
func DetectFromFile(path string) (Codec, error) {
	info, err := ProbeFile(path)
	if err != nil {
		return CodecUnknown, err
	}
	return info.Codec, nil
}

// DetectFromBytes detects the video codec from MP4 data bytes.
func DetectFromBytes(data []byte) (Codec, error) {
	info, err := ProbeBytes(data)
	if err != nil {
		return CodecUnknown, err
	}
	return info.Codec, nil
}

// ProbeFile reads an MP4 file and describes its video track.
func ProbeFile(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return Probe(f)
}

// ProbeBytes is Probe over an in-memory file.
func ProbeBytes(data []byte) (*Info, error) {
	return Probe(bytes.NewReader(data))
}

// Probe decodes an MP4 and describes its first video track.
func Probe(reader io.ReadSeeker) (*Info, error) {
	mp4File, err := mp4.DecodeFile(reader)
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}

	var moov *mp4.MoovBox
	info := &Info{Codec: CodecUnknown, Fragmented: mp4File.IsFragmented()}
	if info.Fragmented && mp4File.Init != nil {
		moov = mp4File.Init.Moov
	} else {
		moov = mp4File.Moov
	}
	if moov == nil {
		return nil, fmt.Errorf("no moov box")
	}

	trak := videoTrack(moov)
	if trak == nil {
		return nil, fmt.Errorf("no video track found")
	}
	info.Codec = detectCodecFromTrack(trak)
	info.Width = int(trak.Tkhd.Width >> 16)
	info.Height = int(trak.Tkhd.Height >> 16)
	if trak.Mdia.Mdhd != nil {
		info.Timescale = trak.Mdia.Mdhd.Timescale
	}

	if info.Fragmented {
		if err := probeFragments(mp4File, moov, trak.Tkhd.TrackID, info); err != nil {
			return nil, err
		}
	} else {
		probeProgressive(trak, info)
	}
	return info, nil
}

func videoTrack(moov *mp4.MoovBox) *mp4.TrakBox {
	for _, trak := range moov.Traks {
		if trak.Mdia != nil && trak.Mdia.Hdlr != nil && trak.Mdia.Hdlr.HandlerType == "vide" {
			return trak
		}
	}
	return nil
}

func probeFragments(mp4File *mp4.File, moov *mp4.MoovBox, trackID uint32, info *Info) error {
	var trex *mp4.TrexBox
	if moov.Mvex != nil {
		for _, t := range moov.Mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
				break
			}
		}
	}

	var total uint64
	for _, seg := range mp4File.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			info.Fragments++
			samples, err := frag.GetFullSamples(trex)
			if err != nil {
				return fmt.Errorf("get samples: %w", err)
			}
			for _, s := range samples {
				info.Samples++
				info.SampleSizes = append(info.SampleSizes, int(s.Size))
				if s.Flags == mp4.SyncSampleFlags {
					info.KeyFrames++
				}
				total += uint64(s.Dur)
			}
		}
	}
	info.Duration = ticks(total, info.Timescale)
	return nil
}

func probeProgressive(trak *mp4.TrakBox, info *Info) {
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz != nil {
		info.Samples = int(stbl.Stsz.SampleNumber)
		for i := uint32(1); i <= stbl.Stsz.SampleNumber; i++ {
			info.SampleSizes = append(info.SampleSizes, int(stbl.Stsz.GetSampleSize(int(i))))
		}
	}
	if stbl.Stss != nil {
		info.KeyFrames = len(stbl.Stss.SampleNumber)
	} else {
		info.KeyFrames = info.Samples
	}
	if trak.Mdia.Mdhd != nil {
		info.Duration = ticks(trak.Mdia.Mdhd.Duration, info.Timescale)
	}
}

func ticks(v uint64, timescale uint32) time.Duration {
	if timescale == 0 {
		return 0
	}
	return time.Duration(v) * time.Second / time.Duration(timescale)
}

func detectCodecFromTrack(trak *mp4.TrakBox) Codec {
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return CodecUnknown
	}

	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		switch child.Type() {
		case "avc1", "avc3":
			return CodecH264
		case "hvc1", "hev1":
			return CodecHEVC
		case "av01":
			return CodecAV1
		}
	}
	return CodecUnknown
}
