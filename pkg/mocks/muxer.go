package mocks

import (
	"fmt"
	"io"

	"github.com/user/framecoder/pkg/media"
	"github.com/user/framecoder/pkg/ports"
)

// MuxWriter is a mock ports.MuxWriter that records every call in order.
type MuxWriter struct {
	Global bool
	// TimeBases is returned by StreamTimeBase, indexed by stream. Missing
	// entries default to 1/90000.
	TimeBases []media.Rational

	AddStreamFunc   func(codec string) (int, error)
	WriteHeaderFunc func() error
	WriteFunc       func(pkt *media.Packet) error
	TrailerFunc     func() error

	// Recorded calls for verification
	Events      []string
	Streams     []string
	Params      map[int]media.CodecParameters
	Packets     []media.Packet
	Interleaved []bool
	TBQueries   int
}

// NewMuxWriter creates a new mock MuxWriter.
func NewMuxWriter() *MuxWriter {
	return &MuxWriter{Params: make(map[int]media.CodecParameters)}
}

func (m *MuxWriter) GlobalHeader() bool {
	return m.Global
}

func (m *MuxWriter) AddStream(codec string) (int, error) {
	m.Events = append(m.Events, "add_stream")
	if m.AddStreamFunc != nil {
		return m.AddStreamFunc(codec)
	}
	m.Streams = append(m.Streams, codec)
	return len(m.Streams) - 1, nil
}

func (m *MuxWriter) SetStreamParameters(index int, params media.CodecParameters) error {
	m.Events = append(m.Events, "set_parameters")
	if m.Params == nil {
		m.Params = make(map[int]media.CodecParameters)
	}
	m.Params[index] = params
	return nil
}

func (m *MuxWriter) StreamTimeBase(index int) (media.Rational, error) {
	m.TBQueries++
	if index < 0 {
		return media.Rational{}, fmt.Errorf("no stream %d", index)
	}
	if index < len(m.TimeBases) {
		return m.TimeBases[index], nil
	}
	return media.MPEGTimeBase, nil
}

func (m *MuxWriter) WriteHeader() error {
	m.Events = append(m.Events, "header")
	if m.WriteHeaderFunc != nil {
		return m.WriteHeaderFunc()
	}
	return nil
}

func (m *MuxWriter) Write(pkt *media.Packet) error {
	return m.record(pkt, false)
}

func (m *MuxWriter) WriteInterleaved(pkt *media.Packet) error {
	return m.record(pkt, true)
}

func (m *MuxWriter) record(pkt *media.Packet, interleaved bool) error {
	m.Events = append(m.Events, "packet")
	if m.WriteFunc != nil {
		if err := m.WriteFunc(pkt); err != nil {
			return err
		}
	}
	m.Packets = append(m.Packets, *pkt)
	m.Interleaved = append(m.Interleaved, interleaved)
	return nil
}

func (m *MuxWriter) WriteTrailer() error {
	m.Events = append(m.Events, "trailer")
	if m.TrailerFunc != nil {
		return m.TrailerFunc()
	}
	return nil
}

// Count returns how many times event was recorded.
func (m *MuxWriter) Count(event string) int {
	n := 0
	for _, e := range m.Events {
		if e == event {
			n++
		}
	}
	return n
}

// MuxerFactory is a mock ports.MuxerFactory returning Muxer.
type MuxerFactory struct {
	Muxer    *MuxWriter
	OpenFunc func(w io.Writer, name, format string, options map[string]string) (ports.MuxWriter, error)

	Names   []string
	Formats []string
}

func (m *MuxerFactory) Open(w io.Writer, name, format string, options map[string]string) (ports.MuxWriter, error) {
	m.Names = append(m.Names, name)
	m.Formats = append(m.Formats, format)
	if m.OpenFunc != nil {
		return m.OpenFunc(w, name, format, options)
	}
	if m.Muxer == nil {
		m.Muxer = NewMuxWriter()
	}
	return m.Muxer, nil
}

var (
	_ ports.MuxWriter    = (*MuxWriter)(nil)
	_ ports.MuxerFactory = (*MuxerFactory)(nil)
)
