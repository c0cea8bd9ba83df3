// Package mp4 locates the GPMF telemetry track inside an MP4 or MOV file and
// serves its samples as payloads: one time-bounded chunk of telemetry per
// sample, usually about one second long.
//
// Box parsing and sample tables come from github.com/abema/go-mp4; this
// package only selects the track and turns its sample table into payload
// offsets and time ranges.
package mp4

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	gomp4 "github.com/abema/go-mp4"
)

// Handler and sample entry types that identify a GPMF track.
var (
	handlerMeta  = [4]byte{'m', 'e', 't', 'a'}
	handlerVideo = [4]byte{'v', 'i', 'd', 'e'}
	boxTypeGPMD  = gomp4.StrToBoxType("gpmd")
)

// Sentinel errors for opening a source and addressing its payloads.
var (
	ErrNoMetadataTrack = errors.New("mp4: no GPMF metadata track")
	ErrBadSampleTable  = errors.New("mp4: inconsistent sample table")
	ErrPayloadIndex    = errors.New("mp4: payload index out of range")
)

// File is what a Source reads from. *os.File and *bytes.Reader satisfy it.
type File interface {
	io.ReadSeeker
	io.ReaderAt
}

// FrameRate describes the first video track of the file.
type FrameRate struct {
	Num    uint32
	Den    uint32
	Frames int
}

// FPS returns the rate as frames per second.
func (f FrameRate) FPS() float64 {
	if f.Den == 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

type payload struct {
	offset int64
	size   uint32
	start  float64
	end    float64
}

// Source serves the payloads of one file's GPMF track.
type Source struct {
	log       *slog.Logger
	r         File
	closer    io.Closer
	duration  float64
	payloads  []payload
	frameRate FrameRate
	hasVideo  bool
}

// Open opens path and locates its GPMF track. If log is nil, slog.Default()
// is used.
func Open(path string, log *slog.Logger) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mp4: open: %w", err)
	}
	s, err := NewSource(f, log)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// NewSource reads the box structure of r and locates its GPMF track. The
// caller keeps ownership of r; Close does not close it.
func NewSource(r File, log *slog.Logger) (*Source, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Source{
		log: log.With("component", "mp4"),
		r:   r,
	}

	ids, err := scanTracks(r)
	if err != nil {
		return nil, err
	}
	if ids.meta == 0 {
		return nil, ErrNoMetadataTrack
	}

	info, err := gomp4.Probe(r)
	if err != nil {
		return nil, fmt.Errorf("mp4: read box layout: %w", err)
	}

	for _, trk := range info.Tracks {
		switch trk.TrackID {
		case ids.meta:
			s.payloads, err = buildPayloads(trk.Samples, trk.Chunks, trk.Timescale)
			if err != nil {
				return nil, err
			}
			s.duration = trackSeconds(trk.Duration, trk.Timescale)
			if s.duration == 0 && len(s.payloads) > 0 {
				s.duration = s.payloads[len(s.payloads)-1].end
			}
		case ids.video:
			if len(trk.Samples) > 0 && trk.Samples[0].TimeDelta > 0 {
				s.frameRate = FrameRate{
					Num:    trk.Timescale,
					Den:    trk.Samples[0].TimeDelta,
					Frames: len(trk.Samples),
				}
				s.hasVideo = true
			}
		}
	}

	s.log.Debug("metadata track located",
		"track", ids.meta,
		"payloads", len(s.payloads),
		"duration", s.duration,
	)
	return s, nil
}

// Duration returns the length of the metadata track in seconds.
func (s *Source) Duration() float64 {
	return s.duration
}

// PayloadCount returns the number of payloads in the metadata track.
func (s *Source) PayloadCount() int {
	return len(s.payloads)
}

// FrameRate returns the video frame rate and frame count, when the file
// has a video track.
func (s *Source) FrameRate() (FrameRate, bool) {
	return s.frameRate, s.hasVideo
}

// PayloadSize returns the byte length of payload index.
func (s *Source) PayloadSize(index int) (int, error) {
	p, err := s.entry(index)
	if err != nil {
		return 0, err
	}
	return int(p.size), nil
}

// PayloadTime returns the start and end of payload index in seconds.
func (s *Source) PayloadTime(index int) (float64, float64, error) {
	p, err := s.entry(index)
	if err != nil {
		return 0, 0, err
	}
	return p.start, p.end, nil
}

// ReadPayload fills buf with payload index and returns it resliced to the
// payload's length. buf is grown only when its capacity is too small, so a
// caller that passes the previous result back reuses one allocation.
func (s *Source) ReadPayload(buf []byte, index int) ([]byte, error) {
	p, err := s.entry(index)
	if err != nil {
		return buf, err
	}
	size := int(p.size)
	if cap(buf) < size {
		buf = make([]byte, size)
	}
	buf = buf[:size]
	if _, err := s.r.ReadAt(buf, p.offset); err != nil {
		return buf, fmt.Errorf("mp4: read payload %d: %w", index, err)
	}
	return buf, nil
}

// Close releases the underlying file when the Source opened it.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

func (s *Source) entry(index int) (payload, error) {
	if index < 0 || index >= len(s.payloads) {
		return payload{}, fmt.Errorf("%w: %d of %d", ErrPayloadIndex, index, len(s.payloads))
	}
	return s.payloads[index], nil
}

// buildPayloads expands chunk offsets and per-sample sizes and durations
// into one entry per sample.
func buildPayloads(samples gomp4.Samples, chunks gomp4.Chunks, timescale uint32) ([]payload, error) {
	if timescale == 0 {
		return nil, fmt.Errorf("%w: zero timescale", ErrBadSampleTable)
	}
	out := make([]payload, 0, len(samples))
	var ticks uint64
	next := 0
	for _, ch := range chunks {
		offset := int64(ch.DataOffset)
		for k := uint32(0); k < ch.SamplesPerChunk && next < len(samples); k++ {
			smp := samples[next]
			start := float64(ticks) / float64(timescale)
			ticks += uint64(smp.TimeDelta)
			out = append(out, payload{
				offset: offset,
				size:   smp.Size,
				start:  start,
				end:    float64(ticks) / float64(timescale),
			})
			offset += int64(smp.Size)
			next++
		}
	}
	if next != len(samples) {
		return nil, fmt.Errorf("%w: chunks cover %d of %d samples", ErrBadSampleTable, next, len(samples))
	}
	return out, nil
}

func trackSeconds(duration uint64, timescale uint32) float64 {
	if timescale == 0 {
		return 0
	}
	return float64(duration) / float64(timescale)
}
