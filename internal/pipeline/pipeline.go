// Package pipeline drives one extraction run: it walks the telemetry
// payloads of a video in order, pulls the first GPS sample out of each, and
// accumulates them into a 1 Hz track.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/zsiec/gpmfgps/internal/gpmf"
	"github.com/zsiec/gpmfgps/internal/mp4"
	"github.com/zsiec/gpmfgps/internal/telemetry"
	"github.com/zsiec/gpmfgps/internal/track"
)

var (
	// ErrNoPayloads is returned when the metadata track holds no payloads
	// or has no duration.
	ErrNoPayloads = errors.New("pipeline: no telemetry payloads")
	ErrAlreadyRun = errors.New("pipeline: already run")
)

// Source is the demuxer side of a run. mp4.Source implements it.
type Source interface {
	Duration() float64
	PayloadCount() int
	PayloadSize(index int) (int, error)
	PayloadTime(index int) (start, end float64, err error)
	// ReadPayload fills buf with payload index, growing it only when its
	// capacity is too small, and returns the filled slice.
	ReadPayload(buf []byte, index int) ([]byte, error)
	Close() error
}

// FrameRater is implemented by sources that also know the video frame rate.
type FrameRater interface {
	FrameRate() (mp4.FrameRate, bool)
}

// Stage names the step of payload handling that failed.
type Stage string

const (
	StageSize  Stage = "size"
	StageTime  Stage = "time"
	StageRead  Stage = "read"
	StageParse Stage = "parse"
)

// PayloadError is a fatal failure while handling one payload. The run stops
// at Index; no later payload is read.
type PayloadError struct {
	Index int
	Stage Stage
	Err   error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("pipeline: payload %d: %s: %v", e.Index, e.Stage, e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// Outcome describes what one payload contributed to the track.
type Outcome struct {
	Index      int
	Start, End float64
	Units      telemetry.Units
	// Recorded is true when Point was appended to the track. Otherwise
	// Skipped holds the reason, such as gpmf.ErrNotFound for a payload
	// without GPS5.
	Recorded bool
	Point    track.Point
	Skipped  error
}

// Observer sees the outcome of every payload, in order, before the next
// payload is read.
type Observer interface {
	OnPayload(Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Outcome)

func (f ObserverFunc) OnPayload(o Outcome) { f(o) }

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithGPSTime enables decoding of the GPSU record; each point then carries
// its UTC time.
func WithGPSTime(on bool) Option {
	return func(p *Pipeline) { p.gpsTime = on }
}

// WithSampleLog logs every sample of each GPS burst, with its unit labels,
// at debug level.
func WithSampleLog(on bool) Option {
	return func(p *Pipeline) { p.sampleLog = on }
}

// WithObserver registers o to receive every payload outcome.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// Pipeline runs a single extraction over a Source. It is not safe for
// concurrent use and may be run once.
type Pipeline struct {
	logger    *slog.Logger
	log       *slog.Logger
	src       Source
	gpsTime   bool
	sampleLog bool
	observer  Observer

	ran         bool
	buf         []byte
	priorSecond int64
	havePrior   bool
}

// New returns a Pipeline that reads from src. Run closes src.
func New(src Source, opts ...Option) *Pipeline {
	p := &Pipeline{src: src, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.logger.With("component", "pipeline")
	return p
}

// Extract opens the MP4 file at path and runs a pipeline over its GPMF
// track.
func Extract(ctx context.Context, path string, opts ...Option) (*track.Track, error) {
	p := New(nil, opts...)
	p.log = p.log.With("file", path)
	src, err := mp4.Open(path, p.logger.With("file", path))
	if err != nil {
		return nil, err
	}
	p.src = src
	return p.Run(ctx)
}

// Run processes every payload in order and returns the finished track.
// Payloads without usable GPS data are skipped. A failure to fetch or parse
// a payload ends the run with a *PayloadError and a nil track, as does ctx
// being cancelled between payloads. The source is closed on every path.
func (p *Pipeline) Run(ctx context.Context) (trk *track.Track, err error) {
	if p.ran {
		return nil, ErrAlreadyRun
	}
	p.ran = true

	n := p.src.PayloadCount()
	defer func() {
		p.buf = nil
		if cerr := p.src.Close(); cerr != nil {
			p.log.Warn("close source", "error", cerr)
		}
		if err != nil {
			trk = nil
			return
		}
		p.log.Info("extraction complete", "payloads", n, "points", trk.Summary().Points)
	}()

	duration := p.src.Duration()
	if n == 0 || duration <= 0 {
		return nil, ErrNoPayloads
	}
	p.log.Info("metadata track", "payloads", n, "duration", duration)
	if fr, ok := p.src.(FrameRater); ok {
		if rate, ok := fr.FrameRate(); ok {
			p.log.Info("video", "frames", rate.Frames, "fps", rate.FPS())
		}
	}

	trk = track.New(n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := p.payload(trk, i)
		if err != nil {
			return nil, err
		}
		if p.observer != nil {
			p.observer.OnPayload(out)
		}
	}
	return trk, nil
}

func (p *Pipeline) payload(trk *track.Track, i int) (Outcome, error) {
	out := Outcome{Index: i}

	size, err := p.src.PayloadSize(i)
	if err != nil {
		return out, &PayloadError{Index: i, Stage: StageSize, Err: err}
	}
	out.Start, out.End, err = p.src.PayloadTime(i)
	if err != nil {
		return out, &PayloadError{Index: i, Stage: StageTime, Err: err}
	}
	p.buf, err = p.src.ReadPayload(p.buf, i)
	if err != nil {
		return out, &PayloadError{Index: i, Stage: StageRead, Err: err}
	}
	p.log.Debug("payload", "index", i, "start", out.Start, "end", out.End, "size", size)

	c, err := gpmf.Init(p.buf)
	if err != nil {
		return out, &PayloadError{Index: i, Stage: StageParse, Err: err}
	}
	if err := c.FindNext(gpmf.KeyGPS5, gpmf.Recurse); err != nil {
		out.Skipped = err
		p.log.Debug("no GPS record", "index", i)
		return out, nil
	}

	units, err := telemetry.ResolveUnits(c)
	if err != nil {
		p.log.Warn("unit labels truncated", "index", i, "error", err)
	}
	out.Units = units

	sample, burst, err := telemetry.FirstSample(c)
	if err != nil {
		out.Skipped = err
		p.log.Debug("GPS record skipped", "index", i, "reason", err)
		return out, nil
	}
	if p.sampleLog {
		p.logBurst(i, burst, units)
	}

	var ts time.Time
	if p.gpsTime {
		ts = p.gpsSecond(c, i)
	}
	trk.RecordAt(sample.Lat(), sample.Lon(), sample.Ele(), ts)
	out.Recorded = true
	out.Point = trk.Point(trk.Len() - 1)

	p.log.Info("gps", "index", i, "start", out.Start, "end", out.End,
		"lat", out.Point.Lat, "lon", out.Point.Lon, "ele", out.Point.Ele)
	return out, nil
}

// gpsSecond decodes the payload's GPSU time and warns when it repeats the
// previous payload's second. Repeats are still recorded.
func (p *Pipeline) gpsSecond(c gpmf.Cursor, i int) time.Time {
	ts, err := telemetry.GPSTime(c)
	if err != nil {
		p.log.Warn("GPS time unavailable", "index", i, "error", err)
		return time.Time{}
	}
	sec := ts.Unix()
	if p.havePrior && sec == p.priorSecond {
		p.log.Warn("duplicate GPS second", "index", i, "time", ts)
	}
	p.priorSecond = sec
	p.havePrior = true
	return ts
}

func (p *Pipeline) logBurst(i int, b telemetry.Burst, units telemetry.Units) {
	var sb strings.Builder
	for s := 0; s < b.Len(); s++ {
		sb.Reset()
		for e, v := range b.At(s) {
			if e > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.FormatFloat(v, 'f', 6, 64))
			sb.WriteString(units.Label(e))
		}
		p.log.Debug("sample", "index", i, "sample", s, "values", sb.String())
	}
}
