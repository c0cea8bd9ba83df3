package telemetry

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/zsiec/gpmfgps/internal/gpmf"
)

// gpsTimeLayout is the GPSU encoding: yymmddhhmmss.sss in UTC.
const gpsTimeLayout = "060102150405.000"

// ErrBadGPSTime reports a GPSU record that does not hold a timestamp.
var ErrBadGPSTime = errors.New("telemetry: malformed GPSU timestamp")

// GPSTime returns the UTC time from the GPSU record preceding c in the same
// stream. c is taken by value; the caller's position does not change.
func GPSTime(c gpmf.Cursor) (time.Time, error) {
	if err := c.FindPrev(gpmf.KeyGPSTime, gpmf.CurrentLevel); err != nil {
		return time.Time{}, err
	}
	return ParseGPSTime(c.RawData())
}

// ParseGPSTime decodes a GPSU payload.
func ParseGPSTime(raw []byte) (time.Time, error) {
	if nul := bytes.IndexByte(raw, 0); nul >= 0 {
		raw = raw[:nul]
	}
	if len(raw) < len(gpsTimeLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadGPSTime, raw)
	}
	ts, err := time.Parse(gpsTimeLayout, string(raw[:len(gpsTimeLayout)]))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrBadGPSTime, err)
	}
	return ts, nil
}
