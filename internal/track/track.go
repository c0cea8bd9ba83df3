// Package track accumulates the 1 Hz GPS track produced from a video's
// telemetry: one point per payload, kept as three index-aligned sequences.
package track

import "time"

// Point is one representative GPS reading, stored at single precision.
// Time is zero unless GPS time decoding is enabled.
type Point struct {
	Lat  float32   `json:"lat"`
	Lon  float32   `json:"lon"`
	Ele  float32   `json:"ele"`
	Time time.Time `json:"time,omitzero"`
}

// Track holds latitudes, longitudes and elevations as parallel slices. The
// three slices always have the same length; only Record appends to them.
type Track struct {
	latitudes  []float32
	longitudes []float32
	elevations []float32
	times      []time.Time
}

// New returns an empty track with room for capacity points.
func New(capacity int) *Track {
	return &Track{
		latitudes:  make([]float32, 0, capacity),
		longitudes: make([]float32, 0, capacity),
		elevations: make([]float32, 0, capacity),
		times:      make([]time.Time, 0, capacity),
	}
}

// Record appends one point, truncating each value to float32. There is no
// deduplication and no plausibility check on the coordinates.
func (t *Track) Record(lat, lon, ele float64) {
	t.RecordAt(lat, lon, ele, time.Time{})
}

// RecordAt is Record with the point's GPS time attached.
func (t *Track) RecordAt(lat, lon, ele float64, ts time.Time) {
	t.latitudes = append(t.latitudes, float32(lat))
	t.longitudes = append(t.longitudes, float32(lon))
	t.elevations = append(t.elevations, float32(ele))
	t.times = append(t.times, ts)
}

// Len returns the number of recorded points.
func (t *Track) Len() int {
	return len(t.latitudes)
}

// Latitudes returns the recorded latitudes in payload order.
func (t *Track) Latitudes() []float32 { return t.latitudes }

// Longitudes returns the recorded longitudes in payload order.
func (t *Track) Longitudes() []float32 { return t.longitudes }

// Elevations returns the recorded elevations in payload order.
func (t *Track) Elevations() []float32 { return t.elevations }

// Point returns point i.
func (t *Track) Point(i int) Point {
	return Point{
		Lat:  t.latitudes[i],
		Lon:  t.longitudes[i],
		Ele:  t.elevations[i],
		Time: t.times[i],
	}
}

// Points returns every recorded point in payload order.
func (t *Track) Points() []Point {
	out := make([]Point, t.Len())
	for i := range out {
		out[i] = t.Point(i)
	}
	return out
}

// Summary is the end-of-run report for a track.
type Summary struct {
	Points int `json:"points"`
}

// Summary returns the final count of recorded points.
func (t *Track) Summary() Summary {
	return Summary{Points: t.Len()}
}
