package telemetry

import (
	"errors"

	"github.com/zsiec/gpmfgps/internal/gpmf"
)

// Conditions under which a payload contributes no GPS point. They are
// normal outcomes, not failures of the run.
var (
	ErrNoSamples   = errors.New("telemetry: record holds no samples")
	ErrShortSample = errors.New("telemetry: sample has fewer than 3 elements")
)

// Sample is one scaled reading. GPS5 lays out latitude, longitude and
// elevation first, followed by 2D and 3D speed.
type Sample []float64

func (s Sample) Lat() float64 { return s[0] }
func (s Sample) Lon() float64 { return s[1] }
func (s Sample) Ele() float64 { return s[2] }

// Burst is every sample of one record in a payload, scaled to physical
// units. Values holds Len() groups of Elements values each.
type Burst struct {
	Elements int
	Values   []float64
}

// Len returns the number of samples in the burst.
func (b Burst) Len() int {
	if b.Elements == 0 {
		return 0
	}
	return len(b.Values) / b.Elements
}

// At returns sample i. The returned slice aliases the burst.
func (b Burst) At(i int) Sample {
	from := i * b.Elements
	return Sample(b.Values[from : from+b.Elements : from+b.Elements])
}

// ScaleBurst converts all samples of the record at c into a freshly
// allocated scratch buffer. The buffer is never larger than eight times the
// record's data, which the payload already holds.
func ScaleBurst(c gpmf.Cursor) (Burst, error) {
	samples := c.Repeat()
	if samples == 0 {
		return Burst{}, ErrNoSamples
	}
	elements := c.ElementsInStruct()
	scratch := make([]float64, samples*elements)
	if err := c.ScaledData(scratch, 0, samples); err != nil {
		return Burst{}, err
	}
	return Burst{Elements: elements, Values: scratch}, nil
}

// FirstSample returns the representative reading of a GPS record: the first
// sample in time order. GPS is sampled well above 1 Hz while a payload spans
// about one second, so taking sample 0 of each payload yields a 1 Hz track.
// There is no averaging and no filtering on fix quality.
func FirstSample(c gpmf.Cursor) (Sample, Burst, error) {
	if c.Repeat() == 0 {
		return nil, Burst{}, ErrNoSamples
	}
	if c.ElementsInStruct() < 3 {
		return nil, Burst{}, ErrShortSample
	}
	burst, err := ScaleBurst(c)
	if err != nil {
		return nil, Burst{}, err
	}
	return burst.At(0), burst, nil
}
