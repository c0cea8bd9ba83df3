// Package telemetry holds the GPS-specific decisions made on top of a GPMF
// cursor: which unit labels apply to a record, how a burst of high-rate GPS
// samples is scaled, and which single sample represents the payload.
package telemetry

import (
	"bytes"
	"errors"

	"github.com/zsiec/gpmfgps/internal/gpmf"
)

// Bounds on a unit annotation. GPS5 declares five labels such as "deg" or
// "m/s"; anything past these limits is dropped and reported.
const (
	MaxUnitLabels   = 10
	MaxUnitLabelLen = 5
)

// ErrUnitOverflow reports a unit record with more labels, or longer labels,
// than the bounds allow. The labels returned alongside it are truncated.
var ErrUnitOverflow = errors.New("telemetry: unit annotation exceeds label bounds")

// Units holds the unit labels that annotate each element of a record.
type Units []string

// Label returns the label for element i. Labels repeat when the record has
// more elements than labels, and an empty Units yields "".
func (u Units) Label(i int) string {
	if len(u) == 0 {
		return ""
	}
	return u[i%len(u)]
}

// ResolveUnits looks for an SIUN, then a UNIT, record preceding c at the
// same nesting level and returns its labels. c is taken by value so the
// caller's position never changes. A record without a unit sibling yields
// nil Units and a nil error.
func ResolveUnits(c gpmf.Cursor) (Units, error) {
	if c.FindPrev(gpmf.KeySIUnits, gpmf.CurrentLevel) != nil &&
		c.FindPrev(gpmf.KeyUnits, gpmf.CurrentLevel) != nil {
		return nil, nil
	}

	size := c.StructSize()
	raw := c.RawData()
	n := c.Repeat()
	overflow := false
	if n > MaxUnitLabels {
		n = MaxUnitLabels
		overflow = true
	}

	units := make(Units, 0, n)
	for i := 0; i < n && (i+1)*size <= len(raw); i++ {
		label := raw[i*size : (i+1)*size]
		if nul := bytes.IndexByte(label, 0); nul >= 0 {
			label = label[:nul]
		}
		if len(label) > MaxUnitLabelLen {
			label = label[:MaxUnitLabelLen]
			overflow = true
		}
		units = append(units, string(label))
	}
	if overflow {
		return units, ErrUnitOverflow
	}
	return units, nil
}
