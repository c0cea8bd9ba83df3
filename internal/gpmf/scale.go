package gpmf

import (
	"encoding/binary"
	"math"
)

// ScaledData converts count samples of the current record, starting at
// sample start, into float64 values written to dst. Each struct contributes
// ElementsInStruct values, so dst needs count*ElementsInStruct entries; the
// layout is one struct's elements contiguous, repeated count times.
//
// Values are divided by the scale declared by the closest preceding SCAL
// sibling: a single divisor for every element, or one per element. Without
// a SCAL sibling, or for a zero divisor, values are converted unscaled.
func (c *Cursor) ScaledData(dst []float64, start, count int) error {
	typ := c.Type()
	if !typ.Numeric() {
		return &ParseError{Offset: c.pos, Key: c.Key(), Err: ErrUnsupportedType}
	}
	if start < 0 || count < 0 || start+count > c.Repeat() {
		return ErrSampleRange
	}
	elements := c.ElementsInStruct()
	if elements == 0 {
		return &ParseError{Offset: c.pos, Key: c.Key(), Err: ErrBadStructure}
	}
	if len(dst) < count*elements {
		return ErrBufferTooSmall
	}

	raw := c.RawData()
	stride := c.StructSize()
	width := typ.Size()
	if (start+count)*stride > len(raw) {
		return &ParseError{Offset: c.pos, Key: c.Key(), Err: ErrBadStructure}
	}

	scales := c.scales()
	n := 0
	for s := start; s < start+count; s++ {
		base := s * stride
		for e := 0; e < elements; e++ {
			v := decode(typ, raw[base+e*width:])
			if sc := scales[e%len(scales)]; sc != 0 {
				v /= sc
			}
			dst[n] = v
			n++
		}
	}
	return nil
}

// scales returns the divisors from the preceding SCAL sibling, or a single
// divisor of 1.
func (c *Cursor) scales() []float64 {
	sib := *c
	if sib.FindPrev(KeyScale, CurrentLevel) != nil {
		return []float64{1}
	}
	typ := sib.Type()
	if !typ.Numeric() {
		return []float64{1}
	}
	raw := sib.RawData()
	width := typ.Size()
	n := len(raw) / width
	if n == 0 {
		return []float64{1}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = decode(typ, raw[i*width:])
	}
	return out
}

// decode reads one big-endian element of type t from the front of b. The
// caller guarantees b holds at least t.Size() bytes.
func decode(t Type, b []byte) float64 {
	switch t {
	case TypeInt8:
		return float64(int8(b[0]))
	case TypeUint8:
		return float64(b[0])
	case TypeInt16:
		return float64(int16(binary.BigEndian.Uint16(b)))
	case TypeUint16:
		return float64(binary.BigEndian.Uint16(b))
	case TypeInt32:
		return float64(int32(binary.BigEndian.Uint32(b)))
	case TypeUint32:
		return float64(binary.BigEndian.Uint32(b))
	case TypeInt64:
		return float64(int64(binary.BigEndian.Uint64(b)))
	case TypeUint64:
		return float64(binary.BigEndian.Uint64(b))
	case TypeFloat:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
	case TypeDouble:
		return math.Float64frombits(binary.BigEndian.Uint64(b))
	case TypeQ15_16:
		return float64(int32(binary.BigEndian.Uint32(b))) / (1 << 16)
	case TypeQ31_32:
		return float64(int64(binary.BigEndian.Uint64(b))) / (1 << 32)
	}
	return 0
}
