package gpmf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encoder builds GPMF payloads. It is the write-side counterpart of Cursor
// and is used to produce synthetic telemetry.
type Encoder struct {
	buf []byte
}

// Bytes returns the encoded payload.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Record appends a record with explicit header fields. data must hold
// structSize*repeat bytes; it is zero padded to a 4-byte boundary. Header
// fields that do not fit their wire width panic, since they indicate a
// malformed fixture rather than bad input.
func (e *Encoder) Record(key FourCC, typ Type, structSize, repeat int, data []byte) {
	if structSize < 0 || structSize > math.MaxUint8 || repeat < 0 || repeat > math.MaxUint16 {
		panic(fmt.Sprintf("gpmf: %s header out of range (size=%d repeat=%d)", key, structSize, repeat))
	}
	if len(data) != structSize*repeat {
		panic(fmt.Sprintf("gpmf: %s data is %d bytes, header declares %d", key, len(data), structSize*repeat))
	}
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(key))
	e.buf = append(e.buf, byte(typ), byte(structSize))
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(repeat))
	e.buf = append(e.buf, data...)
	for len(e.buf)%4 != 0 {
		e.buf = append(e.buf, 0)
	}
}

// Nest appends a nested record whose children are written by fn.
func (e *Encoder) Nest(key FourCC, fn func(*Encoder)) {
	var inner Encoder
	fn(&inner)
	size := len(inner.buf)
	if size <= math.MaxUint16 {
		e.Record(key, TypeNest, 1, size, inner.buf)
		return
	}
	e.Record(key, TypeNest, 4, size/4, inner.buf)
}

// Int32s appends a signed 32-bit record with elements values per struct.
func (e *Encoder) Int32s(key FourCC, elements int, values ...int32) {
	data := make([]byte, 0, 4*len(values))
	for _, v := range values {
		data = binary.BigEndian.AppendUint32(data, uint32(v))
	}
	e.Record(key, TypeInt32, 4*elements, repeatOf(len(values), elements), data)
}

// Int16s appends a signed 16-bit record with elements values per struct.
func (e *Encoder) Int16s(key FourCC, elements int, values ...int16) {
	data := make([]byte, 0, 2*len(values))
	for _, v := range values {
		data = binary.BigEndian.AppendUint16(data, uint16(v))
	}
	e.Record(key, TypeInt16, 2*elements, repeatOf(len(values), elements), data)
}

// Float64s appends a double record with elements values per struct.
func (e *Encoder) Float64s(key FourCC, elements int, values ...float64) {
	data := make([]byte, 0, 8*len(values))
	for _, v := range values {
		data = binary.BigEndian.AppendUint64(data, math.Float64bits(v))
	}
	e.Record(key, TypeDouble, 8*elements, repeatOf(len(values), elements), data)
}

// String appends a single character record such as STNM or GPSU.
func (e *Encoder) String(key FourCC, s string) {
	e.Record(key, TypeChar, len(s), 1, []byte(s))
}

// Labels appends a character record holding one fixed-width label per
// struct, the layout used by SIUN and UNIT. Labels are NUL padded to width.
func (e *Encoder) Labels(key FourCC, width int, labels ...string) {
	data := make([]byte, width*len(labels))
	for i, l := range labels {
		copy(data[i*width:(i+1)*width], l)
	}
	e.Record(key, TypeChar, width, len(labels), data)
}

func repeatOf(n, elements int) int {
	if elements <= 0 || n%elements != 0 {
		panic(fmt.Sprintf("gpmf: %d values do not divide into structs of %d", n, elements))
	}
	return n / elements
}
