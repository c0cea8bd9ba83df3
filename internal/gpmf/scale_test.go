package gpmf

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func cursorAt(t *testing.T, buf []byte, key FourCC) Cursor {
	t.Helper()
	c, err := Init(buf)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := c.FindNext(key, Recurse); err != nil {
		t.Fatalf("FindNext %s: %v", key, err)
	}
	return c
}

func TestScaledDataPerElementScale(t *testing.T) {
	t.Parallel()

	c := cursorAt(t, buildPayload(t,
		377749000, -1224194000, 15000, 1200, 150,
		377750000, -1224195000, 15100, 1300, 160,
	), KeyGPS5)

	dst := make([]float64, 10)
	if err := c.ScaledData(dst, 0, 2); err != nil {
		t.Fatalf("ScaledData: %v", err)
	}
	want := []float64{
		37.7749, -122.4194, 15, 1.2, 1.5,
		37.775, -122.4195, 15.1, 1.3, 1.6,
	}
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-9 {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestScaledDataSingleScale(t *testing.T) {
	t.Parallel()

	c := cursorAt(t, buildPayload(t, oneGPSSample...), keyAccel)
	dst := make([]float64, 6)
	if err := c.ScaledData(dst, 0, 2); err != nil {
		t.Fatalf("ScaledData: %v", err)
	}
	want := []float64{1, 2, -1, 0, 0, 10}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestScaledDataWithoutScale(t *testing.T) {
	t.Parallel()

	var e Encoder
	e.Nest(KeyStream, func(s *Encoder) {
		s.Int32s(KeyGPS5, 5, 1, 2, 3, 4, 5)
	})
	c := cursorAt(t, e.Bytes(), KeyGPS5)
	dst := make([]float64, 5)
	if err := c.ScaledData(dst, 0, 1); err != nil {
		t.Fatalf("ScaledData: %v", err)
	}
	for i, v := range dst {
		if v != float64(i+1) {
			t.Errorf("dst[%d] = %v, want %d", i, v, i+1)
		}
	}
}

func TestScaledDataStartOffset(t *testing.T) {
	t.Parallel()

	c := cursorAt(t, buildPayload(t,
		10, 20, 30, 40, 50,
		11, 21, 31, 41, 51,
		12, 22, 32, 42, 52,
	), KeyGPS5)
	dst := make([]float64, 5)
	if err := c.ScaledData(dst, 2, 1); err != nil {
		t.Fatalf("ScaledData: %v", err)
	}
	if dst[2] != 32.0/1000 {
		t.Errorf("dst[2] = %v, want %v", dst[2], 32.0/1000)
	}
}

func TestScaledDataTypes(t *testing.T) {
	t.Parallel()

	be32 := func(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }
	be64 := func(v uint64) []byte { return binary.BigEndian.AppendUint64(nil, v) }

	tests := []struct {
		name string
		typ  Type
		data []byte
		want float64
	}{
		{"int8", TypeInt8, []byte{0xFE}, -2},
		{"uint8", TypeUint8, []byte{0xFE}, 254},
		{"int16", TypeInt16, []byte{0xFF, 0x38}, -200},
		{"uint16", TypeUint16, []byte{0xFF, 0x38}, 65336},
		{"int32", TypeInt32, be32(0xFFFFFFFF), -1},
		{"uint32", TypeUint32, be32(0xFFFFFFFF), 4294967295},
		{"int64", TypeInt64, be64(math.MaxUint64), -1},
		{"float", TypeFloat, be32(math.Float32bits(1.5)), 1.5},
		{"double", TypeDouble, be64(math.Float64bits(-2.25)), -2.25},
		{"q15_16", TypeQ15_16, be32(0x00018000), 1.5},
		{"q31_32", TypeQ31_32, be64(0x0000000280000000), 2.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var e Encoder
			e.Record(KeyGPS5, tc.typ, len(tc.data), 1, tc.data)
			c, err := Init(e.Bytes())
			if err != nil {
				t.Fatalf("Init: %v", err)
			}
			dst := make([]float64, 1)
			if err := c.ScaledData(dst, 0, 1); err != nil {
				t.Fatalf("ScaledData: %v", err)
			}
			if dst[0] != tc.want {
				t.Errorf("value = %v, want %v", dst[0], tc.want)
			}
		})
	}
}

func TestScaledDataErrors(t *testing.T) {
	t.Parallel()

	buf := buildPayload(t, oneGPSSample...)

	t.Run("buffer_too_small", func(t *testing.T) {
		c := cursorAt(t, buf, KeyGPS5)
		if err := c.ScaledData(make([]float64, 4), 0, 1); !errors.Is(err, ErrBufferTooSmall) {
			t.Errorf("err = %v, want ErrBufferTooSmall", err)
		}
	})

	t.Run("range", func(t *testing.T) {
		c := cursorAt(t, buf, KeyGPS5)
		if err := c.ScaledData(make([]float64, 10), 0, 2); !errors.Is(err, ErrSampleRange) {
			t.Errorf("err = %v, want ErrSampleRange", err)
		}
	})

	t.Run("non_numeric", func(t *testing.T) {
		c := cursorAt(t, buf, KeyGPSTime)
		if err := c.ScaledData(make([]float64, 16), 0, 1); !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("err = %v, want ErrUnsupportedType", err)
		}
	})
}

func TestEncoderPanicsOnBadHeader(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("expected panic for oversized struct")
		}
	}()
	var e Encoder
	e.Record(KeyGPS5, TypeChar, 300, 1, make([]byte, 300))
}
