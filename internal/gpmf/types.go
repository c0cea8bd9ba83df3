// Package gpmf implements traversal of GPMF, the nested key-length-value
// telemetry format GoPro cameras embed in the metadata track of MP4 files.
//
// A GPMF record is an 8-byte header (FourCC key, type tag, struct size,
// big-endian repeat count) followed by struct size × repeat bytes of data,
// padded to a 4-byte boundary. A type tag of zero marks a nested record
// whose data is itself a sequence of records.
//
// The central type is [Cursor], a copyable traversal position. Copying a
// Cursor duplicates the traversal state, so a lookahead search on a copy
// never disturbs the original.
package gpmf

import (
	"encoding/binary"
	"fmt"
)

// FourCC is a four-character record key packed big-endian into a uint32.
type FourCC uint32

// Keys used by the GPS extractor. The full GPMF key space is open-ended;
// any key can be built with [MakeFourCC].
const (
	KeyDevice     FourCC = 'D'<<24 | 'E'<<16 | 'V'<<8 | 'C'
	KeyDeviceID   FourCC = 'D'<<24 | 'V'<<16 | 'I'<<8 | 'D'
	KeyDeviceName FourCC = 'D'<<24 | 'V'<<16 | 'N'<<8 | 'M'
	KeyStream     FourCC = 'S'<<24 | 'T'<<16 | 'R'<<8 | 'M'
	KeyStreamName FourCC = 'S'<<24 | 'T'<<16 | 'N'<<8 | 'M'
	KeyScale      FourCC = 'S'<<24 | 'C'<<16 | 'A'<<8 | 'L'
	KeySIUnits    FourCC = 'S'<<24 | 'I'<<16 | 'U'<<8 | 'N'
	KeyUnits      FourCC = 'U'<<24 | 'N'<<16 | 'I'<<8 | 'T'
	KeyTimestamp  FourCC = 'T'<<24 | 'S'<<16 | 'M'<<8 | 'P'
	KeyGPS5       FourCC = 'G'<<24 | 'P'<<16 | 'S'<<8 | '5'
	KeyGPSTime    FourCC = 'G'<<24 | 'P'<<16 | 'S'<<8 | 'U'
	KeyGPSFix     FourCC = 'G'<<24 | 'P'<<16 | 'S'<<8 | 'F'
	KeyGPSDOP     FourCC = 'G'<<24 | 'P'<<16 | 'S'<<8 | 'P'
)

// MakeFourCC packs a four-character string into a FourCC. Shorter strings
// are padded with spaces; extra characters are ignored.
func MakeFourCC(s string) FourCC {
	var b [4]byte
	for i := range b {
		b[i] = ' '
		if i < len(s) {
			b[i] = s[i]
		}
	}
	return FourCC(binary.BigEndian.Uint32(b[:]))
}

func (k FourCC) String() string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(k))
	return string(b[:])
}

// valid reports whether every byte of the key is a printable ASCII
// character, which is what distinguishes a record header from padding or
// garbage.
func (k FourCC) valid() bool {
	for shift := 24; shift >= 0; shift -= 8 {
		c := byte(k >> uint(shift))
		if c < 0x20 || c > 0x7E {
			return false
		}
	}
	return true
}

// Type is the one-byte element type tag of a record.
type Type byte

// Element type tags defined by the GPMF format.
const (
	TypeNest    Type = 0
	TypeInt8    Type = 'b'
	TypeUint8   Type = 'B'
	TypeChar    Type = 'c'
	TypeDouble  Type = 'd'
	TypeFloat   Type = 'f'
	TypeFourCC  Type = 'F'
	TypeGUID    Type = 'G'
	TypeInt64   Type = 'j'
	TypeUint64  Type = 'J'
	TypeInt32   Type = 'l'
	TypeUint32  Type = 'L'
	TypeQ15_16  Type = 'q'
	TypeQ31_32  Type = 'Q'
	TypeInt16   Type = 's'
	TypeUint16  Type = 'S'
	TypeUTCDate Type = 'U'
	TypeComplex Type = '?'
)

// Size returns the byte width of one element of type t, or 0 when the
// width is not fixed (nested and complex records).
func (t Type) Size() int {
	switch t {
	case TypeInt8, TypeUint8, TypeChar:
		return 1
	case TypeInt16, TypeUint16:
		return 2
	case TypeInt32, TypeUint32, TypeFloat, TypeFourCC, TypeQ15_16:
		return 4
	case TypeInt64, TypeUint64, TypeDouble, TypeQ31_32:
		return 8
	case TypeGUID, TypeUTCDate:
		return 16
	default:
		return 0
	}
}

// Numeric reports whether values of type t can be converted to float64.
func (t Type) Numeric() bool {
	switch t {
	case TypeInt8, TypeUint8, TypeInt16, TypeUint16, TypeInt32, TypeUint32,
		TypeInt64, TypeUint64, TypeFloat, TypeDouble, TypeQ15_16, TypeQ31_32:
		return true
	}
	return false
}

func (t Type) String() string {
	if t == TypeNest {
		return "nest"
	}
	if t < 0x20 || t > 0x7E {
		return fmt.Sprintf("0x%02X", byte(t))
	}
	return string(rune(t))
}
