package gpmf

import "encoding/binary"

// Validate checks that buf is a well-formed GPMF payload: every header is
// complete, every key is printable, every record fits inside its container,
// and nesting stays under MaxNestLevel. A zero key ends a level early, which
// tolerates zero padding at the end of a payload or container.
func Validate(buf []byte) error {
	if len(buf) < headerSize {
		return &ParseError{Offset: 0, Err: ErrBadStructure}
	}
	if binary.BigEndian.Uint32(buf) == 0 {
		return &ParseError{Offset: 0, Err: ErrBadStructure}
	}
	return validateLevel(buf, 0, len(buf), 0)
}

func validateLevel(buf []byte, start, end, depth int) error {
	if depth >= MaxNestLevel {
		return &ParseError{Offset: start, Err: ErrNestTooDeep}
	}
	off := start
	for off+headerSize <= end {
		key := FourCC(binary.BigEndian.Uint32(buf[off:]))
		if key == 0 {
			return nil
		}
		if !key.valid() {
			return &ParseError{Offset: off, Key: key, Err: ErrBadStructure}
		}
		typ := Type(buf[off+4])
		size := int(buf[off+5]) * int(binary.BigEndian.Uint16(buf[off+6:]))
		from := off + headerSize
		if from+size > end {
			return &ParseError{Offset: off, Key: key, Err: ErrBadStructure}
		}
		if typ == TypeNest && size > 0 {
			if err := validateLevel(buf, from, from+size, depth+1); err != nil {
				return err
			}
		}
		off = from + align4(size)
	}
	return nil
}
