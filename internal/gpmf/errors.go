package gpmf

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by traversal and conversion. Callers separate
// "record absent" from "stream broken" with errors.Is.
var (
	ErrNotFound        = errors.New("gpmf: record not found")
	ErrBadStructure    = errors.New("gpmf: malformed structure")
	ErrNestTooDeep     = errors.New("gpmf: nesting exceeds limit")
	ErrBufferTooSmall  = errors.New("gpmf: destination buffer too small")
	ErrUnsupportedType = errors.New("gpmf: type cannot be converted to float")
	ErrSampleRange     = errors.New("gpmf: sample range out of bounds")
)

// ParseError records where in a payload a structural problem was found.
type ParseError struct {
	Offset int
	Key    FourCC
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("gpmf: %s at offset %d: %v", e.Key, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
