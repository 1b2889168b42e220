package grid

import (
	"errors"
	"fmt"
)

// Configuration and format errors, reported when a file is opened.
var (
	ErrFileNotFound      = errors.New("grid file not found")
	ErrTruncatedHeader   = errors.New("truncated grid file header")
	ErrMalformedHeader   = errors.New("malformed grid file header")
	ErrTruncatedData     = errors.New("grid file shorter than its header declares")
	ErrUnsupportedFormat = errors.New("unsupported grid file format")
	ErrConfig            = errors.New("invalid configuration")
)

// Query-time failures. These are never coverage gaps.
var (
	ErrIO          = errors.New("grid file i/o error")
	ErrCorruptData = errors.New("corrupt grid data")
)

// ErrInternal marks a selection/coverage mismatch: a lookup reached a reader for
// a point that reader does not cover. It indicates a bug, not bad data.
var ErrInternal = errors.New("internal grid error")

// ErrIndexOutOfRange indicates a computed cell index beyond the declared grid.
type ErrIndexOutOfRange struct {
	Source            string
	Element, Record   int
	Elements, Records int
}

func (e *ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("%s: cell index (%d,%d) outside grid %dx%d",
		e.Source, e.Element, e.Record, e.Elements, e.Records)
}

// Unwrap lets errors.Is match ErrInternal.
func (e *ErrIndexOutOfRange) Unwrap() error { return ErrInternal }

// ErrNotCovered indicates a reader was asked for a point outside its coverage.
type ErrNotCovered struct {
	Source string
	Point  LL
}

func (e *ErrNotCovered) Error() string {
	return fmt.Sprintf("%s: point lng=%f lat=%f is not covered", e.Source, e.Point.Lng, e.Point.Lat)
}

// Unwrap lets errors.Is match ErrInternal.
func (e *ErrNotCovered) Unwrap() error { return ErrInternal }
