package gridshift

import (
	"errors"
	"fmt"

	"github.com/beetlebugorg/gridshift/internal/grid"
)

// Errors returned when a grid file or catalog cannot be opened.
var (
	ErrFileNotFound      = grid.ErrFileNotFound
	ErrTruncatedHeader   = grid.ErrTruncatedHeader
	ErrMalformedHeader   = grid.ErrMalformedHeader
	ErrTruncatedData     = grid.ErrTruncatedData
	ErrUnsupportedFormat = grid.ErrUnsupportedFormat
	ErrConfig            = grid.ErrConfig
)

// Errors returned by conversions. None of them means "no coverage".
var (
	ErrIO          = grid.ErrIO
	ErrCorruptData = grid.ErrCorruptData
	ErrInternal    = grid.ErrInternal
)

// ErrTooManyFailures is returned by ConvertBatch once hard failures exceed
// BatchOptions.MaxFailures.
var ErrTooManyFailures = errors.New("too many conversion failures")

// IndexError reports a computed cell index outside a grid. It matches ErrInternal.
type IndexError = grid.ErrIndexOutOfRange

// CoverageError reports a grid asked for a point it does not cover. It
// matches ErrInternal.
type CoverageError = grid.ErrNotCovered

// EntryError reports a failure of one catalog entry.
type EntryError struct {
	Op   string // "open", "calculate", "inverse"
	Path string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }
