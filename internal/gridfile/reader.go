package gridfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"fortio.org/safecast"

	"github.com/beetlebugorg/gridshift/internal/grid"
)

// DefaultBufferSize is the read-ahead budget used when no hint is given.
const DefaultBufferSize = 16384

// Sentinels for an empty buffer window. Begin > End so no span is ever resident.
const (
	emptyBegin int64 = -1
	emptyEnd   int64 = -2
)

// Options configures a Reader.
type Options struct {
	// BufferSize is the read-ahead budget in bytes. Zero means DefaultBufferSize.
	// The effective size is clamped to [2 records, whole data area] and rounded
	// down to a whole number of records.
	BufferSize int

	// Density overrides the natural density when > 0.
	Density float64

	// OnRead, when set, is called with the byte count of every data read.
	OnRead func(n int)
}

// Stats counts data reads since the reader was opened.
type Stats struct {
	Reads       int
	BytesRead   int64
	Extracts    int
	FileOpens   int
	FullyCached bool
}

// Reader provides windowed access to one grid file.
//
// A Reader is not safe for concurrent use: every lookup may move the buffer
// window and overwrite the current cell.
type Reader struct {
	path   string
	source string
	opts   Options

	header *Header
	layout Layout

	fileSize   int64
	bufferSize int64

	file     *os.File
	buffer   []byte
	bufBegin int64
	bufEnd   int64

	cells grid.CellPair
	stats Stats
}

// Open parses the header of the grid file at path. The data buffer is not
// allocated until the first lookup.
func Open(path string, opts Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", grid.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: open %s: %w", grid.ErrIO, path, err)
	}
	defer f.Close()

	header, err := DecodeHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	layout, err := header.Layout(opts.Density)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: seek %s: %w", grid.ErrIO, path, err)
	}
	if size < layout.DataEnd {
		return nil, fmt.Errorf("%w: %s is %d bytes, header needs %d",
			grid.ErrTruncatedData, path, size, layout.DataEnd)
	}

	r := &Reader{
		path:       path,
		source:     filepath.Base(path),
		opts:       opts,
		header:     header,
		layout:     layout,
		fileSize:   size,
		bufferSize: bufferSizeFor(opts.BufferSize, layout),
		bufBegin:   emptyBegin,
		bufEnd:     emptyEnd,
	}
	return r, nil
}

// bufferSizeFor clamps the requested size between two records and the whole
// data area, in whole records.
func bufferSizeFor(hint int, l Layout) int64 {
	size := int64(hint)
	if size <= 0 {
		size = DefaultBufferSize
	}
	if dataSize := l.DataEnd - l.FirstData; size > dataSize {
		size = dataSize
	}
	size -= size % l.RecordSize
	if size < 2*l.RecordSize {
		size = 2 * l.RecordSize
	}
	return size
}

// Path returns the file path.
func (r *Reader) Path() string { return r.path }

// Source returns the file's short name, used to tag cells.
func (r *Reader) Source() string { return r.source }

// Header returns the decoded header.
func (r *Reader) Header() Header { return *r.header }

// Layout returns the derived grid layout.
func (r *Reader) Layout() Layout { return r.layout }

// Coverage returns the file's coverage region.
func (r *Reader) Coverage() grid.Region { return r.layout.Coverage }

// BufferSize returns the effective buffer size in bytes.
func (r *Reader) BufferSize() int64 { return r.bufferSize }

// Stats returns read counters.
func (r *Reader) Stats() Stats { return r.stats }

// TestCoverage returns the file's density if p is covered, else 0.
func (r *Reader) TestCoverage(p grid.LL) float64 {
	return r.layout.Coverage.Test(p)
}

// CellValidFor reports whether the currently loaded cell can serve p without I/O.
func (r *Reader) CellValidFor(p grid.LL) bool {
	return r.cells.Covers(p)
}

// Cells returns a copy of the currently loaded cell pair.
func (r *Reader) Cells() grid.CellPair { return r.cells }

// Calculate returns the longitude and latitude corrections at p in the file's
// native convention: arc-seconds, longitude positive west.
func (r *Reader) Calculate(p grid.LL) (dLng, dLat float64, err error) {
	if !r.cells.Covers(p) {
		if err := r.ExtractCell(p); err != nil {
			return 0, 0, err
		}
	}
	dLng, dLat = r.cells.Interpolate(p)
	return dLng, dLat, nil
}

// ExtractCell loads the grid cell containing p into the reader's cells.
// p must be covered by the file. On failure the reader is released so the next
// call starts from scratch.
func (r *Reader) ExtractCell(p grid.LL) error {
	if err := r.extractCell(p); err != nil {
		r.cells.Reset()
		r.Release()
		return err
	}
	return nil
}

func (r *Reader) extractCell(p grid.LL) error {
	l := &r.layout
	if l.Coverage.Test(p) == 0 {
		return &grid.ErrNotCovered{Source: r.source, Point: p}
	}

	ele := int(math.Floor((p.Lng - l.Coverage.SouthWest.Lng) / l.DeltaLng))
	rec := int(math.Floor((p.Lat - l.Coverage.SouthWest.Lat) / l.DeltaLat))
	// Points on the north or east edge use the last cell.
	if ele == l.Elements-1 {
		ele--
	}
	if rec == l.Records-1 {
		rec--
	}
	if ele < 0 || rec < 0 || ele >= l.Elements-1 || rec >= l.Records-1 {
		return &grid.ErrIndexOutOfRange{
			Source: r.source, Element: ele, Record: rec,
			Elements: l.Elements, Records: l.Records,
		}
	}

	// The cell's four corners live in this record and the next one.
	begin := l.FirstData + int64(rec)*l.RecordSize
	end := begin + 2*l.RecordSize
	if begin < r.bufBegin || end > r.bufEnd {
		if err := r.fill(begin, end); err != nil {
			return err
		}
	}

	off, err := safecast.Conv[int](begin - r.bufBegin + int64(ele)*RecordLen)
	if err != nil {
		return fmt.Errorf("%w: %s: buffer offset: %w", grid.ErrInternal, r.source, err)
	}
	recSize, err := safecast.Conv[int](l.RecordSize)
	if err != nil {
		return fmt.Errorf("%w: %s: record size: %w", grid.ErrInternal, r.source, err)
	}

	sw := r.element(off)
	se := r.element(off + RecordLen)
	nw := r.element(off + recSize)
	ne := r.element(off + recSize + RecordLen)

	corner := grid.LL{
		Lng: l.Coverage.SouthWest.Lng + float64(ele)*l.DeltaLng,
		Lat: l.Coverage.SouthWest.Lat + float64(rec)*l.DeltaLat,
	}
	density := l.Coverage.Density
	r.cells.Lng = grid.NewCell(corner, l.DeltaLng, l.DeltaLat, density,
		grid.Corners{SW: sw.Lng, SE: se.Lng, NW: nw.Lng, NE: ne.Lng}, r.source)
	r.cells.Lat = grid.NewCell(corner, l.DeltaLng, l.DeltaLat, density,
		grid.Corners{SW: sw.Lat, SE: se.Lat, NW: nw.Lat, NE: ne.Lat}, r.source)

	if !r.cells.Lng.Finite() || !r.cells.Lat.Finite() {
		return fmt.Errorf("%w: %s: non-finite correction near record %d element %d",
			grid.ErrCorruptData, r.source, rec, ele)
	}
	r.stats.Extracts++
	return nil
}

// element decodes the correction pair at buffer offset off.
func (r *Reader) element(off int) Element {
	order := r.header.ByteOrder
	return Element{
		Lng: decodeFloat(order, r.buffer[off:off+8]),
		Lat: decodeFloat(order, r.buffer[off+8:off+16]),
	}
}

// fill reads a window containing [begin, end) into the buffer.
func (r *Reader) fill(begin, end int64) error {
	l := &r.layout
	if r.buffer == nil {
		n, err := safecast.Conv[int](r.bufferSize)
		if err != nil {
			return fmt.Errorf("%w: %s: buffer size: %w", grid.ErrInternal, r.source, err)
		}
		r.buffer = make([]byte, n)
	}
	// Invalidate first so a failed read never leaves a stale window behind.
	r.bufBegin, r.bufEnd = emptyBegin, emptyEnd

	lo, hi := growWindow(begin, end, r.bufferSize, l.FirstData, l.DataEnd, l.RecordSize)

	if r.file == nil {
		f, err := os.Open(r.path)
		if err != nil {
			return fmt.Errorf("%w: reopen %s: %w", grid.ErrIO, r.path, err)
		}
		r.file = f
		r.stats.FileOpens++
	}
	if _, err := r.file.Seek(lo, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek %s to %d: %w", grid.ErrIO, r.path, lo, err)
	}
	n, err := safecast.Conv[int](hi - lo)
	if err != nil {
		return fmt.Errorf("%w: %s: window size: %w", grid.ErrInternal, r.source, err)
	}
	if _, err := io.ReadFull(r.file, r.buffer[:n]); err != nil {
		return fmt.Errorf("%w: read %d bytes at %d from %s: %w", grid.ErrIO, n, lo, r.path, err)
	}

	r.bufBegin, r.bufEnd = lo, hi
	r.stats.Reads++
	r.stats.BytesRead += int64(n)
	if r.opts.OnRead != nil {
		r.opts.OnRead(n)
	}

	// Everything is resident; the handle is no longer needed.
	if lo == l.FirstData && hi == l.DataEnd {
		r.closeFile()
		r.stats.FullyCached = true
	}
	return nil
}

// growWindow expands the required span [begin, end) to use the buffer
// capacity: backward by up to half the slack, forward by the rest, then
// backward again with whatever the forward step could not use. The result
// stays within [first, last]. All arguments are whole records from first.
func growWindow(begin, end, capacity, first, last, recordSize int64) (int64, int64) {
	slack := capacity - (end - begin)
	if slack <= 0 {
		return begin, end
	}

	lo := begin - (slack/2)/recordSize*recordSize
	if lo < first {
		lo = first
	}
	slack -= begin - lo

	hi := end + slack
	if hi > last {
		hi = last
	}
	slack -= hi - end

	lo -= slack
	if lo < first {
		lo = first
	}
	return lo, hi
}

// Release frees the data buffer, empties the cells and closes the file. The
// header and layout stay, so the reader can be used again.
func (r *Reader) Release() {
	r.buffer = nil
	r.bufBegin, r.bufEnd = emptyBegin, emptyEnd
	r.cells.Reset()
	r.stats.FullyCached = false
	r.closeFile()
}

// Close releases everything held by the reader.
func (r *Reader) Close() error {
	var err error
	if r.file != nil {
		err = r.file.Close()
		r.file = nil
	}
	r.Release()
	return err
}

func (r *Reader) closeFile() {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
}
