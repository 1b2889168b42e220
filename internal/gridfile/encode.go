package gridfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Element is one grid point: longitude and latitude corrections in
// arc-seconds, longitude positive west.
type Element struct {
	Lng float64
	Lat float64
}

// encodedHeaderRecords is the number of records Encode writes.
const encodedHeaderRecords = 11

// Encode writes a complete grid file. rows[0] is the southern record and each
// row lists its elements west to east. The header's HeaderRecords and
// ByteOrder fields are ignored; order selects the output byte order.
func Encode(w io.Writer, h Header, order binary.ByteOrder, rows [][]Element) error {
	if len(rows) == 0 {
		return fmt.Errorf("encode: no rows")
	}
	width := len(rows[0])
	for i, row := range rows {
		if len(row) != width {
			return fmt.Errorf("encode: row %d has %d elements, want %d", i, len(row), width)
		}
	}

	buf := make([]byte, 0, encodedHeaderRecords*RecordLen+len(rows)*width*RecordLen)

	count := make([]byte, 8)
	order.PutUint32(count, encodedHeaderRecords)
	buf = appendRecord(buf, "NUM_OREC", count)

	floats := []struct {
		key string
		val float64
	}{
		{"N_LAT", h.NorthLat},
		{"S_LAT", h.SouthLat},
		{"E_LONG", h.EastLng},
		{"W_LONG", h.WestLng},
		{"N_GRID", h.LatGrid},
		{"W_GRID", h.LngGrid},
	}
	for _, f := range floats {
		buf = appendRecord(buf, f.key, encodeFloat(order, f.val))
	}

	strs := []struct{ key, val string }{
		{"TYPE", h.Type},
		{"VERSION", h.Version},
		{"DATUM_F", h.FromDatum},
		{"DATUM_T", h.ToDatum},
	}
	for _, s := range strs {
		buf = appendRecord(buf, s.key, []byte(fmt.Sprintf("%-8.8s", s.val)))
	}

	for _, row := range rows {
		for _, e := range row {
			buf = append(buf, encodeFloat(order, e.Lng)...)
			buf = append(buf, encodeFloat(order, e.Lat)...)
		}
	}

	_, err := w.Write(buf)
	return err
}

func appendRecord(buf []byte, key string, val []byte) []byte {
	buf = append(buf, fmt.Sprintf("%-8.8s", key)...)
	return append(buf, val...)
}

func encodeFloat(order binary.ByteOrder, v float64) []byte {
	b := make([]byte, 8)
	order.PutUint64(b, math.Float64bits(v))
	return b
}
