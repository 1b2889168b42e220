package gridfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/beetlebugorg/gridshift/internal/grid"
)

func sampleHeader() Header {
	return Header{
		NorthLat:  51.5 * 3600,
		SouthLat:  41 * 3600,
		EastLng:   -10 * 3600,
		WestLng:   5.5 * 3600,
		LatGrid:   0.1 * 3600,
		LngGrid:   0.1 * 3600,
		Type:      "SECONDS",
		Version:   "NTv1",
		FromDatum: "NTF",
		ToDatum:   "RGF93",
	}
}

func encodeSample(t *testing.T, order binary.ByteOrder) []byte {
	t.Helper()
	rows := make([][]Element, 106)
	for i := range rows {
		rows[i] = make([]Element, 156)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, sampleHeader(), order, rows); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeHeaderByteOrders(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		t.Run(order.String(), func(t *testing.T) {
			h, err := DecodeHeader(bytes.NewReader(encodeSample(t, order)))
			if err != nil {
				t.Fatalf("DecodeHeader: %v", err)
			}
			if h.ByteOrder != order {
				t.Errorf("Expected byte order %v, got %v", order, h.ByteOrder)
			}
			if h.HeaderRecords != 11 {
				t.Errorf("Expected 11 header records, got %d", h.HeaderRecords)
			}
			want := sampleHeader()
			if h.NorthLat != want.NorthLat || h.WestLng != want.WestLng || h.LatGrid != want.LatGrid {
				t.Errorf("Header floats mismatch: got %+v", h)
			}
			if h.FromDatum != "NTF" || h.ToDatum != "RGF93" || h.Version != "NTv1" {
				t.Errorf("Header strings mismatch: got %q %q %q", h.FromDatum, h.ToDatum, h.Version)
			}
		})
	}
}

func TestLayout(t *testing.T) {
	h, err := DecodeHeader(bytes.NewReader(encodeSample(t, binary.BigEndian)))
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	l, err := h.Layout(0)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if l.Coverage.SouthWest != (grid.LL{Lng: -5.5, Lat: 41}) {
		t.Errorf("Expected SW (-5.5,41), got %+v", l.Coverage.SouthWest)
	}
	if l.Coverage.NorthEast != (grid.LL{Lng: 10, Lat: 51.5}) {
		t.Errorf("Expected NE (10,51.5), got %+v", l.Coverage.NorthEast)
	}
	if l.Elements != 156 || l.Records != 106 {
		t.Errorf("Expected 156x106 grid, got %dx%d", l.Elements, l.Records)
	}
	if l.Coverage.Density != 0.1 {
		t.Errorf("Expected natural density 0.1, got %f", l.Coverage.Density)
	}
	if l.DataEnd != l.FirstData+106*156*16 {
		t.Errorf("DataEnd = %d, want %d", l.DataEnd, l.FirstData+106*156*16)
	}

	overridden, err := h.Layout(0.5)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if overridden.Coverage.Density != 0.5 {
		t.Errorf("Expected density override 0.5, got %f", overridden.Coverage.Density)
	}
}

func TestDecodeHeaderMalformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b []byte)
		want   error
	}{
		{
			name:   "wrong first key",
			mutate: func(b []byte) { copy(b[0:8], "GARBAGE ") },
			want:   grid.ErrMalformedHeader,
		},
		{
			name:   "implausible record count",
			mutate: func(b []byte) { copy(b[8:12], []byte{0, 0, 0, 0}) },
			want:   grid.ErrMalformedHeader,
		},
		{
			name: "missing required key",
			mutate: func(b []byte) {
				// Rename N_GRID (record 5).
				copy(b[5*RecordLen:5*RecordLen+8], "X_GRID  ")
			},
			want: grid.ErrMalformedHeader,
		},
		{
			name: "zero spacing",
			mutate: func(b []byte) {
				copy(b[6*RecordLen+8:7*RecordLen], make([]byte, 8))
			},
			want: grid.ErrMalformedHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := encodeSample(t, binary.BigEndian)
			tt.mutate(b)
			if _, err := DecodeHeader(bytes.NewReader(b)); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDecodeHeaderExtents(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(h *Header)
	}{
		{"west beyond antimeridian", func(h *Header) { h.WestLng = 648001 }},
		{"east beyond antimeridian", func(h *Header) { h.EastLng = -648001 }},
		{"north beyond pole", func(h *Header) { h.NorthLat = 324001 }},
		{"south beyond pole", func(h *Header) { h.SouthLat = -324001 }},
		{"huge longitude", func(h *Header) { h.WestLng = 1 << 49; h.EastLng = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := sampleHeader()
			tt.mutate(&h)
			var buf bytes.Buffer
			if err := Encode(&buf, h, binary.BigEndian, [][]Element{{{}, {}}, {{}, {}}}); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if _, err := DecodeHeader(&buf); !errors.Is(err, grid.ErrMalformedHeader) {
				t.Errorf("Expected ErrMalformedHeader, got %v", err)
			}
		})
	}
}

func TestLayoutBoundsGridPoints(t *testing.T) {
	h := sampleHeader()
	h.WestLng, h.EastLng = 648000, -648000
	h.LngGrid = 1.0 / 1024
	if err := h.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, err := h.Layout(0); !errors.Is(err, grid.ErrMalformedHeader) {
		t.Errorf("Expected ErrMalformedHeader for %g second spacing, got %v", h.LngGrid, err)
	}

	h = sampleHeader()
	h.NorthLat, h.SouthLat = 324000, -324000
	h.LatGrid = 1.0 / 1024
	if _, err := h.Layout(0); !errors.Is(err, grid.ErrMalformedHeader) {
		t.Errorf("Expected ErrMalformedHeader for too many records, got %v", err)
	}
}

func TestDecodeHeaderTruncated(t *testing.T) {
	b := encodeSample(t, binary.BigEndian)
	for _, n := range []int{0, 10, RecordLen, 5 * RecordLen} {
		if _, err := DecodeHeader(bytes.NewReader(b[:n])); !errors.Is(err, grid.ErrTruncatedHeader) {
			t.Errorf("%d bytes: expected ErrTruncatedHeader, got %v", n, err)
		}
	}
}

func TestGrowWindow(t *testing.T) {
	const rec = 10
	tests := []struct {
		name           string
		begin, end     int64
		capacity       int64
		first, last    int64
		wantLo, wantHi int64
	}{
		{"centered", 100, 120, 60, 0, 200, 80, 140},
		{"clamped at start", 0, 20, 60, 0, 200, 0, 60},
		{"clamped at end", 180, 200, 60, 0, 200, 140, 200},
		{"capacity equals span", 50, 70, 20, 0, 200, 50, 70},
		{"whole file", 50, 70, 200, 0, 200, 0, 200},
		{"odd slack rounds back to records", 100, 120, 50, 0, 200, 90, 140},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := growWindow(tt.begin, tt.end, tt.capacity, tt.first, tt.last, rec)
			if lo != tt.wantLo || hi != tt.wantHi {
				t.Errorf("growWindow = [%d,%d), want [%d,%d)", lo, hi, tt.wantLo, tt.wantHi)
			}
			if lo > tt.begin || hi < tt.end {
				t.Errorf("window [%d,%d) does not contain [%d,%d)", lo, hi, tt.begin, tt.end)
			}
			if hi-lo > tt.capacity {
				t.Errorf("window size %d exceeds capacity %d", hi-lo, tt.capacity)
			}
		})
	}
}
