package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/beetlebugorg/gridshift/internal/grid"
	"github.com/beetlebugorg/gridshift/internal/gridtest"
	"github.com/beetlebugorg/gridshift/pkg/gridshift"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	text := gridtest.WriteText(t, dir, "gr3df97a.txt", gridtest.Text{
		SouthWest: grid.LL{Lng: -5.5, Lat: 41},
		Cols:      16, Rows: 12,
		DeltaLng: 1, DeltaLat: 1,
		Value: func(c, r int) [3]float64 { return gridtest.MeanTranslation },
	})

	reg := prometheus.NewRegistry()
	opts := gridshift.DefaultResolverOptions()
	opts.Metrics = gridshift.NewCollector(reg, "gridshift")
	opts.Fallback = gridshift.MeanTranslation{}
	r, err := gridshift.NewResolver([]gridshift.EntrySpec{{Path: text}}, opts)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewRouter(NewHandler(r, logger), reg))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, code int, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != code {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, code)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
}

func TestForwardEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var resp ConversionResponse
	getJSON(t, srv.URL+"/v1/forward?lng=2.3372&lat=48.8364&hgt=40", http.StatusOK, &resp)
	if resp.Status != "success" || resp.Code != 0 {
		t.Errorf("Expected success, got %s (%d)", resp.Status, resp.Code)
	}
	if resp.Source != "gr3df97a.txt" {
		t.Errorf("Expected source gr3df97a.txt, got %q", resp.Source)
	}
	if resp.Output == resp.Input {
		t.Error("Expected the point to move")
	}

	getJSON(t, srv.URL+"/v1/inverse?lng=30&lat=10", http.StatusOK, &resp)
	if resp.Status != "fallback" || resp.Code != 2 {
		t.Errorf("Expected fallback, got %s (%d)", resp.Status, resp.Code)
	}
}

func TestBadRequests(t *testing.T) {
	srv := newTestServer(t)
	for _, q := range []string{"", "?lng=2", "?lng=abc&lat=48", "?lng=2&lat=95"} {
		var e ErrorResponse
		getJSON(t, srv.URL+"/v1/forward"+q, http.StatusBadRequest, &e)
		if e.Code != http.StatusBadRequest || e.Message == "" {
			t.Errorf("%q: unexpected error body %+v", q, e)
		}
	}
}

func TestSourceAndEntries(t *testing.T) {
	srv := newTestServer(t)

	var src SourceResponse
	getJSON(t, srv.URL+"/v1/source?lng=30&lat=10", http.StatusOK, &src)
	if !src.Covered || src.Source != gridshift.MeanTranslationName {
		t.Errorf("Expected fallback source, got %+v", src)
	}

	var entries []gridshift.EntryInfo
	getJSON(t, srv.URL+"/v1/entries", http.StatusOK, &entries)
	if len(entries) != 1 || entries[0].Format != "text-3d" {
		t.Errorf("Unexpected entries %+v", entries)
	}

	getJSON(t, srv.URL+"/health", http.StatusOK, nil)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	getJSON(t, srv.URL+"/v1/forward?lng=2&lat=48", http.StatusOK, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `gridshift_conversions_total{direction="forward",status="success"} 1`) {
		t.Errorf("Conversion counter missing from /metrics:\n%s", body)
	}
}
