// Package httpapi serves a resolver over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beetlebugorg/gridshift/pkg/gridshift"
)

// Handler exposes conversion endpoints. Requests share one resolver, so
// conversions are serialized.
type Handler struct {
	mu       sync.Mutex
	resolver *gridshift.Resolver
	logger   *slog.Logger
}

// NewHandler creates a handler over r.
func NewHandler(r *gridshift.Resolver, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{resolver: r, logger: logger}
}

// ConversionResponse is the body of /v1/forward and /v1/inverse.
type ConversionResponse struct {
	Input  gridshift.Point `json:"input"`
	Output gridshift.Point `json:"output"`
	Status string          `json:"status"`
	Code   int             `json:"code"`
	Source string          `json:"source,omitempty"`
}

// SourceResponse is the body of /v1/source.
type SourceResponse struct {
	Source  string `json:"source"`
	Covered bool   `json:"covered"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// RegisterRoutes adds the API routes to router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/forward", h.Forward).Methods("GET")
	router.HandleFunc("/v1/inverse", h.Inverse).Methods("GET")
	router.HandleFunc("/v1/source", h.Source).Methods("GET")
	router.HandleFunc("/v1/entries", h.Entries).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}

// NewRouter builds a router with the API routes and, when gatherer is
// non-nil, a /metrics endpoint.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) *mux.Router {
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return router
}

// Forward handles GET /v1/forward?lng=&lat=&hgt=
func (h *Handler) Forward(w http.ResponseWriter, r *http.Request) {
	h.convert(w, r, "forward")
}

// Inverse handles GET /v1/inverse?lng=&lat=&hgt=
func (h *Handler) Inverse(w http.ResponseWriter, r *http.Request) {
	h.convert(w, r, "inverse")
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request, direction string) {
	p, err := parsePoint(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	var (
		out    gridshift.Point
		status gridshift.Status
	)
	if direction == "inverse" {
		out, status, err = h.resolver.Inverse(p)
	} else {
		out, status, err = h.resolver.Forward(p)
	}
	source, _ := h.resolver.Source(p)
	h.mu.Unlock()

	if err != nil {
		h.logger.Error("conversion failed", "direction", direction, "point", p, "error", err)
		h.sendError(w, r, err.Error(), http.StatusInternalServerError)
		return
	}
	h.sendJSON(w, http.StatusOK, ConversionResponse{
		Input:  p,
		Output: out,
		Status: status.String(),
		Code:   int(status),
		Source: source,
	})
}

// Source handles GET /v1/source?lng=&lat=
func (h *Handler) Source(w http.ResponseWriter, r *http.Request) {
	p, err := parsePoint(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	source, ok := h.resolver.Source(p)
	h.mu.Unlock()
	h.sendJSON(w, http.StatusOK, SourceResponse{Source: source, Covered: ok})
}

// Entries handles GET /v1/entries
func (h *Handler) Entries(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	entries := h.resolver.Entries()
	infos := make([]gridshift.EntryInfo, len(entries))
	for i, e := range entries {
		infos[i] = e.Info()
	}
	h.mu.Unlock()
	h.sendJSON(w, http.StatusOK, infos)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var errMissingCoordinate = errors.New("lng and lat are required")

func parsePoint(r *http.Request) (gridshift.Point, error) {
	q := r.URL.Query()
	if q.Get("lng") == "" || q.Get("lat") == "" {
		return gridshift.Point{}, errMissingCoordinate
	}
	var p gridshift.Point
	fields := []struct {
		name string
		dst  *float64
	}{
		{"lng", &p.Lng},
		{"lat", &p.Lat},
		{"hgt", &p.Hgt},
	}
	for _, f := range fields {
		s := q.Get(f.name)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return gridshift.Point{}, fmt.Errorf("invalid %s %q", f.name, s)
		}
		*f.dst = v
	}
	if !(gridshift.LL{Lng: p.Lng, Lat: p.Lat}).Valid() {
		return gridshift.Point{}, fmt.Errorf("coordinate out of range: lng=%g lat=%g", p.Lng, p.Lat)
	}
	return p, nil
}

func (h *Handler) sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}

func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, message string, code int) {
	h.logger.Warn("request failed", "path", r.URL.Path, "code", code, "message", message)
	h.sendJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}
