// Package server exposes transport.Services over HTTP: JSON REST routes per
// service path and a WebSocket hub broadcasting their real-time events.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/svcstore/internal/ir"
	"github.com/roach88/svcstore/internal/queryir"
	"github.com/roach88/svcstore/internal/transport"
)

const (
	// QueryParam carries the JSON-encoded query document.
	QueryParam = "query"

	maxBodyBytes = 1 << 20
)

// ReservedNames are the first path segments of the fixed GET routes. A
// service registered under one of them would be unreachable by find.
var ReservedNames = []string{"health", "metrics", "services", "ws"}

// IsReserved reports whether name collides with a fixed route.
func IsReserved(name string) bool {
	return slices.Contains(ReservedNames, strings.Trim(name, "/"))
}

// Handler routes REST calls to registered services.
type Handler struct {
	mu       sync.RWMutex
	services map[string]transport.Service
	cancels  []func()

	mux     *http.ServeMux
	hub     *Hub
	metrics http.Handler
	log     *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.log = l
	}
}

// WithMetrics mounts a metrics handler at /metrics.
func WithMetrics(m http.Handler) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// New creates a Handler and wires up all routes.
func New(opts ...Option) *Handler {
	h := &Handler{
		services: map[string]transport.Service{},
		mux:      http.NewServeMux(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.hub = NewHub(h.log)
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Hub returns the WebSocket hub mounted at /ws.
func (h *Handler) Hub() *Hub {
	return h.hub
}

// Register exposes svc under name. Services that emit events are attached
// to the hub.
func (h *Handler) Register(name string, svc transport.Service) error {
	name = strings.Trim(name, "/")
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("invalid service name %q", name)
	}
	if IsReserved(name) {
		return fmt.Errorf("service name %q is reserved", name)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.services[name]; ok {
		return fmt.Errorf("service %q already registered", name)
	}
	h.services[name] = svc
	if em, ok := svc.(transport.Emitter); ok {
		h.cancels = append(h.cancels, h.hub.Attach(em))
	}
	return nil
}

// Close detaches every service from the hub and disconnects its clients.
func (h *Handler) Close() {
	h.mu.Lock()
	cancels := h.cancels
	h.cancels = nil
	h.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	h.hub.Close()
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /health", h.health)
	h.mux.HandleFunc("GET /services", h.listServices)
	h.mux.Handle("GET /ws", h.hub)
	h.mux.HandleFunc("GET /metrics", h.serveMetrics)

	h.mux.HandleFunc("GET /{service}", h.find)
	h.mux.HandleFunc("POST /{service}", h.create)
	h.mux.HandleFunc("GET /{service}/{id}", h.get)
	h.mux.HandleFunc("PUT /{service}/{id}", h.update)
	h.mux.HandleFunc("PATCH /{service}/{id}", h.patch)
	h.mux.HandleFunc("DELETE /{service}/{id}", h.remove)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listServices(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	names := make([]string, 0, len(h.services))
	for name := range h.services {
		names = append(names, name)
	}
	h.mu.RUnlock()
	slices.Sort(names)
	writeJSON(w, http.StatusOK, names)
}

func (h *Handler) serveMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		h.fail(w, r, transport.NotFound("metrics are not enabled"))
		return
	}
	h.metrics.ServeHTTP(w, r)
}

func (h *Handler) find(w http.ResponseWriter, r *http.Request) {
	svc, params, ok := h.prepare(w, r)
	if !ok {
		return
	}
	res, err := svc.Find(r.Context(), params)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	svc, params, ok := h.prepare(w, r)
	if !ok {
		return
	}
	rec, err := svc.Get(r.Context(), r.PathValue("id"), params)
	h.reply(w, r, http.StatusOK, rec, err)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	svc, params, ok := h.prepare(w, r)
	if !ok {
		return
	}
	data, ok := h.body(w, r)
	if !ok {
		return
	}
	rec, err := svc.Create(r.Context(), data, params)
	h.reply(w, r, http.StatusCreated, rec, err)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	svc, params, ok := h.prepare(w, r)
	if !ok {
		return
	}
	data, ok := h.body(w, r)
	if !ok {
		return
	}
	rec, err := svc.Update(r.Context(), r.PathValue("id"), data, params)
	h.reply(w, r, http.StatusOK, rec, err)
}

func (h *Handler) patch(w http.ResponseWriter, r *http.Request) {
	svc, params, ok := h.prepare(w, r)
	if !ok {
		return
	}
	data, ok := h.body(w, r)
	if !ok {
		return
	}
	rec, err := svc.Patch(r.Context(), r.PathValue("id"), data, params)
	h.reply(w, r, http.StatusOK, rec, err)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	svc, params, ok := h.prepare(w, r)
	if !ok {
		return
	}
	rec, err := svc.Remove(r.Context(), r.PathValue("id"), params)
	h.reply(w, r, http.StatusOK, rec, err)
}

// prepare resolves the service and decodes the query parameter.
func (h *Handler) prepare(w http.ResponseWriter, r *http.Request) (transport.Service, ir.Params, bool) {
	name := r.PathValue("service")
	h.mu.RLock()
	svc, ok := h.services[name]
	h.mu.RUnlock()
	if !ok {
		h.fail(w, r, transport.NotFound("Page not found: /%s", name))
		return nil, ir.Params{}, false
	}
	params := ir.Params{}
	if raw := r.URL.Query().Get(QueryParam); raw != "" {
		q, err := queryir.DecodeQuery([]byte(raw))
		if err != nil {
			h.fail(w, r, transport.BadRequest("%s", err.Error()))
			return nil, ir.Params{}, false
		}
		params.Query = q
	}
	return svc, params, true
}

func (h *Handler) body(w http.ResponseWriter, r *http.Request) (ir.Record, bool) {
	data, err := readJSON(r)
	if err != nil {
		h.fail(w, r, transport.BadRequest("%s", err.Error()))
		return nil, false
	}
	return data, true
}

func (h *Handler) reply(w http.ResponseWriter, r *http.Request, status int, rec ir.Record, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, status, rec)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	te := transport.AsError(err)
	if te.Code >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		h.log.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "code", te.Code, "error", err)
	}
	writeJSON(w, te.Code, te)
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readJSON decodes a record body with integral numbers kept as int.
func readJSON(r *http.Request) (ir.Record, error) {
	defer r.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(raw) > maxBodyBytes {
		return nil, errors.New("request body too large")
	}
	if len(raw) == 0 {
		return nil, errors.New("request body required")
	}
	return ir.DecodeRecord(raw)
}
