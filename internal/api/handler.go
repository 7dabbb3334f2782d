package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eugenenazirov/confloader/internal/registry"
	"github.com/eugenenazirov/confloader/internal/schema"
)

// Handler exposes a loaded registry over HTTP. The registry must not be
// reloaded while the handler is serving.
type Handler struct {
	registry *registry.Registry
	schema   *schema.Schema
	source   string

	clock    func() time.Time
	loadedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithSchema enables type checks and default conversion types from s.
func WithSchema(s *schema.Schema) HandlerOption {
	return func(h *Handler) {
		h.schema = s
	}
}

// WithSource records the root configuration path reported by the health endpoint.
func WithSource(path string) HandlerOption {
	return func(h *Handler) {
		h.source = path
	}
}

// NewHandler constructs a Handler over reg.
func NewHandler(reg *registry.Registry, opts ...HandlerOption) *Handler {
	h := &Handler{
		registry: reg,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.loadedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
		LoadedAt:  h.loadedAt,
		Source:    h.source,
		Keys:      h.registry.Len(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	_ = r
	entries := h.registry.Entries()
	resp := entriesResponse{
		Entries: make([]entryResponse, 0, len(entries)),
		Count:   len(entries),
	}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, entryResponse{Key: entry.Key(), Value: entry.Value()})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	typ := h.conversionFor(key, r.URL.Query().Get("type"))
	noteEntry(r.Context(), key, string(typ))

	entry, err := h.registry.Get(key)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	typed, err := schema.Convert(entry, typ)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	resp := typedEntryResponse{
		Key:   entry.Key(),
		Value: entry.Value(),
		Type:  string(typ),
		Typed: typed,
	}
	writeJSON(w, http.StatusOK, resp)
}

// conversionFor picks the requested type, then the schema's declared type,
// then string.
func (h *Handler) conversionFor(key, requested string) schema.Type {
	if requested != "" {
		return schema.Type(requested)
	}
	if h.schema != nil {
		if decl, ok := h.schema.Lookup(key); ok && decl.Type != "" {
			return decl.Type
		}
	}
	return schema.TypeString
}

func (h *Handler) handleDump(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := h.registry.WriteTo(&buf); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := checkResponse{OK: true, Errors: []string{}}
	if h.schema != nil {
		for _, err := range h.schema.Check(h.registry) {
			resp.Errors = append(resp.Errors, err.Error())
		}
		resp.OK = len(resp.Errors) == 0
	}
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	LoadedAt  time.Time `json:"loadedAt"`
	Source    string    `json:"source,omitempty"`
	Keys      int       `json:"keys"`
}

type entryResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type entriesResponse struct {
	Entries []entryResponse `json:"entries"`
	Count   int             `json:"count"`
}

type typedEntryResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Type  string `json:"type"`
	Typed any    `json:"typed"`
}

type checkResponse struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}
