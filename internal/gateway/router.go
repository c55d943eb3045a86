// ABOUTME: Router mapping kvgate HTTP routes to store handlers
// ABOUTME: Serves /health, GET /api/kv/{key}, and POST /api/kv independent of auth state

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/2389/kvgate/internal/auth"
	"github.com/2389/kvgate/internal/store"
)

// Route paths
const (
	healthPath = "/health"
	kvPath     = "/api/kv"
	kvKeyPath  = "/api/kv/{key}"
)

// Response bodies
const (
	healthyMessage   = "OK"
	keyNotFound      = "The specified key does not exist."
	storedMessage    = "The key-value pairs were stored successfully."
	malformedMessage = "The request body must be a JSON object of string keys to string values."
	noRouteMessage   = "The requested resource does not exist."
	badMethodMessage = "The request method is not supported for this resource."
)

// errMalformedBody is returned when a POST body is not a JSON object of strings.
var errMalformedBody = errors.New("malformed request body")

// KVStore is the subset of store operations the router needs.
type KVStore interface {
	Set(entries map[string]string)
	Get(key string) (string, bool)
}

var _ KVStore = (*store.Store)(nil)

// Router dispatches requests by method and path. Authentication is applied
// upstream by the Gateway.
type Router struct {
	mux    chi.Router
	store  KVStore
	logger *slog.Logger
}

// NewRouter creates a Router over the given store.
func NewRouter(s KVStore, logger *slog.Logger) *Router {
	rt := &Router{
		mux:    chi.NewRouter(),
		store:  s,
		logger: logger,
	}

	rt.mux.NotFound(rt.handleNoRoute)
	rt.mux.MethodNotAllowed(rt.handleBadMethod)

	rt.mux.Get(healthPath, rt.handleHealth)
	rt.mux.Head(healthPath, rt.handleHealth)
	rt.mux.Get(kvKeyPath, rt.handleGet)
	rt.mux.Post(kvPath, rt.handleSet)

	return rt
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// handleHealth returns 200 OK unconditionally.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, healthyMessage)
}

func (rt *Router) handleNoRoute(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusNotFound, noRouteMessage)
}

func (rt *Router) handleBadMethod(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusMethodNotAllowed, badMethodMessage)
}

// handleGet handles GET /api/kv/{key}.
func (rt *Router) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	// chi matches on RawPath when the request carries one, leaving the key escaped
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(key); err == nil {
			key = unescaped
		}
	}

	value, ok := rt.store.Get(key)
	if !ok {
		rt.logger.DebugContext(r.Context(), "key not found", "key", key)
		writeText(w, http.StatusNotFound, keyNotFound)
		return
	}

	writeText(w, http.StatusOK, value)
}

// handleSet handles POST /api/kv. The whole body is validated before any
// entry reaches the store.
func (rt *Router) handleSet(w http.ResponseWriter, r *http.Request) {
	entries, err := decodeEntries(r.Body)
	if err != nil {
		rt.logger.InfoContext(r.Context(), "rejected request body", "error", err)
		writeText(w, http.StatusBadRequest, malformedMessage)
		return
	}

	rt.store.Set(entries)
	rt.logger.DebugContext(r.Context(), "stored entries",
		"count", len(entries),
		"subject", auth.SubjectFromContext(r.Context()),
	)
	writeText(w, http.StatusCreated, storedMessage)
}

// decodeEntries parses a JSON object of string keys to string values. JSON
// null, non-object documents, non-string values, and trailing data are rejected.
func decodeEntries(body io.Reader) (map[string]string, error) {
	dec := json.NewDecoder(body)

	var entries map[string]string
	if err := dec.Decode(&entries); err != nil {
		return nil, errors.Join(errMalformedBody, err)
	}
	if entries == nil {
		return nil, errors.Join(errMalformedBody, errors.New("body is null"))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.Join(errMalformedBody, errors.New("unexpected data after JSON object"))
	}

	return entries, nil
}

// writeText writes a plain-text response without a trailing newline so bodies
// match stored values exactly.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
