// ABOUTME: HTTP middleware for request ids, access logging, and request metrics
// ABOUTME: Wraps the router so every response is logged and counted once

package gateway

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// otherMethodLabel replaces any method outside the standard set so label
// cardinality stays bounded.
const otherMethodLabel = "other"

const internalErrorMessage = "The server encountered an internal error."

// unroutedLabel is the metrics route for requests that never matched a route,
// including those rejected by the gate.
const unroutedLabel = "unrouted"

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by the request id middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestID assigns each request an id, reusing a well-formed inbound one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// observe logs and counts every request after it completes.
func (g *Gateway) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := routeLabel(r)
		g.metrics.ObserveRequest(methodLabel(r.Method), route, status, elapsed)

		// health probes are frequent; keep them out of info logs
		level := g.logger.Info
		if route == healthPath {
			level = g.logger.Debug
		}
		level("request",
			"request_id", RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
		)
	})
}

func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
		http.MethodHead, http.MethodOptions, http.MethodPatch:
		return method
	}
	return otherMethodLabel
}

// recoverPanics turns a handler panic into a logged 500 with a plain-text body.
func (g *Gateway) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			g.logger.ErrorContext(r.Context(), "handler panic",
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			writeText(w, http.StatusInternalServerError, internalErrorMessage)
		}()
		next.ServeHTTP(w, r)
	})
}

func routeLabel(r *http.Request) string {
	pattern := chi.RouteContext(r.Context()).RoutePattern()
	if pattern == "" || strings.HasSuffix(pattern, "*") {
		return unroutedLabel
	}
	return pattern
}

// gateExceptHealth applies the auth gate to every request except liveness
// probes.
func (g *Gateway) gateExceptHealth(next http.Handler) http.Handler {
	gated := g.gate.Middleware(g.logger)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == healthPath {
			next.ServeHTTP(w, r)
			return
		}
		gated.ServeHTTP(w, r)
	})
}
