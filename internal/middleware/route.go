// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
)

// unmatchedRoute labels requests that never resolved to a route.
const unmatchedRoute = "unmatched"

type routeKey struct{}

type routeHolder struct {
	pattern atomic.Pointer[string]
}

func withRouteHolder(r *http.Request) (*http.Request, *routeHolder) {
	if h, ok := r.Context().Value(routeKey{}).(*routeHolder); ok {
		return r, h
	}
	h := &routeHolder{}
	return r.WithContext(context.WithValue(r.Context(), routeKey{}, h)), h
}

// SetRoute records the matched route pattern (for example /notes/{id}) for
// metrics and tracing middleware further out in the stack.
func SetRoute(ctx context.Context, pattern string) {
	if h, ok := ctx.Value(routeKey{}).(*routeHolder); ok {
		h.pattern.Store(&pattern)
	}
}

// route returns the pattern recorded by SetRoute, else chi's route pattern.
func route(r *http.Request, h *routeHolder) string {
	if p := h.pattern.Load(); p != nil && *p != "" {
		return *p
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}
