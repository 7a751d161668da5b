// SPDX-License-Identifier: MIT

// Package ratelimit provides process-wide token bucket limits that sit in
// front of the per-client sliding window limiter.
package ratelimit

import (
	"math"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/fondat/fondat-core/internal/errs"
)

// Limit types reported in metrics.
const (
	LimitGlobal = "global"
	LimitWrite  = "write"
)

var rateLimitExceeded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fondat",
		Name:      "ratelimit_exceeded_total",
		Help:      "Total rate limit rejections",
	},
	[]string{"limit_type"},
)

// Config holds token bucket rates in requests per second. A zero rate
// disables that bucket.
type Config struct {
	GlobalRate  rate.Limit
	GlobalBurst int

	// Write limits apply to POST, PUT, PATCH and DELETE in addition to the global limit.
	WriteRate  rate.Limit
	WriteBurst int
}

// Enabled reports whether any bucket is configured.
func (c Config) Enabled() bool {
	return c.GlobalRate > 0 || c.WriteRate > 0
}

// Limiter applies the configured buckets.
type Limiter struct {
	global *rate.Limiter
	write  *rate.Limiter
}

// New creates a limiter. A burst below one is raised to the ceiling of the rate.
func New(cfg Config) *Limiter {
	l := &Limiter{}
	if cfg.GlobalRate > 0 {
		l.global = rate.NewLimiter(cfg.GlobalRate, burst(cfg.GlobalRate, cfg.GlobalBurst))
	}
	if cfg.WriteRate > 0 {
		l.write = rate.NewLimiter(cfg.WriteRate, burst(cfg.WriteRate, cfg.WriteBurst))
	}
	return l
}

func burst(r rate.Limit, b int) int {
	if b > 0 {
		return b
	}
	return int(math.Max(1, math.Ceil(float64(r))))
}

// Allow reports whether a request with the given method may proceed, and
// which bucket rejected it otherwise.
func (l *Limiter) Allow(method string) (bool, string) {
	if l.global != nil && !l.global.Allow() {
		rateLimitExceeded.WithLabelValues(LimitGlobal).Inc()
		return false, LimitGlobal
	}
	if l.write != nil && isWrite(method) && !l.write.Allow() {
		rateLimitExceeded.WithLabelValues(LimitWrite).Inc()
		return false, LimitWrite
	}
	return true, ""
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Middleware rejects requests over the limit with 429.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ok, _ := l.Allow(r.Method); !ok {
				w.Header().Set("Retry-After", "1")
				errs.WriteJSON(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
