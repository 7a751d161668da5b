// SPDX-License-Identifier: MIT

package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGlobalBurst(t *testing.T) {
	limiter := New(Config{GlobalRate: 1, GlobalBurst: 20})

	allowed := 0
	for i := 0; i < 25; i++ {
		if ok, _ := limiter.Allow(http.MethodGet); ok {
			allowed++
		}
	}
	// Refill during the loop may add one token.
	assert.InDelta(t, 20, allowed, 1)
}

func TestWriteLimitOnlyAffectsWrites(t *testing.T) {
	limiter := New(Config{WriteRate: 0.001, WriteBurst: 2})
	before := testutil.ToFloat64(rateLimitExceeded.WithLabelValues(LimitWrite))

	for i := 0; i < 2; i++ {
		ok, _ := limiter.Allow(http.MethodPost)
		assert.True(t, ok)
	}
	ok, kind := limiter.Allow(http.MethodDelete)
	assert.False(t, ok)
	assert.Equal(t, LimitWrite, kind)

	for i := 0; i < 10; i++ {
		ok, _ := limiter.Allow(http.MethodGet)
		assert.True(t, ok, "reads are not limited by the write bucket")
	}
	assert.Equal(t, before+1, testutil.ToFloat64(rateLimitExceeded.WithLabelValues(LimitWrite)))
}

func TestBurstDefaultsToRate(t *testing.T) {
	assert.Equal(t, 1, burst(0.5, 0))
	assert.Equal(t, 3, burst(2.5, 0))
	assert.Equal(t, 7, burst(2.5, 7))
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{WriteRate: 1}.Enabled())
}

func TestMiddleware(t *testing.T) {
	h := New(Config{GlobalRate: 0.001, GlobalBurst: 1}).Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
