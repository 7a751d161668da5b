// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_LogsRequestHandled(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf, Level: "info"})
	defer Configure(Config{})

	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/pot", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "rid-1"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	var found map[string]any
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		if entry[FieldEvent] == "request.handled" {
			found = entry
		}
	}
	require.NotNil(t, found, "expected a request.handled event")
	assert.Equal(t, "warn", found["level"])
	assert.Equal(t, float64(http.StatusTeapot), found[FieldStatus])
	assert.Equal(t, float64(len("short and stout")), found[FieldBytes])
	assert.Equal(t, "rid-1", found[FieldRequestID])
	assert.Equal(t, "/pot", found[FieldPath])
}
