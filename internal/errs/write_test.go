// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package errs

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrite(t *testing.T) {
	w := httptest.NewRecorder()
	Write(w, NotFound("no such note"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":404,"detail":"no such note"}`, w.Body.String())
}

func TestWrite_PlainError(t *testing.T) {
	w := httptest.NewRecorder()
	Write(w, errors.New("database password is hunter2"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":500,"detail":"Internal Server Error"}`, w.Body.String())
}
