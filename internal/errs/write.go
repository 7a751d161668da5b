// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package errs

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Body is the JSON error response body.
type Body struct {
	Error  int    `json:"error"`
	Detail string `json:"detail"`
}

// WriteJSON writes an error response with the given status and detail.
func WriteJSON(w http.ResponseWriter, status int, detail string) {
	b, _ := json.Marshal(Body{Error: status, Detail: detail})
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// Write writes err as an error response. Errors without a status are written as 500.
func Write(w http.ResponseWriter, err error) {
	status, ok := Status(err)
	if !ok {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, Detail(err))
}
