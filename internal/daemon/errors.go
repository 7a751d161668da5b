// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import "errors"

var (
	// ErrMissingAPIHandler is returned when API handler is not provided
	ErrMissingAPIHandler = errors.New("API handler is required")

	// ErrMissingManager is returned when the App has no Manager
	ErrMissingManager = errors.New("manager is required")

	// ErrManagerNotStarted is returned when Shutdown runs before Start
	ErrManagerNotStarted = errors.New("manager not started")
)
