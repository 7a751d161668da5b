// SPDX-License-Identifier: MIT

// Package daemon runs the HTTP server and the long-lived runtime around it.
package daemon

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fondat/fondat-core/internal/config"
)

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// Server configures the listener and timeouts.
	Server config.ServerConfig

	// APIHandler is the HTTP handler for the API server
	APIHandler http.Handler
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
