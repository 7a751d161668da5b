// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package security evaluates operation security requirements.
package security

import (
	"context"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/fondat/fondat-core/internal/errs"
)

// Requirement decides whether the caller in ctx may perform an operation.
// Authorize returns nil to grant, an Unauthorized or Forbidden errs.Error to deny,
// or any other error when the decision itself failed.
type Requirement interface {
	Authorize(ctx context.Context) error
}

// Documented is a Requirement that can describe itself in an OpenAPI document,
// as a mapping of security scheme name to required scopes.
type Documented interface {
	Requirement
	SecurityRequirement() openapi3.SecurityRequirement
}

// Func adapts a function to a Requirement.
type Func func(ctx context.Context) error

func (f Func) Authorize(ctx context.Context) error { return f(ctx) }

// Scheme is an authentication mechanism. Its middleware authenticates incoming
// requests and records the principal in the request context; it never rejects.
type Scheme interface {
	Name() string
	Spec() *openapi3.SecurityScheme
	Middleware() func(http.Handler) http.Handler
}

// Authorize evaluates reqs in order. The first requirement to pass grants access.
// Errors other than Unauthorized/Forbidden are returned immediately. When every
// requirement denies, the first Forbidden is returned if there is one, otherwise
// the first Unauthorized. No requirements grants access.
func Authorize(ctx context.Context, reqs []Requirement) error {
	var denied error
	for _, req := range reqs {
		err := req.Authorize(ctx)
		switch {
		case err == nil:
			return nil
		case errs.IsForbidden(err):
			if !errs.IsForbidden(denied) {
				denied = err
			}
		case errs.IsUnauthorized(err):
			if denied == nil {
				denied = err
			}
		default:
			return err
		}
	}
	return denied
}
