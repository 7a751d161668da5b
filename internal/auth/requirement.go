// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package auth

import (
	"context"
	"slices"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/fondat/fondat-core/internal/errs"
	"github.com/fondat/fondat-core/internal/security"
)

type requirement struct {
	scope   string
	schemes []string
}

// RequireAuthenticated passes when the context carries a principal.
// schemes name the security schemes documented for the requirement; when set,
// a principal authenticated by any other scheme does not satisfy it.
func RequireAuthenticated(schemes ...string) security.Documented {
	return &requirement{schemes: schemes}
}

// RequireScope passes when the context carries a principal holding scope.
func RequireScope(scope string, schemes ...string) security.Documented {
	return &requirement{scope: scope, schemes: schemes}
}

func (r *requirement) Authorize(ctx context.Context) error {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return errs.Unauthorized("authentication required")
	}
	if p.Scheme != "" && len(r.schemes) > 0 && !slices.Contains(r.schemes, p.Scheme) {
		return errs.Unauthorized("scheme %s not accepted", p.Scheme)
	}
	if r.scope != "" && !p.HasScope(r.scope) {
		return errs.Forbidden("missing scope: %s", r.scope)
	}
	return nil
}

func (r *requirement) SecurityRequirement() openapi3.SecurityRequirement {
	req := openapi3.NewSecurityRequirement()
	for _, name := range r.schemes {
		if r.scope != "" {
			req.Authenticate(name, r.scope)
		} else {
			req.Authenticate(name)
		}
	}
	return req
}
