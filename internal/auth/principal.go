// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package auth provides principals, token authentication and stock security requirements.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"
)

// Principal represents the authenticated identity of a caller.
type Principal struct {
	// ID is the stable, unique identifier for the caller.
	// It is either the explicit User or a hash of the token.
	ID string

	// Token is the raw credential; never logged.
	Token string `json:"-"`

	// Scopes are the permissions granted to this principal.
	Scopes []string

	// User is the human-readable username if known.
	User string

	// Scheme names the security scheme that authenticated the caller. It is
	// empty for principals placed in the context directly.
	Scheme string
}

// NewPrincipal creates a Principal from a token and optional user/scopes.
func NewPrincipal(token string, user string, scopes []string) *Principal {
	id := user
	if id == "" {
		// "t_" prefix to distinguish from potential username collisions
		hash := sha256.Sum256([]byte(token))
		id = "t_" + hex.EncodeToString(hash[:])[:16]
	}

	return &Principal{
		ID:     id,
		Token:  token,
		Scopes: scopes,
		User:   user,
	}
}

// HasScope reports whether the principal was granted scope. The "*" scope grants all.
func (p *Principal) HasScope(scope string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Scopes, scope) || slices.Contains(p.Scopes, "*")
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal in ctx, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
