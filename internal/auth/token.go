// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package auth

import (
	"context"
	"crypto/subtle"
	"strings"
)

// AuthorizeToken returns true if got matches expected using constant-time comparison.
// Empty tokens are always treated as unauthorized.
func AuthorizeToken(got, expected string) bool {
	if strings.TrimSpace(expected) == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// TokenGrant describes one configured token.
type TokenGrant struct {
	Token  string   `yaml:"token"`
	User   string   `yaml:"user"`
	Scopes []string `yaml:"scopes"`
}

// StaticTokens authenticates against a fixed set of configured tokens.
type StaticTokens struct {
	grants []TokenGrant
}

// NewStaticTokens returns an authenticator for grants; grants with empty tokens are ignored.
func NewStaticTokens(grants ...TokenGrant) *StaticTokens {
	kept := make([]TokenGrant, 0, len(grants))
	for _, g := range grants {
		if strings.TrimSpace(g.Token) != "" {
			kept = append(kept, g)
		}
	}
	return &StaticTokens{grants: kept}
}

// Authenticate returns the principal for token, or nil if no grant matches.
// Every grant is compared so timing does not reveal which one matched.
func (s *StaticTokens) Authenticate(_ context.Context, token string) (*Principal, error) {
	var match *TokenGrant
	for i := range s.grants {
		if AuthorizeToken(token, s.grants[i].Token) && match == nil {
			match = &s.grants[i]
		}
	}
	if match == nil {
		return nil, nil
	}
	return NewPrincipal(token, match.User, match.Scopes), nil
}

// AuthenticatePassword treats password as the token; user must match when the grant names one.
func (s *StaticTokens) AuthenticatePassword(ctx context.Context, user, password string) (*Principal, error) {
	p, err := s.Authenticate(ctx, password)
	if err != nil || p == nil {
		return nil, err
	}
	if p.User != "" && p.User != user {
		return nil, nil
	}
	return p, nil
}
