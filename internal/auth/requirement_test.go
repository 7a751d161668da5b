// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fondat/fondat-core/internal/errs"
)

func TestRequireScope(t *testing.T) {
	req := RequireScope("notes:write", "token")

	err := req.Authorize(context.Background())
	assert.True(t, errs.IsUnauthorized(err))

	reader := WithPrincipal(context.Background(), NewPrincipal("t", "r", []string{"notes:read"}))
	assert.True(t, errs.IsForbidden(req.Authorize(reader)))

	writer := WithPrincipal(context.Background(), NewPrincipal("t", "w", []string{"notes:write"}))
	assert.NoError(t, req.Authorize(writer))

	assert.Equal(t, []string{"notes:write"}, req.SecurityRequirement()["token"])
}

func TestRequireAuthenticated(t *testing.T) {
	req := RequireAuthenticated("basic", "token")
	assert.True(t, errs.IsUnauthorized(req.Authorize(context.Background())))

	ctx := WithPrincipal(context.Background(), NewPrincipal("t", "", nil))
	assert.NoError(t, req.Authorize(ctx))

	sr := req.SecurityRequirement()
	assert.Len(t, sr, 2)
	assert.Empty(t, sr["basic"])
}

func TestRequirementSchemes(t *testing.T) {
	req := RequireScope("notes:write", "bearer")

	viaBearer := NewPrincipal("t", "w", []string{"notes:write"})
	viaBearer.Scheme = "bearer"
	assert.NoError(t, req.Authorize(WithPrincipal(context.Background(), viaBearer)))

	viaKey := NewPrincipal("t", "w", []string{"notes:write"})
	viaKey.Scheme = "apiKey"
	assert.True(t, errs.IsUnauthorized(req.Authorize(WithPrincipal(context.Background(), viaKey))))

	// requirements without schemes accept any authenticated principal
	assert.NoError(t, RequireScope("notes:write").Authorize(WithPrincipal(context.Background(), viaKey)))
}
