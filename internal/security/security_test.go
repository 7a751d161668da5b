// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package security

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fondat/fondat-core/internal/errs"
)

func deny(err error) Requirement {
	return Func(func(context.Context) error { return err })
}

var allow = Func(func(context.Context) error { return nil })

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	unauth1 := errs.Unauthorized("first")
	unauth2 := errs.Unauthorized("second")
	forbid1 := errs.Forbidden("first")
	forbid2 := errs.Forbidden("second")
	boom := errors.New("boom")

	tests := []struct {
		name string
		reqs []Requirement
		want error
	}{
		{"none", nil, nil},
		{"single pass", []Requirement{allow}, nil},
		{"pass after denials", []Requirement{deny(unauth1), deny(forbid1), allow}, nil},
		{"first unauthorized", []Requirement{deny(unauth1), deny(unauth2)}, unauth1},
		{"forbidden beats unauthorized", []Requirement{deny(unauth1), deny(forbid1), deny(forbid2)}, forbid1},
		{"forbidden first", []Requirement{deny(forbid1), deny(unauth1)}, forbid1},
		{"other error short circuits", []Requirement{deny(unauth1), deny(boom), allow}, boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(ctx, tt.reqs)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			assert.Same(t, tt.want, err)
		})
	}
}
