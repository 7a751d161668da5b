// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package httpapi

import (
	"reflect"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func reflectTypeOf[T any]() reflect.Type { return reflect.TypeFor[T]() }

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	require.NoError(t, err)
	return n
}
