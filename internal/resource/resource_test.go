// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resource

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fondat/fondat-core/internal/auth"
	"github.com/fondat/fondat-core/internal/cache"
	"github.com/fondat/fondat-core/internal/errs"
)

type body struct {
	Key *uuid.UUID `json:"key,omitempty"`
	Foo string     `json:"foo"`
}

type bazIn struct {
	X string `json:"x" minLength:"1"`
	Y int    `json:"y" minimum:"0"`
}

const iAmR1 = "i_am_r1"

var fixedID = uuid.MustParse("705d9048-97d6-4071-8359-3dbf0531fee9")

func newR1() *Resource {
	r := New("r1")
	r.Handle(
		Op("post", func(_ context.Context, b body) (uuid.UUID, error) { return fixedID, nil }),
		Op("delete", func(_ context.Context, in struct {
			ID uuid.UUID `query:"id"`
		}) (NoContent, error) {
			return NoContent{}, nil
		}),
	)
	Query(r, "q1", func(context.Context, struct{}) (string, error) { return iAmR1, nil })
	Mutation(r, "baz", func(context.Context, bazIn) (NoContent, error) { return NoContent{}, nil },
		WithOpDescription("Bazzes the resource. Not idempotent."))
	return r
}

func TestCall(t *testing.T) {
	op, ok := newR1().Operation("POST")
	require.True(t, ok)
	id, err := Call[uuid.UUID](context.Background(), op, body{Foo: "bar"})
	require.NoError(t, err)
	assert.Equal(t, fixedID, id)
}

func TestCall_InvalidType(t *testing.T) {
	op, _ := newR1().Operation("post")
	_, err := op.Invoke(context.Background(), 1)
	assert.ErrorIs(t, err, ErrArgumentType)
}

func TestInner_OuterScope(t *testing.T) {
	q1, ok := newR1().Child("q1")
	require.True(t, ok)
	assert.Equal(t, TagInner, q1.Tag)
	assert.Equal(t, "r1", q1.TagFor("r1"))

	op, ok := q1.Operation("get")
	require.True(t, ok)
	assert.Equal(t, TypeQuery, op.Type)
	v, err := Call[string](context.Background(), op, nil)
	require.NoError(t, err)
	assert.Equal(t, iAmR1, v)
}

func TestMutation(t *testing.T) {
	baz, ok := newR1().Child("baz")
	require.True(t, ok)
	op, ok := baz.Operation("post")
	require.True(t, ok)
	assert.Equal(t, TypeMutation, op.Type)
	assert.Equal(t, "Bazzes the resource.", op.Summary)

	_, err := op.Invoke(context.Background(), bazIn{X: "hello", Y: 1})
	require.NoError(t, err)

	_, err = op.Invoke(context.Background(), bazIn{X: "", Y: 1})
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, http.StatusBadRequest, e.Status)
}

func TestOp_Defaults(t *testing.T) {
	get := Op("GET", func(context.Context, struct{}) (string, error) { return "", nil })
	assert.Equal(t, "get", get.Method)
	assert.Equal(t, TypeQuery, get.Type)
	assert.Equal(t, "Get.", get.Summary)
	assert.Equal(t, "get", get.Description)
	assert.True(t, get.Publish)

	put := Op("put", func(context.Context, struct{}) (string, error) { return "", nil },
		WithType(TypeQuery), WithPublish(false), WithDeprecated())
	assert.Equal(t, TypeQuery, put.Type)
	assert.False(t, put.Publish)
	assert.True(t, put.Deprecated)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "Delete.", summarize("", "delete"))
	assert.Equal(t, "Frobnicate.", summarize("", "FROBNICATE"))
	assert.Equal(t, "Ünlock.", summarize("", "ünLOCK"))
	assert.Equal(t, "", summarize("", ""))
	assert.Equal(t, "", summarize("  ", ""))
	assert.Equal(t, "Read a note.", summarize("Read a note. Returns 404 when missing.", "get"))
	assert.Equal(t, "no period here", summarize("no  period\nhere", "get"))
}

func TestInvoke_Security(t *testing.T) {
	op := Op("get", func(context.Context, struct{}) (string, error) { return "ok", nil },
		WithSecurity(auth.RequireScope("notes:read")))
	New("secured").Handle(op)

	_, err := op.Invoke(context.Background(), nil)
	assert.True(t, errs.IsUnauthorized(err))

	ctx := auth.WithPrincipal(context.Background(), auth.NewPrincipal("t", "u", nil))
	_, err = op.Invoke(ctx, nil)
	assert.True(t, errs.IsForbidden(err))

	ctx = auth.WithPrincipal(context.Background(), auth.NewPrincipal("t", "u", []string{"notes:read"}))
	v, err := Call[string](ctx, op, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestInvoke_HandlerError(t *testing.T) {
	boom := errors.New("boom")
	op := Op("get", func(context.Context, struct{}) (string, error) { return "", boom })
	_, err := op.Invoke(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}

func TestInvoke_InvalidResult(t *testing.T) {
	type out struct {
		Name string `json:"name" minLength:"3"`
	}
	op := Op("get", func(context.Context, struct{}) (out, error) { return out{Name: "x"}, nil })
	_, err := op.Invoke(context.Background(), nil)
	status, ok := errs.Status(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, status)

	op = Op("get", func(context.Context, struct{}) (out, error) { return out{Name: "x"}, nil }, WithValidation(false))
	_, err = op.Invoke(context.Background(), nil)
	assert.NoError(t, err)
}

func TestInvoke_Cache(t *testing.T) {
	var calls atomic.Int32
	loader := cache.NewLoader(cache.NewMemoryCache(0))
	type in struct {
		N int `query:"n"`
	}
	op := Op("get", func(_ context.Context, i in) (int, error) {
		calls.Add(1)
		return i.N * 2, nil
	}, WithCache(loader, time.Minute))
	New("double").Handle(op)

	ctx := context.Background()
	for range 3 {
		v, err := Call[int](ctx, op, in{N: 2})
		require.NoError(t, err)
		assert.Equal(t, 4, v)
	}
	assert.Equal(t, int32(1), calls.Load())

	v, err := Call[int](ctx, op, in{N: 3})
	require.NoError(t, err)
	assert.Equal(t, 6, v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCacheKeyedByResourcePath(t *testing.T) {
	loader := cache.NewLoader(cache.NewMemoryCache(0))
	root := New("things")
	Item(root, "id", func(id int) *Resource {
		item := New("thing")
		Query(item, "value", func(context.Context, struct{}) (int, error) {
			return id, nil
		}, WithCache(loader, time.Minute))
		return item
	})

	call := func(segment string) int {
		t.Helper()
		item, err := root.Subordinate(segment)
		require.NoError(t, err)
		value, err := item.Subordinate("value")
		require.NoError(t, err)
		assert.Equal(t, "things/"+segment+"/value", value.Path())
		op, ok := value.Operation("get")
		require.True(t, ok)
		v, err := Call[int](context.Background(), op, nil)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, 1, call("1"))
	assert.Equal(t, 2, call("2"))
	assert.Equal(t, 1, call("1"))

	// same query name on two collections sharing one loader
	counts := func(name string, n int) *Operation {
		r := New(name)
		Query(r, "count", func(context.Context, struct{}) (int, error) { return n, nil }, WithCache(loader, time.Minute))
		child, _ := r.Child("count")
		op, _ := child.Operation("get")
		return op
	}
	a, err := Call[int](context.Background(), counts("apples", 3), nil)
	require.NoError(t, err)
	b, err := Call[int](context.Background(), counts("pears", 5), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, []int{a, b})
}

func TestItem(t *testing.T) {
	root := New("notes")
	Item(root, "id", func(id int64) *Resource {
		return New("note").Handle(Op("get", func(context.Context, struct{}) (int64, error) { return id, nil }))
	})
	root.Mount("count", New("count"))

	count, err := root.Subordinate("count")
	require.NoError(t, err)
	assert.Equal(t, "count", count.Name)

	item, err := root.Subordinate("42")
	require.NoError(t, err)
	op, _ := item.Operation("get")
	v, err := Call[int64](context.Background(), op, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	_, err = root.Subordinate("abc")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = root.Subordinate("")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	spec, ok := root.Item()
	require.True(t, ok)
	assert.Equal(t, "id", spec.Param)
	assert.Equal(t, "note", spec.Sample().Name)
}

func TestSubordinate_NoItem(t *testing.T) {
	_, err := New("leaf").Subordinate("x")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestContainer(t *testing.T) {
	r1, r2 := newR1(), New("r2").Handle(Op("get", func(context.Context, struct{}) (string, error) { return "str", nil }))
	root := Container("root", map[string]*Resource{"r2": r2, "r1": r1})
	assert.Equal(t, []string{"r1", "r2"}, root.Children())

	got, err := root.Subordinate("r1")
	require.NoError(t, err)
	assert.Same(t, r1, got)
}

func TestNestedContainers(t *testing.T) {
	r2 := New("r2").Handle(Op("get", func(context.Context, struct{}) (string, error) { return "str", nil }))
	c1 := Container("c1", map[string]*Resource{"r2": r2})
	c2 := Container("c2", map[string]*Resource{"c1": c1})

	got, err := c2.Subordinate("c1")
	require.NoError(t, err)
	got, err = got.Subordinate("r2")
	require.NoError(t, err)
	op, ok := got.Operation("get")
	require.True(t, ok)
	assert.Same(t, got, op.Resource())
}

func TestMountLazy(t *testing.T) {
	var built atomic.Int32
	root := New("root").MountLazy("child", func() *Resource {
		built.Add(1)
		return New("child")
	})
	assert.Equal(t, int32(0), built.Load())
	_, err := root.Subordinate("child")
	require.NoError(t, err)
	_, err = root.Subordinate("child")
	require.NoError(t, err)
	assert.Equal(t, int32(1), built.Load())
}

func TestMethods(t *testing.T) {
	assert.Equal(t, []string{"DELETE", "POST"}, newR1().Methods())
}

func TestInvoke_NilCollections(t *testing.T) {
	list := Op("get", func(context.Context, struct{}) ([]string, error) { return nil, nil })
	New("names").Handle(list)
	got, err := Call[[]string](context.Background(), list, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	type row struct {
		Name string            `json:"name"`
		Tags []string          `json:"tags"`
		Meta map[string]string `json:"meta"`
	}
	echo := Op("post", func(_ context.Context, r row) (row, error) { return r, nil })
	New("rows").Handle(echo)
	out, err := Call[row](context.Background(), echo, row{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", out.Name)
}
