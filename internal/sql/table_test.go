// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sql_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fondat/fondat-core/internal/httpapi"
	"github.com/fondat/fondat-core/internal/resource"
	"github.com/fondat/fondat-core/internal/sql"
	"github.com/fondat/fondat-core/internal/sql/sqlite"
)

type record struct {
	Key      uuid.UUID         `json:"key"`
	Str      string            `json:"str"`
	Int      int               `json:"int"`
	Flt      float64           `json:"flt"`
	Opt      *string           `json:"opt,omitempty"`
	Created  time.Time         `json:"created"`
	Tags     []string          `json:"tags"`
	Attrs    map[string]string `json:"attrs"`
	Internal string            `json:"-"`
}

func newTable(t *testing.T) *sql.Table[record] {
	t.Helper()
	db, err := sqlite.OpenDatabase(filepath.Join(t.TempDir(), "table.db"), sqlite.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	table, err := sql.NewTable[record]("records", db, "key")
	require.NoError(t, err)
	require.NoError(t, table.Create(context.Background()))
	return table
}

func newRecord(i int) record {
	return record{
		Key:     uuid.New(),
		Str:     "rec-" + string(rune('a'+i)),
		Int:     i,
		Flt:     float64(i) / 2,
		Created: time.Date(2025, 1, 1, 0, 0, i, 0, time.UTC),
		Tags:    []string{"x"},
		Attrs:   map[string]string{"n": "v"},
	}
}

func TestStatement(t *testing.T) {
	a := sql.NewStatement("a = ").Param(1)
	b := sql.NewStatement("b = ").TypedParam("x", reflect.TypeFor[string]())
	stmt := sql.NewStatement("SELECT * FROM t WHERE ").Statements([]*sql.Statement{a, b}, " AND ")
	stmt.Text(" AND c IN (").Parameters([]sql.Param{{Value: 1}, {Value: 2}}, ", ").Text(");")

	text, params := stmt.SQL()
	assert.Equal(t, "SELECT * FROM t WHERE a = ? AND b = ? AND c IN (?, ?);", text)
	require.Len(t, params, 4)
	assert.Equal(t, reflect.TypeFor[int](), params[0].TypeOf())
	assert.Equal(t, reflect.TypeFor[string](), params[1].TypeOf())
}

func TestNewTable(t *testing.T) {
	_, err := sql.NewTable[record]("records", nil, "nope")
	assert.ErrorContains(t, err, "primary key not in schema")

	cols, err := sql.Columns(reflect.TypeFor[record]())
	require.NoError(t, err)
	var names []string
	for _, c := range cols {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"key", "str", "int", "flt", "opt", "created", "tags", "attrs"}, names)
}

func TestCRUD(t *testing.T) {
	table := newTable(t)
	ctx := context.Background()

	r := newRecord(1)
	require.NoError(t, table.Insert(ctx, r))

	got, err := table.Read(ctx, r.Key)
	require.NoError(t, err)
	require.NotNil(t, got)
	if diff := cmp.Diff(r, *got); diff != "" {
		t.Fatalf("read mismatch (-want +got):\n%s", diff)
	}

	missing, err := table.Read(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	opt := "set"
	r.Str, r.Opt = "updated", &opt
	require.NoError(t, table.Update(ctx, r))
	got, err = table.Read(ctx, r.Key)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Str)
	require.NotNil(t, got.Opt)
	assert.Equal(t, "set", *got.Opt)

	r.Int = 99
	require.NoError(t, table.Upsert(ctx, r))
	got, err = table.Read(ctx, r.Key)
	require.NoError(t, err)
	assert.Equal(t, 99, got.Int)

	require.NoError(t, table.Delete(ctx, r.Key))
	got, err = table.Read(ctx, r.Key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSelect(t *testing.T) {
	table := newTable(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, table.Insert(ctx, newRecord(i)))
	}

	all, err := table.Select(ctx, sql.OrderBy("int"))
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, 0, all[0].Int)

	page, err := table.Select(ctx, sql.OrderBy("int DESC"), sql.Limit(2), sql.Offset(1))
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, []int{3, 2}, []int{page[0].Int, page[1].Int})

	skip, err := table.Select(ctx, sql.OrderBy("int"), sql.Offset(3))
	require.NoError(t, err)
	assert.Len(t, skip, 2)

	where := sql.NewStatement("int >= ").Param(3)
	partial, err := table.Select(ctx, sql.SelectColumns("str"), sql.Where(where), sql.OrderBy("int"))
	require.NoError(t, err)
	require.Len(t, partial, 2)
	assert.Equal(t, "rec-d", partial[0].Str)
	assert.Zero(t, partial[0].Int)

	_, err = table.Select(ctx, sql.SelectColumns("nope"))
	assert.Error(t, err)

	n, err := table.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	n, err = table.Count(ctx, where)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestIndex(t *testing.T) {
	table := newTable(t)
	ctx := context.Background()
	idx := table.Index("records_str", true, "str")
	require.NoError(t, idx.Create(ctx))

	a, b := newRecord(1), newRecord(1)
	require.NoError(t, table.Insert(ctx, a))
	assert.Error(t, table.Insert(ctx, b), "unique index rejects duplicate")

	require.NoError(t, idx.Drop(ctx))
	require.NoError(t, table.Insert(ctx, b))
	require.NoError(t, table.Drop(ctx))
}

func TestTableResource(t *testing.T) {
	table := newTable(t)
	root := resource.New("root")
	root.Mount("records", sql.TableResource[record, uuid.UUID](table, "records"))
	app := httpapi.New(root)

	do := func(method, target, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, target, nil)
		} else {
			req = httptest.NewRequest(method, target, strings.NewReader(body))
		}
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, req)
		return rec
	}

	r := newRecord(1)
	b, err := json.Marshal(r)
	require.NoError(t, err)

	rec := do(http.MethodPost, "/records", string(b))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `"`+r.Key.String()+`"`, rec.Body.String())

	rec = do(http.MethodPost, "/records", string(b))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(http.MethodGet, "/records/"+r.Key.String(), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, r.Str, got.Str)

	rec = do(http.MethodGet, "/records/count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Body.String())

	other := newRecord(2)
	ob, err := json.Marshal(other)
	require.NoError(t, err)
	rec = do(http.MethodPut, "/records/"+r.Key.String(), string(ob))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodPut, "/records/"+other.Key.String(), string(ob))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(http.MethodGet, "/records?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = do(http.MethodGet, "/records?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodDelete, "/records/"+r.Key.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(http.MethodDelete, "/records/"+r.Key.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(http.MethodGet, "/records/"+r.Key.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
