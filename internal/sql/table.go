// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sql

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/fondat/fondat-core/internal/schema"
)

// Column maps a struct field to a table column.
type Column struct {
	Name  string
	Type  reflect.Type
	Index []int
}

// Nullable reports whether the column accepts NULL.
func (c Column) Nullable() bool {
	return c.Type.Kind() == reflect.Pointer
}

// Columns returns the columns of struct type t. A `db` tag names the column
// ("-" skips the field); otherwise the JSON name is used.
func Columns(t reflect.Type) ([]Column, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("sql: %s is not a struct", t)
	}
	var cols []Column
	seen := map[string]bool{}
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name, ok := f.Tag.Lookup("db")
		if !ok {
			name, _ = schema.FieldName(f)
		}
		if name == "" || name == "-" {
			continue
		}
		if seen[name] {
			return nil, fmt.Errorf("sql: %s: duplicate column %s", t, name)
		}
		seen[name] = true
		cols = append(cols, Column{Name: name, Type: f.Type, Index: f.Index})
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("sql: %s has no columns", t)
	}
	return cols, nil
}

// Table is a database table whose rows are values of struct type T.
type Table[T any] struct {
	Name    string
	DB      Database
	Columns []Column
	PK      Column
}

// NewTable returns a table named name in db, keyed by column pk.
func NewTable[T any](name string, db Database, pk string) (*Table[T], error) {
	cols, err := Columns(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	t := &Table[T]{Name: name, DB: db, Columns: cols}
	found := false
	for _, c := range cols {
		if c.Name == pk {
			t.PK, found = c, true
		}
	}
	if !found {
		return nil, fmt.Errorf("sql: primary key not in schema: %s", pk)
	}
	return t, nil
}

func (t *Table[T]) String() string {
	return fmt.Sprintf("Table(%s)", t.Name)
}

func (t *Table[T]) column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (t *Table[T]) exec(ctx context.Context, stmt *Statement) error {
	return t.DB.Transaction(ctx, func(ctx context.Context) error {
		return t.DB.Execute(ctx, stmt)
	})
}

// Create creates the table.
func (t *Table[T]) Create(ctx context.Context) error {
	return t.create(ctx, "CREATE TABLE ")
}

// CreateIfNotExists creates the table unless it already exists.
func (t *Table[T]) CreateIfNotExists(ctx context.Context) error {
	return t.create(ctx, "CREATE TABLE IF NOT EXISTS ")
}

func (t *Table[T]) create(ctx context.Context, verb string) error {
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		codec, err := t.DB.Codec(c.Type)
		if err != nil {
			return fmt.Errorf("sql: column %s: %w", c.Name, err)
		}
		def := c.Name + " " + codec.SQLType()
		if c.Name == t.PK.Name {
			def += " PRIMARY KEY"
		}
		if !c.Nullable() {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	stmt := NewStatement(verb+t.Name+" (", strings.Join(defs, ", "), ");")
	return t.exec(ctx, stmt)
}

// Drop drops the table.
func (t *Table[T]) Drop(ctx context.Context) error {
	return t.exec(ctx, NewStatement("DROP TABLE "+t.Name+";"))
}

type selectQuery struct {
	columns []string
	where   *Statement
	order   []string
	limit   int
	offset  int
}

// SelectOption refines a Select.
type SelectOption func(*selectQuery)

// SelectColumns restricts the returned columns; other fields are left zero.
func SelectColumns(names ...string) SelectOption {
	return func(q *selectQuery) { q.columns = append(q.columns, names...) }
}

// Where filters rows by an expression.
func Where(expr *Statement) SelectOption {
	return func(q *selectQuery) { q.where = expr }
}

// OrderBy orders rows by keys, such as "name" or "created DESC".
func OrderBy(keys ...string) SelectOption {
	return func(q *selectQuery) { q.order = append(q.order, keys...) }
}

// Limit caps the number of rows returned.
func Limit(n int) SelectOption {
	return func(q *selectQuery) { q.limit = n }
}

// Offset skips the first n rows.
func Offset(n int) SelectOption {
	return func(q *selectQuery) { q.offset = n }
}

// Select returns the rows matching opts.
func (t *Table[T]) Select(ctx context.Context, opts ...SelectOption) ([]T, error) {
	q := selectQuery{limit: -1}
	for _, opt := range opts {
		opt(&q)
	}
	names := q.columns
	if len(names) == 0 {
		for _, c := range t.Columns {
			names = append(names, c.Name)
		}
	}
	for _, name := range names {
		if _, ok := t.column(name); !ok {
			return nil, fmt.Errorf("sql: %s: unknown column %s", t.Name, name)
		}
	}

	stmt := NewStatement("SELECT ", strings.Join(names, ", "), " FROM "+t.Name)
	if q.where != nil {
		stmt.Text(" WHERE ").Statement(q.where)
	}
	if len(q.order) > 0 {
		stmt.Text(" ORDER BY " + strings.Join(q.order, ", "))
	}
	if q.limit >= 0 {
		stmt.Text(" LIMIT " + strconv.Itoa(q.limit))
	}
	if q.offset > 0 {
		if q.limit < 0 {
			stmt.Text(" LIMIT -1")
		}
		stmt.Text(" OFFSET " + strconv.Itoa(q.offset))
	}
	stmt.Text(";")
	stmt.Result = reflect.TypeFor[T]()

	var out []T
	err := t.DB.Transaction(ctx, func(ctx context.Context) error {
		rows, err := t.DB.Query(ctx, stmt)
		if err != nil {
			return err
		}
		out, err = Collect[T](rows)
		return err
	})
	return out, err
}

// Count returns the number of rows matching where, or all rows when where is nil.
func (t *Table[T]) Count(ctx context.Context, where *Statement) (int, error) {
	stmt := NewStatement("SELECT COUNT(*) AS count FROM " + t.Name)
	if where != nil {
		stmt.Text(" WHERE ").Statement(where)
	}
	stmt.Text(";")

	var count int
	err := t.DB.Transaction(ctx, func(ctx context.Context) error {
		rows, err := t.DB.Query(ctx, stmt)
		if err != nil {
			return err
		}
		result, err := Collect[map[string]any](rows)
		if err != nil {
			return err
		}
		if len(result) != 1 {
			return fmt.Errorf("sql: count returned %d rows", len(result))
		}
		n, ok := result[0]["count"].(int64)
		if !ok {
			return fmt.Errorf("sql: count returned %T", result[0]["count"])
		}
		count = int(n)
		return nil
	})
	return count, err
}

func (t *Table[T]) params(v T, cols []Column) []Param {
	rv := reflect.ValueOf(v)
	params := make([]Param, 0, len(cols))
	for _, c := range cols {
		params = append(params, Param{Value: rv.FieldByIndex(c.Index).Interface(), Type: c.Type})
	}
	return params
}

func (t *Table[T]) names() string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return strings.Join(names, ", ")
}

func (t *Table[T]) keyWhere(key any) *Statement {
	return NewStatement(t.PK.Name+" = ").TypedParam(key, t.PK.Type)
}

// Insert inserts a row.
func (t *Table[T]) Insert(ctx context.Context, v T) error {
	stmt := NewStatement("INSERT INTO "+t.Name+" (", t.names(), ") VALUES (")
	stmt.Parameters(t.params(v, t.Columns), ", ").Text(");")
	return t.exec(ctx, stmt)
}

// Read returns the row with primary key key, or nil if there is none.
func (t *Table[T]) Read(ctx context.Context, key any) (*T, error) {
	rows, err := t.Select(ctx, Where(t.keyWhere(key)), Limit(1))
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// Update replaces the row whose primary key matches v.
func (t *Table[T]) Update(ctx context.Context, v T) error {
	key := reflect.ValueOf(v).FieldByIndex(t.PK.Index).Interface()
	stmt := NewStatement("UPDATE " + t.Name + " SET ").Statements(t.updates(v), ", ")
	stmt.Text(" WHERE ").Statement(t.keyWhere(key)).Text(";")
	return t.exec(ctx, stmt)
}

func (t *Table[T]) updates(v T) []*Statement {
	params := t.params(v, t.Columns)
	sets := make([]*Statement, 0, len(params))
	for i, c := range t.Columns {
		sets = append(sets, NewStatement(c.Name+" = ").Parameter(params[i]))
	}
	return sets
}

// Delete deletes the row with primary key key.
func (t *Table[T]) Delete(ctx context.Context, key any) error {
	stmt := NewStatement("DELETE FROM " + t.Name + " WHERE ").Statement(t.keyWhere(key)).Text(";")
	return t.exec(ctx, stmt)
}

// Upsert inserts v, or updates the existing row with the same primary key.
func (t *Table[T]) Upsert(ctx context.Context, v T) error {
	stmt := NewStatement("INSERT INTO "+t.Name+" (", t.names(), ") VALUES (")
	stmt.Parameters(t.params(v, t.Columns), ", ")
	stmt.Text(") ON CONFLICT (" + t.PK.Name + ") DO ")
	var sets []string
	for _, c := range t.Columns {
		if c.Name != t.PK.Name {
			sets = append(sets, c.Name+" = excluded."+c.Name)
		}
	}
	if len(sets) == 0 {
		stmt.Text("NOTHING;")
	} else {
		stmt.Text("UPDATE SET " + strings.Join(sets, ", ") + ";")
	}
	return t.exec(ctx, stmt)
}

// Index is an index on a table.
type Index struct {
	Name   string
	Table  string
	DB     Database
	Keys   []string
	Unique bool
}

// Index returns an index on t over keys, such as "name" or "created DESC".
func (t *Table[T]) Index(name string, unique bool, keys ...string) *Index {
	return &Index{Name: name, Table: t.Name, DB: t.DB, Keys: keys, Unique: unique}
}

// Create creates the index.
func (i *Index) Create(ctx context.Context) error {
	return i.create(ctx, false)
}

// CreateIfNotExists creates the index unless it already exists.
func (i *Index) CreateIfNotExists(ctx context.Context) error {
	return i.create(ctx, true)
}

func (i *Index) create(ctx context.Context, ifNotExists bool) error {
	stmt := NewStatement("CREATE ")
	if i.Unique {
		stmt.Text("UNIQUE ")
	}
	stmt.Text("INDEX ")
	if ifNotExists {
		stmt.Text("IF NOT EXISTS ")
	}
	stmt.Text(i.Name + " ON " + i.Table + " (" + strings.Join(i.Keys, ", ") + ");")
	return i.DB.Transaction(ctx, func(ctx context.Context) error {
		return i.DB.Execute(ctx, stmt)
	})
}

// Drop drops the index.
func (i *Index) Drop(ctx context.Context) error {
	return i.DB.Transaction(ctx, func(ctx context.Context) error {
		return i.DB.Execute(ctx, NewStatement("DROP INDEX "+i.Name+";"))
	})
}
