// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package sql builds parameterized statements and maps Go structs onto tables.
//
// A Database executes statements inside a transaction carried by the context.
// Table and Index issue DDL and row operations against any Database; the
// sqlite subpackage provides the implementation.
package sql

import (
	"context"
	"errors"
	"reflect"
	"strings"
)

// ErrNoTransaction is returned when a statement is executed outside Transaction.
var ErrNoTransaction = errors.New("sql: statement executed outside a transaction")

// Param is a value bound to a statement placeholder.
type Param struct {
	Value any
	// Type selects the codec; the dynamic type of Value when nil.
	Type reflect.Type
}

// Statement is a sequence of text fragments and parameters.
type Statement struct {
	// Fragments holds string and Param values in order.
	Fragments []any
	// Result is the struct type each returned row is decoded into. Rows are
	// map[string]any when Result is nil.
	Result reflect.Type
}

// NewStatement returns a statement starting with text.
func NewStatement(text ...string) *Statement {
	s := &Statement{}
	for _, t := range text {
		s.Text(t)
	}
	return s
}

// Text appends literal SQL text.
func (s *Statement) Text(text string) *Statement {
	s.Fragments = append(s.Fragments, text)
	return s
}

// Param appends a parameter whose type is inferred from value.
func (s *Statement) Param(value any) *Statement {
	return s.Parameter(Param{Value: value})
}

// TypedParam appends a parameter encoded as type t.
func (s *Statement) TypedParam(value any, t reflect.Type) *Statement {
	return s.Parameter(Param{Value: value, Type: t})
}

// Parameter appends p.
func (s *Statement) Parameter(p Param) *Statement {
	s.Fragments = append(s.Fragments, p)
	return s
}

// Parameters appends params separated by sep.
func (s *Statement) Parameters(params []Param, sep string) *Statement {
	for i, p := range params {
		if i > 0 && sep != "" {
			s.Text(sep)
		}
		s.Parameter(p)
	}
	return s
}

// Statement appends the fragments of other.
func (s *Statement) Statement(other *Statement) *Statement {
	s.Fragments = append(s.Fragments, other.Fragments...)
	return s
}

// Statements appends others separated by sep.
func (s *Statement) Statements(others []*Statement, sep string) *Statement {
	for i, o := range others {
		if i > 0 && sep != "" {
			s.Text(sep)
		}
		s.Statement(o)
	}
	return s
}

// SQL renders the statement with "?" placeholders and returns its parameters.
func (s *Statement) SQL() (string, []Param) {
	var (
		b      strings.Builder
		params []Param
	)
	for _, f := range s.Fragments {
		switch f := f.(type) {
		case string:
			b.WriteString(f)
		case Param:
			b.WriteByte('?')
			params = append(params, f)
		}
	}
	return b.String(), params
}

func (s *Statement) String() string {
	text, _ := s.SQL()
	return text
}

// TypeOf returns the codec type of p.
func (p Param) TypeOf() reflect.Type {
	if p.Type != nil {
		return p.Type
	}
	return reflect.TypeOf(p.Value)
}

// Codec converts between Go values of one type and SQL values.
type Codec interface {
	// SQLType is the column type used in CREATE TABLE.
	SQLType() string
	// Encode returns a driver value for v.
	Encode(v any) (any, error)
	// Decode converts a scanned driver value into the Go type.
	Decode(src any) (reflect.Value, error)
}

// Rows iterates over query results. Row values are of the statement's Result
// type, or map[string]any.
type Rows interface {
	Next() bool
	Row() any
	Err() error
	Close() error
}

// Database executes statements.
type Database interface {
	// Transaction runs fn in a transaction carried by the context passed to fn.
	// A transaction already present in ctx is joined. The outermost transaction
	// commits when fn returns nil and rolls back on error or panic.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	// Execute runs a statement that returns no rows.
	Execute(ctx context.Context, stmt *Statement) error
	// Query runs a statement and returns its rows. Rows must be consumed
	// within the transaction.
	Query(ctx context.Context, stmt *Statement) (Rows, error)
	// Codec returns the codec for values of type t.
	Codec(t reflect.Type) (Codec, error)
}

// Collect drains rows into a slice, closing rows.
func Collect[T any](rows Rows) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, ok := rows.Row().(T)
		if !ok {
			return nil, errors.New("sql: unexpected row type")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
