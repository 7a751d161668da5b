// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sqlite

import (
	"context"
	dbsql "database/sql"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/fondat/fondat-core/internal/errs"
	"github.com/fondat/fondat-core/internal/log"
	"github.com/fondat/fondat-core/internal/metrics"
	"github.com/fondat/fondat-core/internal/sql"
	"github.com/fondat/fondat-core/internal/telemetry"
)

const system = "sqlite"

// Database is a sql.Database backed by a SQLite connection pool.
type Database struct {
	db     *dbsql.DB
	logger zerolog.Logger
	codecs sync.Map // reflect.Type -> *codec
}

var _ sql.Database = (*Database)(nil)

type txKey struct{ db *Database }

// New wraps an open connection pool.
func New(db *dbsql.DB) *Database {
	return &Database{db: db, logger: log.WithComponent("sqlite")}
}

// OpenDatabase opens the database at path with cfg.
func OpenDatabase(path string, cfg Config) (*Database, error) {
	db, err := Open(path, cfg)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// DB returns the underlying connection pool.
func (d *Database) DB() *dbsql.DB {
	return d.db
}

// Close closes the connection pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping checks the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *Database) tx(ctx context.Context) (*dbsql.Tx, bool) {
	tx, ok := ctx.Value(txKey{d}).(*dbsql.Tx)
	return tx, ok
}

// Transaction runs fn in a transaction. Nested calls join the outer transaction.
func (d *Database) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := d.tx(ctx); ok {
		return fn(ctx)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, dbsql.ErrTxDone) {
			logger := log.WithContext(ctx, d.logger)
			logger.Warn().Err(rbErr).
				Str(log.FieldEvent, "sql.rollback_failed").
				Msg("transaction rollback failed")
		}
		metrics.RecordSQLTransaction(false)
	}()

	if err := fn(context.WithValue(ctx, txKey{d}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	committed = true
	metrics.RecordSQLTransaction(true)
	return nil
}

// Codec returns the codec for t.
func (d *Database) Codec(t reflect.Type) (sql.Codec, error) {
	return d.codec(t)
}

func (d *Database) codec(t reflect.Type) (*codec, error) {
	if c, ok := d.codecs.Load(t); ok {
		return c.(*codec), nil
	}
	c, err := newCodec(t)
	if err != nil {
		return nil, err
	}
	actual, _ := d.codecs.LoadOrStore(t, c)
	return actual.(*codec), nil
}

func (d *Database) prepare(stmt *sql.Statement) (string, []any, error) {
	text, params := stmt.SQL()
	args := make([]any, 0, len(params))
	for i, p := range params {
		t := p.TypeOf()
		if t == nil {
			args = append(args, nil)
			continue
		}
		c, err := d.codec(t)
		if err != nil {
			return "", nil, fmt.Errorf("sqlite: parameter %d: %w", i+1, err)
		}
		v, err := c.Encode(p.Value)
		if err != nil {
			return "", nil, fmt.Errorf("sqlite: parameter %d: %w", i+1, err)
		}
		args = append(args, v)
	}
	return text, args, nil
}

func (d *Database) start(ctx context.Context, name, text string) (context.Context, trace.Span) {
	logger := log.WithContext(ctx, d.logger)
	logger.Debug().
		Str(log.FieldEvent, name).
		Str(log.FieldSQL, text).
		Msg("sql statement")
	return telemetry.Tracer(telemetry.InstrumentationName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.SQLAttributes(system, "", text)...))
}

func finish(span trace.Span, kind string, err error) {
	metrics.RecordSQLStatement(kind, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Execute runs stmt in the transaction carried by ctx.
func (d *Database) Execute(ctx context.Context, stmt *sql.Statement) (err error) {
	tx, ok := d.tx(ctx)
	if !ok {
		return sql.ErrNoTransaction
	}
	text, args, err := d.prepare(stmt)
	if err != nil {
		return err
	}
	ctx, span := d.start(ctx, "sql.execute", text)
	defer func() { finish(span, "execute", err) }()

	if _, err = tx.ExecContext(ctx, text, args...); err != nil {
		return translate(err)
	}
	return nil
}

// Query runs stmt in the transaction carried by ctx.
func (d *Database) Query(ctx context.Context, stmt *sql.Statement) (_ sql.Rows, err error) {
	tx, ok := d.tx(ctx)
	if !ok {
		return nil, sql.ErrNoTransaction
	}
	text, args, err := d.prepare(stmt)
	if err != nil {
		return nil, err
	}
	// On success the span stays open until the rows are closed.
	ctx, span := d.start(ctx, "sql.query", text)
	defer func() {
		if err != nil {
			finish(span, "query", err)
		}
	}()

	var fields map[string]sql.Column
	if stmt.Result != nil {
		cols, err := sql.Columns(stmt.Result)
		if err != nil {
			return nil, err
		}
		fields = make(map[string]sql.Column, len(cols))
		for _, c := range cols {
			fields[c.Name] = c
		}
	}

	rows, err := tx.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, translate(err)
	}
	names, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	r := &resultRows{db: d, rows: rows, names: names, result: stmt.Result, span: span}
	if fields != nil {
		for _, name := range names {
			c, ok := fields[name]
			if !ok {
				_ = rows.Close()
				return nil, fmt.Errorf("sqlite: column %s not in %s", name, stmt.Result)
			}
			r.columns = append(r.columns, c)
		}
	}
	return r, nil
}

// translate maps constraint violations to 409 Conflict.
func translate(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return &errs.Error{Status: 409, Detail: "row already exists", Err: err}
		}
	}
	return err
}

type resultRows struct {
	db      *Database
	rows    *dbsql.Rows
	names   []string
	columns []sql.Column
	result  reflect.Type
	row     any
	err     error
	span    trace.Span
	count   int
	closed  bool
}

func (r *resultRows) Next() bool {
	if r.err != nil || !r.rows.Next() {
		return false
	}
	raw := make([]any, len(r.names))
	dest := make([]any, len(r.names))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := r.rows.Scan(dest...); err != nil {
		r.err = err
		return false
	}

	if r.result == nil {
		m := make(map[string]any, len(r.names))
		for i, name := range r.names {
			if b, ok := raw[i].([]byte); ok {
				raw[i] = append([]byte(nil), b...)
			}
			m[name] = raw[i]
		}
		r.row = m
		r.count++
		return true
	}

	v := reflect.New(r.result).Elem()
	for i, c := range r.columns {
		codec, err := r.db.codec(c.Type)
		if err != nil {
			r.err = err
			return false
		}
		fv, err := codec.Decode(raw[i])
		if err != nil {
			r.err = fmt.Errorf("column %s: %w", c.Name, err)
			return false
		}
		v.FieldByIndex(c.Index).Set(fv)
	}
	r.row = v.Interface()
	r.count++
	return true
}

func (r *resultRows) Row() any { return r.row }

func (r *resultRows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

// Close closes the rows and ends the query span, recording any iteration error.
func (r *resultRows) Close() error {
	err := r.rows.Close()
	if r.closed {
		return err
	}
	r.closed = true
	r.span.SetAttributes(attribute.Int(telemetry.DBRowsKey, r.count))
	ferr := r.Err()
	if ferr == nil {
		ferr = err
	}
	finish(r.span, "query", ferr)
	return err
}
