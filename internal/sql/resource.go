// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sql

import (
	"context"
	"fmt"
	"reflect"

	"github.com/fondat/fondat-core/internal/errs"
	"github.com/fondat/fondat-core/internal/resource"
	"github.com/fondat/fondat-core/internal/security"
)

// DefaultListLimit caps list results when the request sets no limit.
const DefaultListLimit = 100

// ListIn is the input of a table resource's list operation.
type ListIn struct {
	Limit  *int `query:"limit" json:"limit,omitempty" minimum:"1" doc:"Maximum number of rows."`
	Offset *int `query:"offset" json:"offset,omitempty" minimum:"0" doc:"Number of rows to skip."`
}

// RowIn carries a row in the request body.
type RowIn[T any] struct {
	Row T `body:"" json:"row"`
}

type tableResourceConfig[K any] struct {
	read     []security.Requirement
	write    []security.Requirement
	maxLimit int
	tag      string
	item     func(key K, item *resource.Resource)
	count    []resource.OpOption
}

// TableResourceOption configures TableResource.
type TableResourceOption[K any] func(*tableResourceConfig[K])

// WithReadSecurity secures the list, count and item get operations.
func WithReadSecurity[K any](reqs ...security.Requirement) TableResourceOption[K] {
	return func(c *tableResourceConfig[K]) { c.read = append(c.read, reqs...) }
}

// WithWriteSecurity secures the post, put and delete operations.
func WithWriteSecurity[K any](reqs ...security.Requirement) TableResourceOption[K] {
	return func(c *tableResourceConfig[K]) { c.write = append(c.write, reqs...) }
}

// WithMaxLimit caps the limit a list request may ask for.
func WithMaxLimit[K any](n int) TableResourceOption[K] {
	return func(c *tableResourceConfig[K]) { c.maxLimit = n }
}

// WithResourceTag sets the documentation tag of the collection and its items.
func WithResourceTag[K any](tag string) TableResourceOption[K] {
	return func(c *tableResourceConfig[K]) { c.tag = tag }
}

// WithItem extends each item resource, for example with extra mutations.
func WithItem[K any](fn func(key K, item *resource.Resource)) TableResourceOption[K] {
	return func(c *tableResourceConfig[K]) { c.item = fn }
}

// WithCountOptions adds options to the count query, such as result caching.
func WithCountOptions[K any](opts ...resource.OpOption) TableResourceOption[K] {
	return func(c *tableResourceConfig[K]) { c.count = append(c.count, opts...) }
}

// TableResource exposes table as a resource: get lists rows, post inserts a
// row and returns its key, count returns the number of rows, and the item
// resource keyed by the primary key supports get, put (upsert) and delete.
// K must be the primary key's Go type.
func TableResource[T, K any](table *Table[T], name string, opts ...TableResourceOption[K]) *resource.Resource {
	if kt := reflect.TypeFor[K](); kt != table.PK.Type {
		panic(fmt.Sprintf("sql: %s: key type %s does not match primary key %s %s", table.Name, kt, table.PK.Name, table.PK.Type))
	}
	cfg := tableResourceConfig[K]{maxLimit: 1000, tag: name}
	for _, opt := range opts {
		opt(&cfg)
	}

	keyOf := func(v T) K {
		return reflect.ValueOf(v).FieldByIndex(table.PK.Index).Interface().(K)
	}

	r := resource.New(name, resource.WithTag(cfg.tag))
	r.Handle(
		resource.Op("get", func(ctx context.Context, in ListIn) ([]T, error) {
			limit, offset := DefaultListLimit, 0
			if in.Limit != nil {
				limit = *in.Limit
			}
			if in.Offset != nil {
				offset = *in.Offset
			}
			if limit > cfg.maxLimit {
				return nil, errs.BadRequest("limit exceeds %d", cfg.maxLimit)
			}
			rows, err := table.Select(ctx, OrderBy(table.PK.Name), Limit(limit), Offset(offset))
			if rows == nil && err == nil {
				rows = []T{}
			}
			return rows, err
		}, resource.WithOpDescription("Lists "+name+"."), resource.WithSecurity(cfg.read...)),
		resource.Op("post", func(ctx context.Context, in RowIn[T]) (K, error) {
			if err := table.Insert(ctx, in.Row); err != nil {
				var zero K
				return zero, err
			}
			return keyOf(in.Row), nil
		}, resource.WithOpDescription("Creates a row and returns its key."), resource.WithSecurity(cfg.write...)),
	)
	resource.Query(r, "count", func(ctx context.Context, _ struct{}) (int, error) {
		return table.Count(ctx, nil)
	}, append([]resource.OpOption{resource.WithOpDescription("Counts " + name + "."), resource.WithSecurity(cfg.read...)}, cfg.count...)...)

	resource.Item(r, table.PK.Name, func(key K) *resource.Resource {
		item := resource.New(name+"_item", resource.WithTag(cfg.tag))
		read := func(ctx context.Context) (T, error) {
			v, err := table.Read(ctx, key)
			if err != nil {
				var zero T
				return zero, err
			}
			if v == nil {
				var zero T
				return zero, errs.NotFound("%s not found", table.PK.Name)
			}
			return *v, nil
		}
		item.Handle(
			resource.Op("get", func(ctx context.Context, _ struct{}) (T, error) {
				return read(ctx)
			}, resource.WithOpDescription("Reads a row."), resource.WithSecurity(cfg.read...)),
			resource.Op("put", func(ctx context.Context, in RowIn[T]) (resource.NoContent, error) {
				if !reflect.DeepEqual(keyOf(in.Row), key) {
					return resource.NoContent{}, errs.BadRequest("%s does not match path", table.PK.Name)
				}
				return resource.NoContent{}, table.Upsert(ctx, in.Row)
			}, resource.WithOpDescription("Creates or replaces a row."), resource.WithSecurity(cfg.write...)),
			resource.Op("delete", func(ctx context.Context, _ struct{}) (resource.NoContent, error) {
				err := table.DB.Transaction(ctx, func(ctx context.Context) error {
					if _, err := read(ctx); err != nil {
						return err
					}
					return table.Delete(ctx, key)
				})
				return resource.NoContent{}, err
			}, resource.WithOpDescription("Deletes a row."), resource.WithSecurity(cfg.write...)),
		)
		if cfg.item != nil {
			cfg.item(key, item)
		}
		return item
	})
	return r
}
