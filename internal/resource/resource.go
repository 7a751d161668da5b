// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package resource models addressable resources that expose operations named
// after HTTP methods.
//
// A resource holds operations (get, put, post, delete, patch, ...), named
// subordinate resources, and optionally a keyed item resource. The same tree is
// served over HTTP by httpapi and documented by openapi.
package resource

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/fondat/fondat-core/internal/codec"
	"github.com/fondat/fondat-core/internal/errs"
	"github.com/fondat/fondat-core/internal/lazy"
)

// TagInner marks a resource that inherits the tag of its outer resource.
const TagInner = "__inner__"

// Resource is a node in a resource tree.
type Resource struct {
	Name        string
	Tag         string
	Description string

	ops      map[string]*Operation
	children lazy.Map[*Resource]
	item     *ItemSpec

	parent  *Resource
	segment string
}

// Option configures a Resource.
type Option func(*Resource)

// WithTag sets the tag used to group the resource's operations in documentation.
func WithTag(tag string) Option {
	return func(r *Resource) { r.Tag = tag }
}

// WithDescription sets the resource description.
func WithDescription(description string) Option {
	return func(r *Resource) { r.Description = description }
}

// New returns an empty resource. The tag defaults to the name.
func New(name string, opts ...Option) *Resource {
	r := &Resource{Name: name, Tag: name, ops: map[string]*Operation{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle registers operations on r, keyed by their lower-cased method.
func (r *Resource) Handle(ops ...*Operation) *Resource {
	for _, op := range ops {
		op.resource = r
		r.ops[op.Method] = op
	}
	return r
}

// Operation returns the operation for method, matched case-insensitively.
func (r *Resource) Operation(method string) (*Operation, bool) {
	op, ok := r.ops[strings.ToLower(method)]
	return op, ok
}

// Operations returns r's operations ordered by method.
func (r *Resource) Operations() []*Operation {
	ops := make([]*Operation, 0, len(r.ops))
	for _, op := range r.ops {
		ops = append(ops, op)
	}
	slices.SortFunc(ops, func(a, b *Operation) int { return strings.Compare(a.Method, b.Method) })
	return ops
}

// Methods returns the upper-cased methods r supports, sorted.
func (r *Resource) Methods() []string {
	methods := make([]string, 0, len(r.ops))
	for _, op := range r.Operations() {
		methods = append(methods, strings.ToUpper(op.Method))
	}
	return methods
}

// Mount adds child as a named subordinate of r. A resource mounted twice
// takes its path from the last mount.
func (r *Resource) Mount(name string, child *Resource) *Resource {
	child.attach(r, name)
	r.children.Set(name, child)
	return r
}

// MountLazy adds a named subordinate built on first access.
func (r *Resource) MountLazy(name string, build func() *Resource) *Resource {
	r.children.SetLazy(name, func() *Resource {
		child := build()
		child.attach(r, name)
		return child
	})
	return r
}

func (r *Resource) attach(parent *Resource, segment string) {
	if r != nil {
		r.parent, r.segment = parent, segment
	}
}

// Path returns the segments from the outermost resource down to r, joined by
// slashes. The outermost resource contributes its name. Cached operation
// results are keyed by it.
func (r *Resource) Path() string {
	if r.parent == nil {
		return r.Name
	}
	return r.parent.Path() + "/" + r.segment
}

// Child returns the named subordinate.
func (r *Resource) Child(name string) (*Resource, bool) {
	return r.children.Get(name)
}

// Children returns subordinate names in the order they were mounted.
func (r *Resource) Children() []string {
	return r.children.Keys()
}

// TagFor returns r's tag, resolving TagInner against the outer resource's tag.
func (r *Resource) TagFor(outer string) string {
	if r.Tag == TagInner {
		return outer
	}
	return r.Tag
}

// ItemSpec describes a keyed item subordinate.
type ItemSpec struct {
	// Param names the path parameter that carries the key.
	Param string
	// KeyType is the Go type the path segment is decoded into.
	KeyType reflect.Type

	resolve func(segment string) (*Resource, error)
	sample  func() *Resource
}

// Sample returns the item resource built for the zero key, for documentation.
func (s *ItemSpec) Sample() *Resource {
	return s.sample()
}

// Item returns r's item spec, if r has one.
func (r *Resource) Item() (*ItemSpec, bool) {
	return r.item, r.item != nil
}

// Item attaches a keyed item subordinate to r. Each path segment that does not
// name a child is decoded into K and passed to build. build must return a new
// resource on each call and must not perform I/O; it is also called with the
// zero key to document the item.
func Item[K any](r *Resource, param string, build func(key K) *Resource) *Resource {
	keyType := reflect.TypeFor[K]()
	r.item = &ItemSpec{
		Param:   param,
		KeyType: keyType,
		resolve: func(segment string) (*Resource, error) {
			v, err := codec.DecodeString(segment, keyType)
			if err != nil {
				return nil, errs.NotFound("invalid %s: %v", param, err)
			}
			return build(v.Interface().(K)), nil
		},
		sample: func() *Resource {
			var zero K
			return build(zero)
		},
	}
	return r
}

// Subordinate resolves one path segment: a named child first, then the item.
func (r *Resource) Subordinate(segment string) (*Resource, error) {
	if segment == "" {
		return nil, errs.ErrNotFound
	}
	if child, ok := r.children.Get(segment); ok {
		if child == nil {
			return nil, errs.ErrNotFound
		}
		return child, nil
	}
	if r.item == nil {
		return nil, errs.ErrNotFound
	}
	item, err := r.item.resolve(segment)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, errs.ErrNotFound
	}
	item.attach(r, segment)
	return item, nil
}

// Container returns a resource whose only content is the given subordinates,
// mounted in name order.
func Container(name string, children map[string]*Resource, opts ...Option) *Resource {
	r := New(name, opts...)
	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		r.Mount(k, children[k])
	}
	return r
}

// Query adds an inner resource with a single get operation, mounted under name.
func Query[In, Out any](r *Resource, name string, fn func(context.Context, In) (Out, error), opts ...OpOption) *Resource {
	return inner(r, name, Op("get", fn, append([]OpOption{WithType(TypeQuery)}, opts...)...))
}

// Mutation adds an inner resource with a single post operation, mounted under name.
func Mutation[In, Out any](r *Resource, name string, fn func(context.Context, In) (Out, error), opts ...OpOption) *Resource {
	return inner(r, name, Op("post", fn, append([]OpOption{WithType(TypeMutation)}, opts...)...))
}

func inner(r *Resource, name string, op *Operation) *Resource {
	child := New(name, WithTag(TagInner), WithDescription(op.Description))
	child.Handle(op)
	r.Mount(name, child)
	return child
}

func (r *Resource) String() string {
	return fmt.Sprintf("resource(%s)", r.Name)
}
