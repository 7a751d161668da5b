// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package httpapi

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/fondat/fondat-core/internal/codec"
	"github.com/fondat/fondat-core/internal/errs"
	"github.com/fondat/fondat-core/internal/schema"
)

// Location is where a parameter is carried in a request.
type Location string

const (
	InQuery  Location = "query"
	InHeader Location = "header"
	InCookie Location = "cookie"
	InBody   Location = "body"
)

func (l Location) describe() string {
	switch l {
	case InQuery:
		return "query parameter"
	case InHeader:
		return "request header"
	case InCookie:
		return "request cookie"
	default:
		return "request body"
	}
}

// Param describes one bound input field.
type Param struct {
	Name     string
	In       Location
	Type     reflect.Type
	Field    reflect.StructField
	Required bool
	Default  *string

	index  []int
	schema *openapi3.SchemaRef
}

func (p *Param) String() string {
	if p.In == InBody {
		return p.In.describe()
	}
	return p.In.describe() + ": " + p.Name
}

// Binding maps an operation input type onto request parameters.
type Binding struct {
	Type   reflect.Type
	Params []*Param
	// Whole is set when the entire input is the request body.
	Whole bool
}

// Body returns the body parameter, if any.
func (b *Binding) Body() (*Param, bool) {
	for _, p := range b.Params {
		if p.In == InBody {
			return p, true
		}
	}
	return nil, false
}

var bindings sync.Map // reflect.Type -> *Binding

// BindingFor returns the binding for an operation input type. Struct inputs
// bind each exported field: `query`, `header` and `cookie` tags name the
// parameter, a `body` tag marks the body, and untagged fields are query
// parameters named by their JSON name. Any other input type is the body.
func BindingFor(t reflect.Type) (*Binding, error) {
	if b, ok := bindings.Load(t); ok {
		return b.(*Binding), nil
	}
	b, err := newBinding(t)
	if err != nil {
		return nil, err
	}
	actual, _ := bindings.LoadOrStore(t, b)
	return actual.(*Binding), nil
}

func newBinding(t reflect.Type) (*Binding, error) {
	g := schema.NewValidationGenerator()
	if t.Kind() != reflect.Struct || codec.IsStream(t) || isSpecialStruct(t) {
		ref, err := g.Schema(t)
		if err != nil {
			return nil, err
		}
		return &Binding{Type: t, Whole: true, Params: []*Param{{
			Name:     "body",
			In:       InBody,
			Type:     t,
			Required: t.Kind() != reflect.Pointer,
			schema:   ref,
		}}}, nil
	}

	b := &Binding{Type: t}
	seen := map[string]bool{}
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		p := &Param{Field: f, Type: f.Type, index: f.Index}
		switch {
		case hasTag(f, "body"):
			p.In, p.Name = InBody, "body"
		case hasTag(f, "query"):
			p.In, p.Name = InQuery, f.Tag.Get("query")
		case hasTag(f, "header"):
			p.In, p.Name = InHeader, f.Tag.Get("header")
		case hasTag(f, "cookie"):
			p.In, p.Name = InCookie, f.Tag.Get("cookie")
		default:
			name, _ := schema.FieldName(f)
			if name == "" {
				continue
			}
			p.In, p.Name = InQuery, name
		}
		if p.Name == "" {
			p.Name = f.Name
		}
		if p.In == InHeader {
			p.Name = http.CanonicalHeaderKey(p.Name)
		}
		key := string(p.In) + ":" + p.Name
		if seen[key] || p.In == InBody && seen["body"] {
			return nil, fmt.Errorf("httpapi: %s: duplicate %s", t, p)
		}
		seen[key] = true
		if p.In == InBody {
			seen["body"] = true
		}
		if d, ok := f.Tag.Lookup("default"); ok {
			p.Default = &d
		}
		if codec.IsStream(f.Type) && f.Type != streamType {
			return nil, fmt.Errorf("httpapi: %s.%s: stream fields must be declared as codec.Stream", t, f.Name)
		}
		p.Required = f.Type.Kind() != reflect.Pointer && p.Default == nil && !omitEmpty(f)
		ref, err := g.FieldSchema(f)
		if err != nil {
			return nil, fmt.Errorf("httpapi: %s.%s: %w", t, f.Name, err)
		}
		p.schema = ref
		b.Params = append(b.Params, p)
	}
	return b, nil
}

func hasTag(f reflect.StructField, key string) bool {
	_, ok := f.Tag.Lookup(key)
	return ok
}

func omitEmpty(f reflect.StructField) bool {
	_, rest, _ := strings.Cut(f.Tag.Get("json"), ",")
	return strings.Contains(rest, "omitempty") || strings.Contains(rest, "omitzero")
}

var streamType = reflect.TypeFor[codec.Stream]()

// isSpecialStruct reports struct types that encode as scalars.
func isSpecialStruct(t reflect.Type) bool {
	return t.Implements(reflect.TypeFor[encoding.TextMarshaler]()) ||
		t.Implements(reflect.TypeFor[json.Marshaler]())
}

// Bind builds an operation input from r.
func (b *Binding) Bind(r *http.Request, maxBody int64) (any, error) {
	if b.Whole {
		v, err := b.Params[0].body(r, maxBody)
		if err != nil {
			return nil, err
		}
		if !v.IsValid() {
			return reflect.Zero(b.Type).Interface(), nil
		}
		return v.Interface(), nil
	}

	in := reflect.New(b.Type).Elem()
	for _, p := range b.Params {
		var (
			v   reflect.Value
			err error
		)
		if p.In == InBody {
			v, err = p.body(r, maxBody)
		} else {
			v, err = p.value(r)
		}
		if err != nil {
			return nil, err
		}
		if v.IsValid() {
			in.FieldByIndex(p.index).Set(v)
		}
	}
	return in.Interface(), nil
}

func (p *Param) lookup(r *http.Request) (string, bool) {
	switch p.In {
	case InQuery:
		vals, ok := r.URL.Query()[p.Name]
		if !ok || len(vals) == 0 {
			return "", false
		}
		return vals[0], true
	case InHeader:
		vals := r.Header.Values(p.Name)
		if len(vals) == 0 {
			return "", false
		}
		return strings.Join(vals, ","), true
	case InCookie:
		c, err := r.Cookie(p.Name)
		if err != nil {
			return "", false
		}
		return c.Value, true
	}
	return "", false
}

func (p *Param) value(r *http.Request) (reflect.Value, error) {
	s, ok := p.lookup(r)
	if !ok {
		if p.Default == nil {
			if p.Required {
				return reflect.Value{}, errs.BadRequest("expecting value in %s", p)
			}
			return reflect.Value{}, nil
		}
		s = *p.Default
	}
	if codec.IsStream(p.Type) {
		b, err := codec.DecodeString(s, reflect.TypeFor[[]byte]())
		if err != nil {
			return reflect.Value{}, errs.BadRequest("%v in %s", err, p)
		}
		return reflect.ValueOf(codec.NewBytesStream(b.Bytes(), "")), nil
	}
	v, err := codec.DecodeString(s, p.Type)
	if err != nil {
		return reflect.Value{}, errs.BadRequest("%v in %s", err, p)
	}
	if err := schema.ValidateValue(v.Interface(), p.schema); err != nil {
		return reflect.Value{}, errs.BadRequest("%v in %s", err, p)
	}
	return v, nil
}

func (p *Param) body(r *http.Request, maxBody int64) (reflect.Value, error) {
	if codec.IsStream(p.Type) {
		if r.Body == nil || r.Body == http.NoBody {
			if p.Required {
				return reflect.Value{}, errs.BadRequest("expecting value in %s", p)
			}
			return reflect.Value{}, nil
		}
		ct := r.Header.Get("Content-Type")
		return reflect.ValueOf(codec.NewReaderStream(r.Body, ct, r.ContentLength)), nil
	}

	var raw []byte
	if r.Body != nil {
		var err error
		raw, err = io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return reflect.Value{}, errs.New(http.StatusRequestEntityTooLarge, "request body exceeds %d bytes", tooLarge.Limit)
			}
			return reflect.Value{}, errs.BadRequest("%v in %s", err, p)
		}
	}
	if len(raw) == 0 { // empty body is no body
		if p.Required {
			return reflect.Value{}, errs.BadRequest("expecting value in %s", p)
		}
		return reflect.Value{}, nil
	}

	if codec.ContentType(p.Type) == codec.ContentTypeJSON {
		var data any
		if err := json.Unmarshal(raw, &data); err != nil {
			return reflect.Value{}, errs.BadRequest("invalid JSON: %v in %s", err, p)
		}
		if err := schema.ValidateJSON(data, p.schema); err != nil {
			return reflect.Value{}, errs.BadRequest("%v in %s", err, p)
		}
	}
	v, err := codec.Decode(p.Type, raw)
	if err != nil {
		return reflect.Value{}, errs.BadRequest("%v in %s", err, p)
	}
	return reflect.ValueOf(v), nil
}
