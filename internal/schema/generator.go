// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package schema derives OpenAPI/JSON schemas from Go types and validates
// values against them.
//
// Struct fields are described with tags alongside `json`:
//
//	doc:"text"          description
//	example:"v"         example value (string form, decoded as the field type)
//	default:"v"         default value (string form)
//	format:"f"          format override
//	minLength, maxLength, pattern             strings
//	minimum, maximum                          numbers
//	minItems, maxItems, uniqueItems:"true"    slices
//	enum:"a,b,c"        allowed values
//
// Named struct types become component schemas referenced through $ref.
package schema

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fondat/fondat-core/internal/codec"
)

const componentPrefix = "#/components/schemas/"

var (
	timeType          = reflect.TypeFor[time.Time]()
	uuidType          = reflect.TypeFor[uuid.UUID]()
	decimalType       = reflect.TypeFor[decimal.Decimal]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
	rawMessageType    = reflect.TypeFor[json.RawMessage]()
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
)

// Generator converts Go types to schemas, collecting component schemas as it goes.
// A Generator is not safe for concurrent use.
type Generator struct {
	components openapi3.Schemas
	refs       map[reflect.Type]*openapi3.SchemaRef

	// opaqueStreams maps stream types to the empty schema, so values holding
	// streams still validate.
	opaqueStreams bool
}

// NewGenerator returns an empty generator.
func NewGenerator() *Generator {
	return &Generator{
		components: openapi3.Schemas{},
		refs:       map[reflect.Type]*openapi3.SchemaRef{},
	}
}

// Components returns the component schemas registered so far.
func (g *Generator) Components() openapi3.Schemas {
	return g.components
}

// Schema returns the schema for t.
func (g *Generator) Schema(t reflect.Type) (*openapi3.SchemaRef, error) {
	if t == nil {
		return openapi3.NewSchemaRef("", &openapi3.Schema{}), nil
	}
	if ref, ok := g.refs[t]; ok {
		return ref, nil
	}

	switch {
	case codec.IsStream(t):
		if g.opaqueStreams {
			return inline(&openapi3.Schema{}), nil
		}
		return inline(openapi3.NewStringSchema().WithFormat("binary")), nil
	case t == timeType:
		return inline(openapi3.NewDateTimeSchema()), nil
	case t == uuidType:
		return inline(openapi3.NewUUIDSchema()), nil
	case t == decimalType:
		return inline(openapi3.NewStringSchema().WithFormat("decimal")), nil
	case t == rawMessageType:
		return inline(&openapi3.Schema{}), nil
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem, err := g.Schema(t.Elem())
		if err != nil {
			return nil, err
		}
		return nullable(elem), nil
	case reflect.Bool:
		return inline(openapi3.NewBoolSchema()), nil
	case reflect.String:
		return inline(openapi3.NewStringSchema()), nil
	case reflect.Int, reflect.Int64:
		return inline(openapi3.NewInt64Schema()), nil
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return inline(openapi3.NewInt32Schema()), nil
	case reflect.Uint, reflect.Uint64:
		return inline(openapi3.NewInt64Schema().WithMin(0)), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return inline(openapi3.NewInt32Schema().WithMin(0)), nil
	case reflect.Float32:
		return inline(openapi3.NewFloat64Schema().WithFormat("float")), nil
	case reflect.Float64:
		return inline(openapi3.NewFloat64Schema().WithFormat("double")), nil
	case reflect.Interface:
		return inline(&openapi3.Schema{}), nil
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 && t.Kind() == reflect.Slice {
			return inline(openapi3.NewBytesSchema()), nil
		}
		items, err := g.Schema(t.Elem())
		if err != nil {
			return nil, err
		}
		s := openapi3.NewArraySchema()
		s.Items = items
		return inline(s), nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("schema: map key must be a string: %s", t)
		}
		values, err := g.Schema(t.Elem())
		if err != nil {
			return nil, err
		}
		s := openapi3.NewObjectSchema()
		s.AdditionalProperties = openapi3.AdditionalProperties{Schema: values}
		return inline(s), nil
	case reflect.Struct:
		if t.Implements(textMarshalerType) {
			return inline(openapi3.NewStringSchema()), nil
		}
		if reflect.PointerTo(t).Implements(jsonMarshalerType) {
			return inline(&openapi3.Schema{}), nil
		}
		return g.structSchema(t)
	}
	return nil, fmt.Errorf("schema: unsupported type: %s", t)
}

func (g *Generator) structSchema(t reflect.Type) (*openapi3.SchemaRef, error) {
	s := openapi3.NewObjectSchema()
	s.AdditionalProperties = openapi3.AdditionalProperties{Has: openapi3.BoolPtr(false)}

	var ref *openapi3.SchemaRef
	if t.Name() != "" {
		name := g.componentName(t)
		ref = openapi3.NewSchemaRef(componentPrefix+name, s)
		g.refs[t] = ref
		g.components[name] = openapi3.NewSchemaRef("", s)
	}

	if err := g.addFields(s, t); err != nil {
		if ref != nil {
			delete(g.refs, t)
		}
		return nil, err
	}
	if ref != nil {
		return ref, nil
	}
	return inline(s), nil
}

func (g *Generator) addFields(s *openapi3.Schema, t reflect.Type) error {
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || len(f.Index) > 1 && !promoted(t, f) {
			continue
		}
		if f.Anonymous {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if _, tagged := f.Tag.Lookup("json"); !tagged && ft.Kind() == reflect.Struct {
				continue // fields are promoted by VisibleFields
			}
		}
		name, opts := FieldName(f)
		if name == "" {
			continue
		}
		fs, err := g.FieldSchema(f)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		s.Properties[name] = fs
		if f.Type.Kind() != reflect.Pointer && !opts.omit {
			s.Required = append(s.Required, name)
		}
	}
	return nil
}

// promoted reports whether f, reached through embedding, surfaces in t's JSON.
func promoted(t reflect.Type, f reflect.StructField) bool {
	for i := 0; i < len(f.Index)-1; i++ {
		outer := t.FieldByIndex(f.Index[:i+1])
		if !outer.Anonymous {
			return false
		}
		if _, tagged := outer.Tag.Lookup("json"); tagged {
			return false
		}
	}
	return true
}

type fieldOpts struct {
	omit bool
}

// FieldName returns the JSON name of f, or "" if f is not serialized.
func FieldName(f reflect.StructField) (string, fieldOpts) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", fieldOpts{}
	}
	name, rest, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	return name, fieldOpts{omit: strings.Contains(rest, "omitempty") || strings.Contains(rest, "omitzero")}
}

// FieldSchema returns the schema for a struct field, with its tags applied.
func (g *Generator) FieldSchema(f reflect.StructField) (*openapi3.SchemaRef, error) {
	base, err := g.Schema(f.Type)
	if err != nil {
		return nil, err
	}
	if !hasSchemaTags(f.Tag) {
		return base, nil
	}
	if base.Ref != "" {
		// siblings of $ref are ignored; only the description can be attached.
		if doc := f.Tag.Get("doc"); doc != "" {
			return inline(&openapi3.Schema{Description: doc, AllOf: openapi3.SchemaRefs{base}}), nil
		}
		return base, nil
	}
	s := *base.Value
	target := &s
	if len(s.AllOf) == 1 && s.Nullable && s.AllOf[0].Ref != "" {
		target = nil // nullable reference; constraints belong to the component
	}
	if doc := f.Tag.Get("doc"); doc != "" {
		s.Description = doc
	}
	if target != nil {
		if err := applyTags(target, f); err != nil {
			return nil, err
		}
	}
	return inline(&s), nil
}

var schemaTags = []string{"doc", "example", "default", "format", "minLength", "maxLength", "pattern",
	"minimum", "maximum", "minItems", "maxItems", "uniqueItems", "enum"}

func hasSchemaTags(tag reflect.StructTag) bool {
	for _, k := range schemaTags {
		if _, ok := tag.Lookup(k); ok {
			return true
		}
	}
	return false
}

func applyTags(s *openapi3.Schema, f reflect.StructField) error {
	valueType := f.Type
	for valueType.Kind() == reflect.Pointer {
		valueType = valueType.Elem()
	}
	tag := f.Tag
	if v, ok := tag.Lookup("format"); ok {
		s.Format = v
	}
	if v, ok := tag.Lookup("pattern"); ok {
		if _, err := regexp.Compile(v); err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
		s.Pattern = v
	}
	if v, ok := tag.Lookup("minLength"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid minLength: %w", err)
		}
		s.MinLength = n
	}
	if v, ok := tag.Lookup("maxLength"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid maxLength: %w", err)
		}
		s.MaxLength = openapi3.Uint64Ptr(n)
	}
	if v, ok := tag.Lookup("minimum"); ok {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid minimum: %w", err)
		}
		s.Min = openapi3.Float64Ptr(n)
	}
	if v, ok := tag.Lookup("maximum"); ok {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid maximum: %w", err)
		}
		s.Max = openapi3.Float64Ptr(n)
	}
	if v, ok := tag.Lookup("minItems"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid minItems: %w", err)
		}
		s.MinItems = n
	}
	if v, ok := tag.Lookup("maxItems"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid maxItems: %w", err)
		}
		s.MaxItems = openapi3.Uint64Ptr(n)
	}
	if v, ok := tag.Lookup("uniqueItems"); ok {
		s.UniqueItems = v == "true"
	}
	if v, ok := tag.Lookup("enum"); ok {
		for _, item := range strings.Split(v, ",") {
			jv, err := jsonValue(item, valueType)
			if err != nil {
				return fmt.Errorf("invalid enum value: %w", err)
			}
			s.Enum = append(s.Enum, jv)
		}
	}
	if v, ok := tag.Lookup("example"); ok {
		jv, err := jsonValue(v, valueType)
		if err != nil {
			return fmt.Errorf("invalid example: %w", err)
		}
		s.Example = jv
	}
	if v, ok := tag.Lookup("default"); ok {
		jv, err := jsonValue(v, valueType)
		if err != nil {
			return fmt.Errorf("invalid default: %w", err)
		}
		s.Default = jv
	}
	return nil
}

// jsonValue decodes s as type t and returns its JSON-generic form.
func jsonValue(s string, t reflect.Type) (any, error) {
	v, err := codec.DecodeString(s, t)
	if err != nil {
		return nil, err
	}
	return toJSON(v.Interface())
}

func toJSON(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func inline(s *openapi3.Schema) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("", s)
}

func nullable(ref *openapi3.SchemaRef) *openapi3.SchemaRef {
	if ref.Ref != "" {
		return inline(&openapi3.Schema{Nullable: true, AllOf: openapi3.SchemaRefs{ref}})
	}
	s := *ref.Value
	s.Nullable = true
	return inline(&s)
}

var (
	pkgPathPattern = regexp.MustCompile(`[A-Za-z0-9_.\-]+/`)
	invalidName    = regexp.MustCompile(`[^A-Za-z0-9_.\-]+`)
)

func (g *Generator) componentName(t reflect.Type) string {
	name := pkgPathPattern.ReplaceAllString(t.Name(), "")
	name = strings.Trim(invalidName.ReplaceAllString(name, "_"), "_")
	for {
		if _, taken := g.components[name]; !taken {
			return name
		}
		name += "_"
	}
}
