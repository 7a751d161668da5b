// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/fondat/fondat-core/internal/codec"
)

var schemas sync.Map // reflect.Type -> *openapi3.SchemaRef

// For returns the cached, self-contained schema for t.
func For(t reflect.Type) (*openapi3.SchemaRef, error) {
	if ref, ok := schemas.Load(t); ok {
		return ref.(*openapi3.SchemaRef), nil
	}
	ref, err := NewValidationGenerator().Schema(t)
	if err != nil {
		return nil, err
	}
	actual, _ := schemas.LoadOrStore(t, ref)
	return actual.(*openapi3.SchemaRef), nil
}

// NewValidationGenerator returns a generator whose schemas accept any value
// where a stream is declared.
func NewValidationGenerator() *Generator {
	g := NewGenerator()
	g.opaqueStreams = true
	return g
}

// ValidationError describes why a value does not conform to its schema.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return e.Path + ": " + e.Reason
}

// Validate checks v, declared as type t, against the schema for t.
// Streams are not validated.
func Validate(v any, t reflect.Type) error {
	if t == nil || codec.IsStream(t) {
		return nil
	}
	ref, err := For(t)
	if err != nil {
		return err
	}
	return ValidateValue(v, ref)
}

// ValidateValue checks a Go value against ref through its JSON form.
func ValidateValue(v any, ref *openapi3.SchemaRef) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode for validation: %w", err)
	}
	var data any
	if err := json.Unmarshal(b, &data); err != nil {
		return fmt.Errorf("decode for validation: %w", err)
	}
	return ValidateJSON(emptyCollections(data, ref), ref)
}

// emptyCollections replaces the nulls that nil slices, maps and byte slices
// encode to with empty values wherever the schema does not allow null.
func emptyCollections(data any, ref *openapi3.SchemaRef) any {
	if ref == nil || ref.Value == nil {
		return data
	}
	s := ref.Value
	if data == nil {
		if s.Nullable {
			return nil
		}
		switch {
		case s.Type.Is(openapi3.TypeArray):
			return []any{}
		case s.Type.Is(openapi3.TypeObject) && s.AdditionalProperties.Schema != nil:
			return map[string]any{}
		case s.Type.Is(openapi3.TypeString) && s.Format == "byte":
			return ""
		}
		for _, sub := range s.AllOf {
			if v := emptyCollections(nil, sub); v != nil {
				return v
			}
		}
		return nil
	}
	switch v := data.(type) {
	case []any:
		for i := range v {
			v[i] = emptyCollections(v[i], s.Items)
		}
	case map[string]any:
		for k, val := range v {
			if p, ok := s.Properties[k]; ok {
				v[k] = emptyCollections(val, p)
			} else if s.AdditionalProperties.Schema != nil {
				v[k] = emptyCollections(val, s.AdditionalProperties.Schema)
			}
		}
	}
	for _, sub := range s.AllOf {
		data = emptyCollections(data, sub)
	}
	return data
}

// ValidateJSON checks a JSON-generic value (as produced by encoding/json into any)
// against ref.
func ValidateJSON(data any, ref *openapi3.SchemaRef) error {
	if ref == nil || ref.Value == nil {
		return nil
	}
	err := ref.Value.VisitJSON(data)
	if err == nil {
		return nil
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		return &ValidationError{Path: strings.Join(se.JSONPointer(), "/"), Reason: se.Reason}
	}
	return &ValidationError{Reason: err.Error()}
}
