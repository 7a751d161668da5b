// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"unicode/utf8"
)

const (
	ContentTypeJSON        = "application/json"
	ContentTypeText        = "text/plain; charset=utf-8"
	ContentTypeOctetStream = "application/octet-stream"
)

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

// ContentType returns the media type used for bodies of type t.
func ContentType(t reflect.Type) string {
	switch {
	case IsStream(t):
		return ContentTypeOctetStream
	case isBytes(t):
		return ContentTypeOctetStream
	case t.Kind() == reflect.String:
		return ContentTypeText
	default:
		return ContentTypeJSON
	}
}

// Encode encodes v, declared as type t, into a body.
func Encode(t reflect.Type, v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	switch {
	case isBytes(t):
		if !rv.IsValid() {
			return nil, nil
		}
		return rv.Bytes(), nil
	case t.Kind() == reflect.String:
		if !rv.IsValid() {
			return nil, nil
		}
		return []byte(rv.String()), nil
	default:
		return json.Marshal(v)
	}
}

// Decode decodes body b into a value of type t. JSON objects must not carry
// unknown fields.
func Decode(t reflect.Type, b []byte) (any, error) {
	switch {
	case isBytes(t):
		v := reflect.New(t).Elem()
		v.SetBytes(bytes.Clone(b))
		return v.Interface(), nil
	case t.Kind() == reflect.String:
		if !utf8.Valid(b) {
			return nil, errors.New("invalid UTF-8 text")
		}
		v := reflect.New(t).Elem()
		v.SetString(string(b))
		return v.Interface(), nil
	default:
		ptr := reflect.New(t)
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(ptr.Interface()); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		if dec.More() {
			return nil, errors.New("invalid JSON: trailing data")
		}
		return ptr.Elem().Interface(), nil
	}
}
