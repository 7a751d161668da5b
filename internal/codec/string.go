// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package codec converts typed values to and from strings and HTTP bodies.
package codec

import (
	"encoding"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

var (
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
)

// DecodeString decodes s, a query/header/cookie/path value, into a value of type t.
// Scalars are parsed directly, types implementing encoding.TextUnmarshaler
// (time.Time, uuid.UUID, decimal.Decimal, ...) decode themselves, []byte is
// base64, other slices are comma-separated, anything else is JSON.
func DecodeString(s string, t reflect.Type) (reflect.Value, error) {
	if t.Kind() == reflect.Pointer {
		elem, err := DecodeString(s, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	}

	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		ptr := reflect.New(t)
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return reflect.Value{}, fmt.Errorf("invalid %s: %q", typeLabel(t), s)
		}
		return ptr.Elem(), nil
	}

	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid boolean: %q", s)
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid integer: %q", s)
		}
		v.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(s, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid unsigned integer: %q", s)
		}
		v.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, t.Bits())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid number: %q", s)
		}
		v.SetFloat(f)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("invalid base64: %q", s)
			}
			v.SetBytes(b)
			return v, nil
		}
		if s == "" {
			return reflect.MakeSlice(t, 0, 0), nil
		}
		parts := strings.Split(s, ",")
		out := reflect.MakeSlice(t, 0, len(parts))
		for _, part := range parts {
			item, err := DecodeString(part, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, item)
		}
		return out, nil
	default:
		ptr := reflect.New(t)
		if err := json.Unmarshal([]byte(s), ptr.Interface()); err != nil {
			return reflect.Value{}, fmt.Errorf("invalid %s: %w", typeLabel(t), err)
		}
		return ptr.Elem(), nil
	}
	return v, nil
}

// EncodeString is the inverse of DecodeString.
func EncodeString(v reflect.Value) (string, error) {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "", nil
		}
		return EncodeString(v.Elem())
	}
	if v.Type().Implements(textMarshalerType) {
		b, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		return string(b), err
	}
	switch v.Kind() {
	case reflect.String:
		return v.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, v.Type().Bits()), nil
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return base64.StdEncoding.EncodeToString(v.Bytes()), nil
		}
		parts := make([]string, v.Len())
		for i := range parts {
			s, err := EncodeString(v.Index(i))
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, ","), nil
	default:
		b, err := json.Marshal(v.Interface())
		return string(b), err
	}
}

// ParseString is a typed convenience over DecodeString.
func ParseString[T any](s string) (T, error) {
	var zero T
	v, err := DecodeString(s, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return v.Interface().(T), nil
}

func typeLabel(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	return t.Kind().String()
}
