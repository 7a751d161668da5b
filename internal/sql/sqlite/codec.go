// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sqlite

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/fondat/fondat-core/internal/sql"
)

var (
	timeType            = reflect.TypeFor[time.Time]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// Column types.
const (
	typeInteger = "INTEGER"
	typeReal    = "REAL"
	typeText    = "TEXT"
	typeBlob    = "BLOB"
)

type codec struct {
	sqlType string
	encode  func(rv reflect.Value) (any, error)
	decode  func(src any) (reflect.Value, error)
	typ     reflect.Type
}

var _ sql.Codec = (*codec)(nil)

func (c *codec) SQLType() string { return c.sqlType }

func (c *codec) Encode(v any) (any, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		if c.typ.Kind() == reflect.Pointer {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: nil value for %s", c.typ)
	}
	if c.typ.Kind() == reflect.Pointer && rv.Type() == c.typ.Elem() {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		rv = ptr
	}
	if rv.Type() != c.typ {
		if !rv.Type().ConvertibleTo(c.typ) || (c.typ.Kind() == reflect.String) != (rv.Kind() == reflect.String) {
			return nil, fmt.Errorf("sqlite: cannot encode %s as %s", rv.Type(), c.typ)
		}
		rv = rv.Convert(c.typ)
	}
	return c.encode(rv)
}

func (c *codec) Decode(src any) (reflect.Value, error) {
	return c.decode(src)
}

// newCodec maps t onto a SQLite storage class: bool and integers to INTEGER,
// floats to REAL, strings, times and text-marshaled values (uuid, decimal) to
// TEXT, []byte to BLOB, and structs, maps and slices to JSON TEXT.
func newCodec(t reflect.Type) (*codec, error) {
	if t.Kind() == reflect.Pointer {
		return nullable(t)
	}
	switch {
	case t == timeType:
		return &codec{sqlType: typeText, typ: t,
			encode: func(rv reflect.Value) (any, error) {
				return rv.Interface().(time.Time).UTC().Format(time.RFC3339Nano), nil
			},
			decode: func(src any) (reflect.Value, error) {
				s, err := text(src, t)
				if err != nil {
					return reflect.Value{}, err
				}
				tm, err := time.Parse(time.RFC3339Nano, s)
				if err != nil {
					return reflect.Value{}, fmt.Errorf("sqlite: decode %s: %w", t, err)
				}
				return reflect.ValueOf(tm), nil
			},
		}, nil
	case t.Implements(textMarshalerType) && reflect.PointerTo(t).Implements(textUnmarshalerType):
		return &codec{sqlType: typeText, typ: t,
			encode: func(rv reflect.Value) (any, error) {
				b, err := rv.Interface().(encoding.TextMarshaler).MarshalText()
				if err != nil {
					return nil, err
				}
				return string(b), nil
			},
			decode: func(src any) (reflect.Value, error) {
				s, err := text(src, t)
				if err != nil {
					return reflect.Value{}, err
				}
				ptr := reflect.New(t)
				if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
					return reflect.Value{}, fmt.Errorf("sqlite: decode %s: %w", t, err)
				}
				return ptr.Elem(), nil
			},
		}, nil
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		return &codec{sqlType: typeBlob, typ: t,
			encode: func(rv reflect.Value) (any, error) {
				return bytes.Clone(rv.Bytes()), nil
			},
			decode: func(src any) (reflect.Value, error) {
				v := reflect.New(t).Elem()
				switch src := src.(type) {
				case []byte:
					v.SetBytes(bytes.Clone(src))
				case string:
					v.SetBytes([]byte(src))
				default:
					return reflect.Value{}, mismatch(src, t)
				}
				return v, nil
			},
		}, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return &codec{sqlType: typeInteger, typ: t,
			encode: func(rv reflect.Value) (any, error) {
				if rv.Bool() {
					return int64(1), nil
				}
				return int64(0), nil
			},
			decode: func(src any) (reflect.Value, error) {
				n, ok := src.(int64)
				if !ok {
					return reflect.Value{}, mismatch(src, t)
				}
				v := reflect.New(t).Elem()
				v.SetBool(n != 0)
				return v, nil
			},
		}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &codec{sqlType: typeInteger, typ: t,
			encode: func(rv reflect.Value) (any, error) { return rv.Int(), nil },
			decode: func(src any) (reflect.Value, error) {
				n, ok := src.(int64)
				if !ok {
					return reflect.Value{}, mismatch(src, t)
				}
				v := reflect.New(t).Elem()
				if v.OverflowInt(n) {
					return reflect.Value{}, fmt.Errorf("sqlite: %d overflows %s", n, t)
				}
				v.SetInt(n)
				return v, nil
			},
		}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &codec{sqlType: typeInteger, typ: t,
			encode: func(rv reflect.Value) (any, error) {
				n := rv.Uint()
				if n > math.MaxInt64 {
					return nil, fmt.Errorf("sqlite: %d overflows INTEGER", n)
				}
				return int64(n), nil
			},
			decode: func(src any) (reflect.Value, error) {
				n, ok := src.(int64)
				if !ok || n < 0 {
					return reflect.Value{}, mismatch(src, t)
				}
				v := reflect.New(t).Elem()
				if v.OverflowUint(uint64(n)) {
					return reflect.Value{}, fmt.Errorf("sqlite: %d overflows %s", n, t)
				}
				v.SetUint(uint64(n))
				return v, nil
			},
		}, nil
	case reflect.Float32, reflect.Float64:
		return &codec{sqlType: typeReal, typ: t,
			encode: func(rv reflect.Value) (any, error) { return rv.Float(), nil },
			decode: func(src any) (reflect.Value, error) {
				v := reflect.New(t).Elem()
				switch src := src.(type) {
				case float64:
					v.SetFloat(src)
				case int64:
					v.SetFloat(float64(src))
				default:
					return reflect.Value{}, mismatch(src, t)
				}
				return v, nil
			},
		}, nil
	case reflect.String:
		return &codec{sqlType: typeText, typ: t,
			encode: func(rv reflect.Value) (any, error) { return rv.String(), nil },
			decode: func(src any) (reflect.Value, error) {
				s, err := text(src, t)
				if err != nil {
					return reflect.Value{}, err
				}
				v := reflect.New(t).Elem()
				v.SetString(s)
				return v, nil
			},
		}, nil
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		return &codec{sqlType: typeText, typ: t,
			encode: func(rv reflect.Value) (any, error) {
				b, err := json.Marshal(rv.Interface())
				if err != nil {
					return nil, err
				}
				return string(b), nil
			},
			decode: func(src any) (reflect.Value, error) {
				s, err := text(src, t)
				if err != nil {
					return reflect.Value{}, err
				}
				ptr := reflect.New(t)
				if err := json.Unmarshal([]byte(s), ptr.Interface()); err != nil {
					return reflect.Value{}, fmt.Errorf("sqlite: decode %s: %w", t, err)
				}
				return ptr.Elem(), nil
			},
		}, nil
	}
	return nil, fmt.Errorf("sqlite: unsupported type %s", t)
}

// nullable wraps the codec of t's element type; nil maps to NULL.
func nullable(t reflect.Type) (*codec, error) {
	inner, err := newCodec(t.Elem())
	if err != nil {
		return nil, err
	}
	return &codec{sqlType: inner.sqlType, typ: t,
		encode: func(rv reflect.Value) (any, error) {
			if rv.IsNil() {
				return nil, nil
			}
			return inner.encode(rv.Elem())
		},
		decode: func(src any) (reflect.Value, error) {
			if src == nil {
				return reflect.Zero(t), nil
			}
			v, err := inner.decode(src)
			if err != nil {
				return reflect.Value{}, err
			}
			ptr := reflect.New(t.Elem())
			ptr.Elem().Set(v)
			return ptr, nil
		},
	}, nil
}

func text(src any, t reflect.Type) (string, error) {
	switch src := src.(type) {
	case string:
		return src, nil
	case []byte:
		return string(src), nil
	}
	return "", mismatch(src, t)
}

func mismatch(src any, t reflect.Type) error {
	if src == nil {
		return fmt.Errorf("sqlite: unexpected NULL for %s", t)
	}
	return fmt.Errorf("sqlite: cannot decode %T into %s", src, t)
}
