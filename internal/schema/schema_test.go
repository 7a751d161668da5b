// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package schema

import (
	"reflect"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Address struct {
	Street string `json:"street" minLength:"1"`
	Zip    string `json:"zip,omitempty" pattern:"^[0-9]{5}$"`
}

type Person struct {
	ID       uuid.UUID         `json:"id"`
	Name     string            `json:"name" doc:"Full name." maxLength:"10"`
	Age      int               `json:"age" minimum:"0" maximum:"150"`
	Kind     string            `json:"kind" enum:"human,robot"`
	Tags     []string          `json:"tags,omitempty" maxItems:"2"`
	Home     *Address          `json:"home,omitempty"`
	Work     Address           `json:"work"`
	Born     time.Time         `json:"born"`
	Extra    map[string]string `json:"extra,omitempty"`
	Internal string            `json:"-"`
	secret   string
}

type node struct {
	Value int   `json:"value"`
	Next  *node `json:"next"`
}

type Base struct {
	Created int64 `json:"created"`
}

type Derived struct {
	Base
	Name string `json:"name"`
}

func TestSchema_Scalars(t *testing.T) {
	g := NewGenerator()
	cases := []struct {
		v      any
		typ    string
		format string
	}{
		{"", openapi3.TypeString, ""},
		{true, openapi3.TypeBoolean, ""},
		{int64(0), openapi3.TypeInteger, "int64"},
		{int32(0), openapi3.TypeInteger, "int32"},
		{float64(0), openapi3.TypeNumber, "double"},
		{[]byte(nil), openapi3.TypeString, "byte"},
		{time.Time{}, openapi3.TypeString, "date-time"},
		{uuid.UUID{}, openapi3.TypeString, "uuid"},
	}
	for _, tc := range cases {
		ref, err := g.Schema(reflect.TypeOf(tc.v))
		require.NoError(t, err)
		assert.True(t, ref.Value.Type.Is(tc.typ), "%T", tc.v)
		assert.Equal(t, tc.format, ref.Value.Format, "%T", tc.v)
	}
}

func TestSchema_StructComponent(t *testing.T) {
	g := NewGenerator()
	ref, err := g.Schema(reflect.TypeFor[Person]())
	require.NoError(t, err)

	assert.Equal(t, "#/components/schemas/Person", ref.Ref)
	require.Contains(t, g.Components(), "Person")
	require.Contains(t, g.Components(), "Address")

	s := ref.Value
	assert.ElementsMatch(t, []string{"id", "name", "age", "kind", "work", "born"}, s.Required)
	assert.NotContains(t, s.Properties, "Internal")
	assert.NotContains(t, s.Properties, "secret")
	assert.Equal(t, "Full name.", s.Properties["name"].Value.Description)
	assert.Equal(t, uint64(10), *s.Properties["name"].Value.MaxLength)
	assert.Equal(t, []any{"human", "robot"}, s.Properties["kind"].Value.Enum)
	assert.Equal(t, "#/components/schemas/Address", s.Properties["work"].Ref)
	assert.True(t, s.Properties["home"].Value.Nullable)
	assert.False(t, *s.AdditionalProperties.Has)
}

func TestSchema_Recursive(t *testing.T) {
	g := NewGenerator()
	ref, err := g.Schema(reflect.TypeFor[node]())
	require.NoError(t, err)
	next := ref.Value.Properties["next"].Value
	require.Len(t, next.AllOf, 1)
	assert.Equal(t, ref.Ref, next.AllOf[0].Ref)
}

func TestSchema_Embedded(t *testing.T) {
	g := NewGenerator()
	ref, err := g.Schema(reflect.TypeFor[Derived]())
	require.NoError(t, err)
	assert.Contains(t, ref.Value.Properties, "created")
	assert.Contains(t, ref.Value.Properties, "name")
	assert.NotContains(t, ref.Value.Properties, "Base")
}

func TestSchema_NameCollision(t *testing.T) {
	type Address struct {
		Line string `json:"line"`
	}
	g := NewGenerator()
	_, err := g.Schema(reflect.TypeFor[Person]())
	require.NoError(t, err)
	ref, err := g.Schema(reflect.TypeFor[Address]())
	require.NoError(t, err)
	assert.Equal(t, "#/components/schemas/Address_", ref.Ref)
}

func TestSchema_UnsupportedMapKey(t *testing.T) {
	_, err := NewGenerator().Schema(reflect.TypeFor[map[int]string]())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Person{
		ID:   uuid.New(),
		Name: "Ada",
		Age:  36,
		Kind: "human",
		Work: Address{Street: "Main"},
		Born: time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, Validate(valid, reflect.TypeFor[Person]()))

	cases := map[string]func(p *Person){
		"name too long":    func(p *Person) { p.Name = "Augusta Ada King" },
		"age out of range": func(p *Person) { p.Age = 200 },
		"enum":             func(p *Person) { p.Kind = "alien" },
		"too many tags":    func(p *Person) { p.Tags = []string{"a", "b", "c"} },
		"nested pattern":   func(p *Person) { p.Home = &Address{Street: "x", Zip: "abc"} },
		"nested min":       func(p *Person) { p.Work.Street = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := valid
			mutate(&p)
			err := Validate(p, reflect.TypeFor[Person]())
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
		})
	}
}

func TestValidateJSON_MissingRequired(t *testing.T) {
	ref, err := For(reflect.TypeFor[Address]())
	require.NoError(t, err)
	err = ValidateJSON(map[string]any{"zip": "12345"}, ref)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "street")
}

func TestFor_Cached(t *testing.T) {
	a, err := For(reflect.TypeFor[Person]())
	require.NoError(t, err)
	b, err := For(reflect.TypeFor[Person]())
	require.NoError(t, err)
	assert.Same(t, a, b)
}

type bundle struct {
	Name   string            `json:"name"`
	Tags   []string          `json:"tags"`
	Labels map[string]string `json:"labels"`
	Raw    []byte            `json:"raw"`
	Parts  []Address         `json:"parts"`
	Maybe  *[]string         `json:"maybe"`
}

func TestValidate_NilCollections(t *testing.T) {
	require.NoError(t, Validate([]string(nil), reflect.TypeFor[[]string]()))
	require.NoError(t, Validate(map[string]int(nil), reflect.TypeFor[map[string]int]()))
	require.NoError(t, Validate(bundle{Name: "x"}, reflect.TypeFor[bundle]()))
	require.NoError(t, Validate([]bundle{{Name: "x"}}, reflect.TypeFor[[]bundle]()))

	// a nil slice is empty, so minItems still applies
	type strict struct {
		Needed []string `json:"needed" minItems:"1"`
	}
	require.Error(t, Validate(strict{}, reflect.TypeFor[strict]()))
}
