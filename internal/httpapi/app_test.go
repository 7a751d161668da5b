// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fondat/fondat-core/internal/codec"
	"github.com/fondat/fondat-core/internal/errs"
	"github.com/fondat/fondat-core/internal/resource"
)

type note struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text" minLength:"1"`
}

type noteIn struct {
	Note note `body:""`
}

type echoIn struct {
	A     int     `json:"a"`
	B     *string `json:"b,omitempty"`
	Trace string  `header:"x-trace" json:",omitempty"`
	Theme string  `cookie:"theme" default:"light"`
}

type echoOut struct {
	A     int    `json:"a"`
	B     string `json:"b"`
	Trace string `json:"trace"`
	Theme string `json:"theme"`
}

var noteID = uuid.MustParse("705d9048-97d6-4071-8359-3dbf0531fee9")

func newTree() *resource.Resource {
	root := resource.New("root")
	root.Handle(resource.Op("get", func(_ context.Context, in echoIn) (echoOut, error) {
		out := echoOut{A: in.A, Trace: in.Trace, Theme: in.Theme}
		if in.B != nil {
			out.B = *in.B
		}
		return out, nil
	}))

	notes := resource.New("notes")
	notes.Handle(resource.Op("post", func(_ context.Context, in noteIn) (uuid.UUID, error) {
		return noteID, nil
	}))
	resource.Item(notes, "id", func(id uuid.UUID) *resource.Resource {
		item := resource.New("note")
		item.Handle(
			resource.Op("get", func(context.Context, struct{}) (note, error) {
				if id != noteID {
					return note{}, errs.NotFound("note not found")
				}
				return note{ID: id, Text: "hello"}, nil
			}),
			resource.Op("delete", func(context.Context, struct{}) (resource.NoContent, error) {
				return resource.NoContent{}, nil
			}),
		)
		return item
	})
	root.Mount("notes", notes)

	resource.Query(root, "empty", func(context.Context, struct{}) (string, error) { return "", nil })
	resource.Query(root, "boom", func(context.Context, struct{}) (string, error) {
		return "", errors.New("database on fire")
	})
	resource.Query(root, "blob", func(context.Context, struct{}) (codec.Stream, error) {
		return codec.NewBytesStream([]byte("raw bytes"), "text/x-raw"), nil
	})
	resource.Mutation(root, "upload", func(_ context.Context, s codec.Stream) (string, error) {
		b, err := io.ReadAll(s)
		if err != nil {
			return "", err
		}
		return s.ContentType() + ":" + string(b), nil
	})
	resource.Mutation(root, "text", func(_ context.Context, s string) (string, error) {
		return strings.ToUpper(s), nil
	})
	return root
}

func serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) errs.Body {
	t.Helper()
	var body errs.Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestMountPath(t *testing.T) {
	app := New(newTree(), WithPath("/api/"))
	assert.Equal(t, "/api/", app.Path())

	rec := serve(t, app, httptest.NewRequest(http.MethodGet, "/other/notes", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errs.Body{Error: 404, Detail: "Not Found"}, errorBody(t, rec))

	rec = serve(t, app, httptest.NewRequest(http.MethodGet, "/api?a=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQueryHeaderCookie(t *testing.T) {
	app := New(newTree())

	req := httptest.NewRequest(http.MethodGet, "/?a=42&b=x", nil)
	req.Header.Set("X-Trace", "t1")
	req.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})
	rec := serve(t, app, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var out echoOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, echoOut{A: 42, B: "x", Trace: "t1", Theme: "dark"}, out)
	assert.Equal(t, rec.Body.Len(), mustAtoi(t, rec.Header().Get("Content-Length")))

	rec = serve(t, app, httptest.NewRequest(http.MethodGet, "/?a=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "light", out.Theme)
}

func TestParamErrors(t *testing.T) {
	app := New(newTree())

	rec := serve(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "expecting value in query parameter: a", errorBody(t, rec).Detail)

	rec = serve(t, app, httptest.NewRequest(http.MethodGet, "/?a=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec).Detail, "in query parameter: a")
}

func TestBody(t *testing.T) {
	app := New(newTree())

	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader(`{"id":"`+noteID.String()+`","text":"hi"}`))
	rec := serve(t, app, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `"`+noteID.String()+`"`, rec.Body.String())

	for name, body := range map[string]string{
		"empty":         "",
		"missing field": `{"id":"` + noteID.String() + `"}`,
		"invalid value": `{"id":"` + noteID.String() + `","text":""}`,
		"unknown field": `{"id":"` + noteID.String() + `","text":"x","extra":1}`,
		"malformed":     `{"id":`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(t, app, httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, errorBody(t, rec).Detail, "request body")
		})
	}
}

func TestBodyTooLarge(t *testing.T) {
	app := New(newTree(), WithMaxBodyBytes(8))
	rec := serve(t, app, httptest.NewRequest(http.MethodPost, "/text", strings.NewReader("far too long for the limit")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestTextBody(t *testing.T) {
	app := New(newTree())
	rec := serve(t, app, httptest.NewRequest(http.MethodPost, "/text", strings.NewReader("shout")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, codec.ContentTypeText, rec.Header().Get("Content-Type"))
	assert.Equal(t, "SHOUT", rec.Body.String())
}

func TestItem(t *testing.T) {
	app := New(newTree())

	rec := serve(t, app, httptest.NewRequest(http.MethodGet, "/notes/"+noteID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":"`+noteID.String()+`","text":"hello"}`, rec.Body.String())

	rec = serve(t, app, httptest.NewRequest(http.MethodGet, "/notes/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "note not found", errorBody(t, rec).Detail)

	rec = serve(t, app, httptest.NewRequest(http.MethodGet, "/notes/not-a-uuid", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, app, httptest.NewRequest(http.MethodGet, "/notes//", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, app, httptest.NewRequest(http.MethodDelete, "/notes/"+noteID.String(), nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestMethodNotAllowed(t *testing.T) {
	app := New(newTree())
	rec := serve(t, app, httptest.NewRequest(http.MethodPut, "/notes/"+noteID.String(), nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "DELETE, GET", rec.Header().Get("Allow"))
}

func TestEmptyResult(t *testing.T) {
	app := New(newTree())
	rec := serve(t, app, httptest.NewRequest(http.MethodGet, "/empty", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInternalError(t *testing.T) {
	app := New(newTree())
	rec := serve(t, app, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := errorBody(t, rec)
	assert.Equal(t, 500, body.Error)
	assert.NotContains(t, body.Detail, "fire")
}

func TestStreams(t *testing.T) {
	app := New(newTree())

	rec := serve(t, app, httptest.NewRequest(http.MethodGet, "/blob", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/x-raw", rec.Header().Get("Content-Type"))
	assert.Equal(t, "9", rec.Header().Get("Content-Length"))
	assert.Equal(t, "raw bytes", rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("payload"))
	req.Header.Set("Content-Type", "application/x-thing")
	rec = serve(t, app, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/x-thing:payload", rec.Body.String())
}

func TestCustomErrorHandler(t *testing.T) {
	var got error
	app := New(newTree(), WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
		got = err
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := serve(t, app, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.ErrorIs(t, got, errs.ErrNotFound)
}

func TestFilters(t *testing.T) {
	var order []string
	filter := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	app := New(newTree(), WithFilters(filter("a"), filter("b")))
	serve(t, app, httptest.NewRequest(http.MethodGet, "/empty", nil))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestBindingErrors(t *testing.T) {
	_, err := BindingFor(reflectTypeOf[struct {
		A string `query:"x"`
		B string `query:"x"`
	}]())
	assert.Error(t, err)

	_, err = BindingFor(reflectTypeOf[struct {
		A string `json:"a" body:""`
		B string `json:"b" body:""`
	}]())
	assert.Error(t, err)

	b, err := BindingFor(reflectTypeOf[echoIn]())
	require.NoError(t, err)
	require.Len(t, b.Params, 4)
	assert.Equal(t, "X-Trace", b.Params[2].Name)
	assert.False(t, b.Params[2].Required)
	assert.True(t, b.Params[0].Required)
	assert.False(t, b.Params[1].Required)
	assert.False(t, b.Params[3].Required)
	assert.Equal(t, "request cookie: theme", b.Params[3].String())
}
