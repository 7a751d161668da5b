// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package openapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fondat/fondat-core/internal/auth"
	"github.com/fondat/fondat-core/internal/httpapi"
	"github.com/fondat/fondat-core/internal/resource"
)

type widget struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name" doc:"Display name." minLength:"1"`
	Count *int      `json:"count,omitempty"`
}

type widgetIn struct {
	Widget widget `body:""`
}

type listIn struct {
	Limit  int    `json:"limit" default:"10" doc:"Maximum number of results."`
	Locale string `header:"X-Locale" json:",omitempty"`
	Theme  string `cookie:"theme" json:",omitempty"`
}

type part struct {
	Label string `json:"label"`
}

var widgetID = uuid.MustParse("3b0f4a9c-9df4-4b39-8e1c-0d7a0e8f1c11")

func newAPI() *resource.Resource {
	widgets := resource.New("widgets", resource.WithDescription("Widget collection."))
	widgets.Handle(
		resource.Op("get", func(_ context.Context, in listIn) ([]widget, error) {
			return []widget{{ID: widgetID, Name: "sprocket"}}, nil
		}, resource.WithOpDescription("Lists widgets. Ordered by name.")),
		resource.Op("post", func(_ context.Context, in widgetIn) (uuid.UUID, error) {
			return in.Widget.ID, nil
		}, resource.WithSecurity(auth.RequireScope("widgets:write", "bearer"))),
	)
	resource.Item(widgets, "id", func(id uuid.UUID) *resource.Resource {
		item := resource.New("widget")
		item.Handle(
			resource.Op("get", func(context.Context, struct{}) (widget, error) {
				return widget{ID: id, Name: "sprocket"}, nil
			}),
			resource.Op("delete", func(context.Context, struct{}) (resource.NoContent, error) {
				return resource.NoContent{}, nil
			}, resource.WithDeprecated()),
			resource.Op("patch", func(context.Context, struct{}) (resource.NoContent, error) {
				return resource.NoContent{}, nil
			}, resource.WithPublish(false)),
		)
		parts := resource.New("parts")
		resource.Item(parts, "id", func(n int) *resource.Resource {
			p := resource.New("part")
			p.Handle(resource.Op("get", func(context.Context, struct{}) (part, error) {
				return part{Label: "p"}, nil
			}))
			return p
		})
		item.Mount("parts", parts)
		return item
	})
	resource.Query(widgets, "count", func(context.Context, struct{}) (int, error) { return 1, nil })

	root := resource.New("root")
	root.Mount("widgets", widgets)
	return root
}

func info() *openapi3.Info {
	return &openapi3.Info{Title: "Widgets", Version: "1.0.0"}
}

func generate(t *testing.T) *openapi3.T {
	t.Helper()
	doc, err := Generate(newAPI(), "/", info(),
		WithSchemes(httpapi.Bearer("bearer", auth.NewStaticTokens())))
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))
	return doc
}

func TestGenerate(t *testing.T) {
	doc := generate(t)
	assert.Equal(t, "3.0.3", doc.OpenAPI)

	var paths []string
	for path := range doc.Paths.Map() {
		paths = append(paths, path)
	}
	assert.ElementsMatch(t, []string{
		"/widgets",
		"/widgets/count",
		"/widgets/{id}",
		"/widgets/{id}/parts/{part_id}",
	}, paths)

	assert.Nil(t, doc.Paths.Value("/"), "root has no operations")
	require.Contains(t, doc.Components.Schemas, "widget")
	require.Contains(t, doc.Components.SecuritySchemes, "bearer")
}

func TestOperations(t *testing.T) {
	doc := generate(t)

	list := doc.Paths.Value("/widgets").Get
	require.NotNil(t, list)
	assert.Equal(t, []string{"widgets"}, list.Tags)
	assert.Equal(t, "Lists widgets.", list.Summary)
	assert.Equal(t, "Lists widgets. Ordered by name.", list.Description)

	limit := list.Parameters.GetByInAndName("query", "limit")
	require.NotNil(t, limit)
	assert.False(t, limit.Required)
	assert.Equal(t, "form", limit.Style)
	require.NotNil(t, limit.Explode)
	assert.False(t, *limit.Explode)
	assert.Equal(t, "Maximum number of results.", limit.Description)

	locale := list.Parameters.GetByInAndName("header", "X-Locale")
	require.NotNil(t, locale)
	assert.Equal(t, "simple", locale.Style)
	assert.NotNil(t, list.Parameters.GetByInAndName("cookie", "theme"))
	assert.NotNil(t, list.Responses.Status(200))

	create := doc.Paths.Value("/widgets").Post
	require.NotNil(t, create.RequestBody)
	assert.True(t, create.RequestBody.Value.Required)
	assert.NotNil(t, create.RequestBody.Value.Content.Get("application/json"))
	require.NotNil(t, create.Security)
	assert.Equal(t, openapi3.SecurityRequirement{"bearer": {"widgets:write"}}, (*create.Security)[0])

	count := doc.Paths.Value("/widgets/count").Get
	assert.Equal(t, []string{"widgets"}, count.Tags, "inner resources inherit the outer tag")

	item := doc.Paths.Value("/widgets/{id}")
	require.Len(t, item.Parameters, 1)
	assert.Equal(t, "id", item.Parameters[0].Value.Name)
	assert.True(t, item.Parameters[0].Value.Required)
	assert.Equal(t, []string{"widget"}, item.Get.Tags)
	assert.True(t, item.Delete.Deprecated)
	assert.Equal(t, "No content.", *item.Delete.Responses.Status(204).Value.Description)
	assert.Nil(t, item.Patch, "unpublished operations are omitted")

	nested := doc.Paths.Value("/widgets/{id}/parts/{part_id}")
	require.Len(t, nested.Parameters, 2)
	assert.Equal(t, "part_id", nested.Parameters[1].Value.Name)
}

func TestDocumentResource(t *testing.T) {
	root := newAPI()
	root.Mount("openapi.json", Resource(root, "/", info()))

	doc, err := Generate(root, "/", info())
	require.NoError(t, err)
	assert.Nil(t, doc.Paths.Value("/openapi.json"), "document resource is unpublished by default")

	app := httpapi.New(root)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	loaded, err := openapi3.NewLoader().LoadFromData(rec.Body.Bytes())
	require.NoError(t, err)
	require.NoError(t, loaded.Validate(context.Background()))
	assert.NotNil(t, loaded.Paths.Value("/widgets/{id}"))
}

func TestResponsesMatchDocument(t *testing.T) {
	doc := generate(t)
	router, err := legacy.NewRouter(doc)
	require.NoError(t, err)
	app := httpapi.New(newAPI())

	for _, target := range []string{
		"/widgets?limit=5",
		"/widgets/" + widgetID.String(),
		"/widgets/count",
		"/widgets/" + widgetID.String() + "/parts/3",
	} {
		t.Run(target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, target, nil)
			rec := httptest.NewRecorder()
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			route, params, err := router.FindRoute(req)
			require.NoError(t, err)
			input := &openapi3filter.ResponseValidationInput{
				RequestValidationInput: &openapi3filter.RequestValidationInput{
					Request:    req,
					PathParams: params,
					Route:      route,
				},
				Status: rec.Code,
				Header: rec.Header(),
			}
			input.SetBodyBytes(rec.Body.Bytes())
			require.NoError(t, openapi3filter.ValidateResponse(context.Background(), input))
		})
	}
}

func TestMountPath(t *testing.T) {
	doc, err := Generate(newAPI(), "/api/", info())
	require.NoError(t, err)
	for path := range doc.Paths.Map() {
		assert.True(t, strings.HasPrefix(path, "/api/widgets"), path)
	}
}

func TestTags(t *testing.T) {
	doc := generate(t)
	b, err := json.Marshal(doc.Tags)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"part"},{"name":"widget"},{"name":"widgets"}]`, string(b))
}
