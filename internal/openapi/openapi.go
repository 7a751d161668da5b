// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package openapi generates OpenAPI 3.0.3 documents from resource trees.
package openapi

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/fondat/fondat-core/internal/codec"
	"github.com/fondat/fondat-core/internal/httpapi"
	"github.com/fondat/fondat-core/internal/resource"
	"github.com/fondat/fondat-core/internal/schema"
	"github.com/fondat/fondat-core/internal/security"
)

// Version is the OpenAPI version of generated documents.
const Version = "3.0.3"

type options struct {
	schemes  []security.Scheme
	servers  []string
	publish  bool
	security []security.Requirement
}

// Option configures document generation.
type Option func(*options)

// WithSchemes registers security schemes as document components.
func WithSchemes(schemes ...security.Scheme) Option {
	return func(o *options) { o.schemes = append(o.schemes, schemes...) }
}

// WithServers lists server URLs in the document.
func WithServers(urls ...string) Option {
	return func(o *options) { o.servers = append(o.servers, urls...) }
}

// WithPublish documents the document resource itself. Default false.
func WithPublish(publish bool) Option {
	return func(o *options) { o.publish = publish }
}

// WithSecurity secures the document resource.
func WithSecurity(reqs ...security.Requirement) Option {
	return func(o *options) { o.security = append(o.security, reqs...) }
}

// Generate documents the resource tree at root, served at path.
func Generate(root *resource.Resource, path string, info *openapi3.Info, opts ...Option) (*openapi3.T, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	doc := &openapi3.T{
		OpenAPI:    Version,
		Info:       info,
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{},
	}
	for _, url := range o.servers {
		doc.Servers = append(doc.Servers, &openapi3.Server{URL: url})
	}

	p := &processor{doc: doc, gen: schema.NewGenerator(), tags: map[string]bool{}}
	path = strings.TrimRight(path, "/")
	if err := p.process(root, path, nil, ""); err != nil {
		return nil, err
	}

	if components := p.gen.Components(); len(components) > 0 {
		doc.Components.Schemas = components
	}
	if len(o.schemes) > 0 {
		doc.Components.SecuritySchemes = openapi3.SecuritySchemes{}
		for _, s := range o.schemes {
			doc.Components.SecuritySchemes[s.Name()] = &openapi3.SecuritySchemeRef{Value: s.Spec()}
		}
	}
	tags := make([]string, 0, len(p.tags))
	for tag := range p.tags {
		tags = append(tags, tag)
	}
	slices.SortFunc(tags, func(a, b string) int { return strings.Compare(strings.ToLower(a), strings.ToLower(b)) })
	for _, tag := range tags {
		doc.Tags = append(doc.Tags, &openapi3.Tag{Name: tag})
	}
	return doc, nil
}

type pathParam struct {
	name string
	typ  reflect.Type
}

type processor struct {
	doc  *openapi3.T
	gen  *schema.Generator
	tags map[string]bool
}

func (p *processor) process(res *resource.Resource, path string, params []pathParam, tag string) error {
	if tag == "" {
		tag = res.Tag
	}

	item := &openapi3.PathItem{}
	for _, param := range params {
		ref, err := p.gen.Schema(param.typ)
		if err != nil {
			return fmt.Errorf("openapi: path parameter %s: %w", param.name, err)
		}
		item.Parameters = append(item.Parameters, &openapi3.ParameterRef{Value: &openapi3.Parameter{
			Name:     param.name,
			In:       openapi3.ParameterInPath,
			Required: true,
			Schema:   ref,
		}})
	}
	published := false
	for _, op := range res.Operations() {
		if !op.Publish {
			continue
		}
		operation, err := p.operation(tag, op)
		if err != nil {
			return fmt.Errorf("openapi: %s %s: %w", strings.ToUpper(op.Method), pathOrRoot(path), err)
		}
		item.SetOperation(strings.ToUpper(op.Method), operation)
		published = true
	}
	if published {
		p.doc.Paths.Set(pathOrRoot(path), item)
	}

	for _, name := range res.Children() {
		child, ok := res.Child(name)
		if !ok || child == nil {
			continue
		}
		childTag := ""
		if child.Tag == resource.TagInner {
			childTag = tag
		}
		if err := p.process(child, path+"/"+name, params, childTag); err != nil {
			return err
		}
	}

	if spec, ok := res.Item(); ok {
		sample := spec.Sample()
		name := spec.Param
		if hasParam(params, name) {
			name = strings.ToLower(sample.Name) + "_" + name
		}
		for hasParam(params, name) {
			name += "_"
		}
		sub := append(slices.Clone(params), pathParam{name: name, typ: spec.KeyType})
		if err := p.process(sample, path+"/{"+name+"}", sub, ""); err != nil {
			return err
		}
	}
	return nil
}

func hasParam(params []pathParam, name string) bool {
	return slices.ContainsFunc(params, func(p pathParam) bool { return p.name == name })
}

func pathOrRoot(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

func (p *processor) operation(tag string, op *resource.Operation) (*openapi3.Operation, error) {
	o := openapi3.NewOperation()
	o.Tags = []string{tag}
	p.tags[tag] = true
	o.Summary = op.Summary
	o.Description = op.Description
	o.Deprecated = op.Deprecated

	binding, err := httpapi.BindingFor(op.In)
	if err != nil {
		return nil, err
	}
	for _, param := range binding.Params {
		if param.In == httpapi.InBody {
			body, err := p.requestBody(binding, param)
			if err != nil {
				return nil, err
			}
			o.RequestBody = &openapi3.RequestBodyRef{Value: body}
			continue
		}
		ref, err := p.gen.FieldSchema(param.Field)
		if err != nil {
			return nil, err
		}
		o.AddParameter(parameter(param, ref))
	}

	if op.Out == reflect.TypeFor[resource.NoContent]() {
		o.Responses = openapi3.NewResponses(openapi3.WithStatus(204, &openapi3.ResponseRef{
			Value: openapi3.NewResponse().WithDescription("No content."),
		}))
	} else {
		ref, err := p.gen.Schema(op.Out)
		if err != nil {
			return nil, err
		}
		o.Responses = openapi3.NewResponses(openapi3.WithStatus(200, &openapi3.ResponseRef{
			Value: openapi3.NewResponse().
				WithDescription("Response.").
				WithContent(openapi3.NewContentWithSchemaRef(ref, []string{mediaType(op.Out)})),
		}))
	}

	var reqs openapi3.SecurityRequirements
	for _, req := range op.Security {
		if d, ok := req.(security.Documented); ok {
			reqs = append(reqs, d.SecurityRequirement())
		}
	}
	if len(reqs) > 0 {
		o.Security = &reqs
	}
	return o, nil
}

func (p *processor) requestBody(b *httpapi.Binding, param *httpapi.Param) (*openapi3.RequestBody, error) {
	var (
		ref *openapi3.SchemaRef
		err error
	)
	if b.Whole {
		ref, err = p.gen.Schema(param.Type)
	} else {
		ref, err = p.gen.FieldSchema(param.Field)
	}
	if err != nil {
		return nil, err
	}
	body := openapi3.NewRequestBody().
		WithRequired(param.Type.Kind() != reflect.Pointer).
		WithContent(openapi3.NewContentWithSchemaRef(ref, []string{mediaType(param.Type)}))
	if !b.Whole {
		body.Description = param.Field.Tag.Get("doc")
	}
	return body, nil
}

func parameter(param *httpapi.Param, ref *openapi3.SchemaRef) *openapi3.Parameter {
	explode := false
	p := &openapi3.Parameter{
		Name:        param.Name,
		In:          string(param.In),
		Description: param.Field.Tag.Get("doc"),
		Required:    param.Required,
		Schema:      ref,
	}
	switch param.In {
	case httpapi.InHeader:
		p.Style = openapi3.SerializationSimple
	default:
		p.Style = openapi3.SerializationForm
		p.Explode = &explode
	}
	return p
}

// mediaType strips parameters from the codec content type.
func mediaType(t reflect.Type) string {
	ct, _, _ := strings.Cut(codec.ContentType(t), ";")
	return ct
}

// Resource returns a resource whose get operation returns the document for
// root. The document is generated on first request.
func Resource(root *resource.Resource, path string, info *openapi3.Info, opts ...Option) *resource.Resource {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	var (
		once sync.Once
		doc  *openapi3.T
		err  error
	)
	get := func(context.Context, struct{}) (*openapi3.T, error) {
		once.Do(func() { doc, err = Generate(root, path, info, opts...) })
		return doc, err
	}
	r := resource.New("openapi", resource.WithDescription("OpenAPI document."))
	r.Handle(resource.Op("get", get,
		resource.WithPublish(o.publish),
		resource.WithSecurity(o.security...),
		resource.WithValidation(false),
		resource.WithOpDescription("Returns the OpenAPI document for this API."),
	))
	return r
}
