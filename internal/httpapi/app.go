// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package httpapi serves a resource tree over HTTP.
//
// Request path segments below the mount path are resolved through the tree,
// the operation is selected by method, its input is bound from the query
// string, headers, cookies and body, and the result is encoded as the
// response body.
package httpapi

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fondat/fondat-core/internal/codec"
	"github.com/fondat/fondat-core/internal/errs"
	"github.com/fondat/fondat-core/internal/log"
	"github.com/fondat/fondat-core/internal/middleware"
	"github.com/fondat/fondat-core/internal/resource"
)

// DefaultMaxBodyBytes bounds buffered request bodies.
const DefaultMaxBodyBytes = 10 << 20

// ErrorHandler writes the response for a failed request. err always carries
// an errs.Error status.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// DefaultErrorHandler writes {"error": status, "detail": text} as JSON.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	errs.Write(w, err)
}

// Application is an http.Handler dispatching requests to a resource tree.
type Application struct {
	root         *resource.Resource
	path         string
	filters      []func(http.Handler) http.Handler
	errorHandler ErrorHandler
	maxBodyBytes int64
	handler      http.Handler
}

// Option configures an Application.
type Option func(*Application)

// WithPath sets the URI path of the root resource. Default "/".
func WithPath(path string) Option {
	return func(a *Application) { a.path = path }
}

// WithFilters adds middleware applied, in order, before dispatch.
func WithFilters(filters ...func(http.Handler) http.Handler) Option {
	return func(a *Application) { a.filters = append(a.filters, filters...) }
}

// WithErrorHandler replaces DefaultErrorHandler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(a *Application) { a.errorHandler = h }
}

// WithMaxBodyBytes bounds buffered request bodies. Streamed bodies are not limited.
func WithMaxBodyBytes(n int64) Option {
	return func(a *Application) { a.maxBodyBytes = n }
}

// New returns an application serving root.
func New(root *resource.Resource, opts ...Option) *Application {
	a := &Application{
		root:         root,
		path:         "/",
		errorHandler: DefaultErrorHandler,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.path = strings.TrimRight(a.path, "/") + "/"
	a.handler = chi.Chain(a.filters...).HandlerFunc(a.dispatch)
	return a
}

// Path returns the normalized mount path, ending in "/".
func (a *Application) Path() string {
	return a.path
}

// Root returns the root resource.
func (a *Application) Root() *resource.Resource {
	return a.root
}

func (a *Application) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *Application) dispatch(w http.ResponseWriter, r *http.Request) {
	if err := a.handle(w, r); err != nil {
		a.fail(w, r, err)
	}
}

func (a *Application) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, ok := errs.Status(err)
	if !ok {
		err = errs.InternalServerError(err)
		status = http.StatusInternalServerError
	}
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).
			Str(log.FieldEvent, "request.failed").
			Str(log.FieldMethod, r.Method).
			Str(log.FieldPath, r.URL.Path).
			Int(log.FieldStatus, status).
			Msg("internal server error")
	} else {
		logger.Debug().
			Str(log.FieldEvent, "request.rejected").
			Int(log.FieldStatus, status).
			Str("detail", errs.Detail(err)).
			Msg("request rejected")
	}
	a.errorHandler(w, r, err)
}

// resolve walks the path below the mount path to a resource. It returns the
// resource and the route pattern, with item segments replaced by {param}.
func (a *Application) resolve(r *http.Request) (*resource.Resource, string, error) {
	path := r.URL.EscapedPath()
	if path+"/" == a.path {
		path = a.path
	}
	if !strings.HasPrefix(path, a.path) {
		return nil, "", errs.ErrNotFound
	}
	rest := path[len(a.path):]

	res := a.root
	pattern := strings.TrimSuffix(a.path, "/")
	if rest == "" {
		return res, pattern + "/", nil
	}
	for _, raw := range strings.Split(rest, "/") {
		segment, err := url.PathUnescape(raw)
		if err != nil {
			return nil, "", errs.ErrNotFound
		}
		if _, named := res.Child(segment); named {
			pattern += "/" + segment
		} else if spec, ok := res.Item(); ok {
			pattern += "/{" + spec.Param + "}"
		}
		next, err := res.Subordinate(segment)
		if err != nil {
			return nil, "", err
		}
		res = next
	}
	return res, pattern, nil
}

func (a *Application) handle(w http.ResponseWriter, r *http.Request) error {
	res, pattern, err := a.resolve(r)
	if err != nil {
		return err
	}
	ctx := r.Context()
	middleware.SetRoute(ctx, pattern)

	op, ok := res.Operation(r.Method)
	if !ok {
		if methods := res.Methods(); len(methods) > 0 {
			w.Header().Set("Allow", strings.Join(methods, ", "))
		}
		return errs.ErrMethodNotAllowed
	}

	binding, err := BindingFor(op.In)
	if err != nil {
		return errs.InternalServerError(err)
	}
	in, err := binding.Bind(r, a.maxBodyBytes)
	if err != nil {
		return err
	}

	out, err := op.Invoke(ctx, in)
	if err != nil {
		return err
	}
	return respond(w, op, out)
}

func respond(w http.ResponseWriter, op *resource.Operation, out any) error {
	if _, ok := out.(resource.NoContent); ok {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}

	if codec.IsStream(op.Out) {
		s, _ := out.(codec.Stream)
		if s == nil {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}
		if c, ok := s.(io.Closer); ok {
			defer c.Close()
		}
		w.Header().Set("Content-Type", s.ContentType())
		switch n := s.ContentLength(); {
		case n == 0:
			w.WriteHeader(http.StatusNoContent)
			return nil
		case n > 0:
			w.Header().Set("Content-Length", strconv.FormatInt(n, 10))
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, s)
		return nil
	}

	b, err := codec.Encode(op.Out, out)
	if err != nil {
		return errs.InternalServerError(err)
	}
	w.Header().Set("Content-Type", codec.ContentType(op.Out))
	if len(b) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
	return nil
}
