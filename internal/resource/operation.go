// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resource

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fondat/fondat-core/internal/auth"
	"github.com/fondat/fondat-core/internal/cache"
	"github.com/fondat/fondat-core/internal/codec"
	"github.com/fondat/fondat-core/internal/errs"
	"github.com/fondat/fondat-core/internal/log"
	"github.com/fondat/fondat-core/internal/metrics"
	"github.com/fondat/fondat-core/internal/schema"
	"github.com/fondat/fondat-core/internal/security"
	"github.com/fondat/fondat-core/internal/telemetry"
)

// OpType classifies an operation.
type OpType string

const (
	TypeQuery    OpType = "query"
	TypeMutation OpType = "mutation"
)

// NoContent is the result type of operations that return no body.
type NoContent struct{}

var noContentType = reflect.TypeFor[NoContent]()

// ErrArgumentType is returned by Invoke when the argument does not match the
// operation's input type.
var ErrArgumentType = errors.New("invalid argument type")

// Operation is a typed handler exposed by a resource under an HTTP method name.
type Operation struct {
	Method      string
	Type        OpType
	Summary     string
	Description string
	Security    []security.Requirement
	Publish     bool
	Deprecated  bool

	// In and Out are the operation's input and result types.
	In  reflect.Type
	Out reflect.Type

	validate bool
	loader   *cache.Loader
	ttl      time.Duration
	call     func(context.Context, any) (any, error)
	resource *Resource
}

// OpOption configures an Operation.
type OpOption func(*Operation)

// WithType overrides the operation type inferred from the method.
func WithType(t OpType) OpOption {
	return func(o *Operation) { o.Type = t }
}

// WithSummary sets the summary.
func WithSummary(s string) OpOption {
	return func(o *Operation) { o.Summary = s }
}

// WithOpDescription sets the description; the summary is derived from it unless set.
func WithOpDescription(d string) OpOption {
	return func(o *Operation) { o.Description = d }
}

// WithSecurity sets the security requirements checked before the handler runs.
func WithSecurity(reqs ...security.Requirement) OpOption {
	return func(o *Operation) { o.Security = reqs }
}

// WithPublish controls whether the operation appears in documentation.
func WithPublish(publish bool) OpOption {
	return func(o *Operation) { o.Publish = publish }
}

// WithDeprecated marks the operation deprecated.
func WithDeprecated() OpOption {
	return func(o *Operation) { o.Deprecated = true }
}

// WithValidation controls argument and result validation.
func WithValidation(validate bool) OpOption {
	return func(o *Operation) { o.validate = validate }
}

// WithCache memoizes results of a query operation for ttl. Results are keyed by
// resource path, principal and argument.
func WithCache(loader *cache.Loader, ttl time.Duration) OpOption {
	return func(o *Operation) {
		o.loader = loader
		o.ttl = ttl
	}
}

// Op builds an operation for method from a typed handler.
func Op[In, Out any](method string, fn func(context.Context, In) (Out, error), opts ...OpOption) *Operation {
	o := &Operation{
		Method:   strings.ToLower(method),
		Publish:  true,
		In:       reflect.TypeFor[In](),
		Out:      reflect.TypeFor[Out](),
		validate: true,
		call: func(ctx context.Context, in any) (any, error) {
			arg, _ := in.(In)
			return fn(ctx, arg)
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Type == "" {
		if o.Method == "get" {
			o.Type = TypeQuery
		} else {
			o.Type = TypeMutation
		}
	}
	if o.Summary == "" {
		o.Summary = summarize(o.Description, o.Method)
	}
	if o.Description == "" {
		o.Description = o.Method
	}
	if o.loader != nil && codec.IsStream(o.Out) {
		panic(fmt.Sprintf("resource: %s: stream results cannot be cached", o.Method))
	}
	return o
}

// summarize returns the first sentence of description, ending in a period, or
// the capitalized name when there is no description. The name is capitalized
// with the rest lower-cased; an empty name gives an empty summary.
func summarize(description, name string) string {
	words := strings.Fields(description)
	if len(words) == 0 {
		if name == "" {
			return ""
		}
		r, size := utf8.DecodeRuneInString(name)
		return string(unicode.ToTitle(r)) + strings.ToLower(name[size:]) + "."
	}
	var out []string
	for _, w := range words {
		out = append(out, w)
		if strings.HasSuffix(w, ".") {
			break
		}
	}
	return strings.Join(out, " ")
}

// Resource returns the resource the operation is registered on.
func (o *Operation) Resource() *Resource {
	return o.resource
}

func (o *Operation) resourceName() string {
	if o.resource == nil {
		return ""
	}
	return o.resource.Name
}

// Invoke authorizes, validates and calls the operation. It records a span,
// duration and call count per call. A nil in is the zero value of the input type.
func (o *Operation) Invoke(ctx context.Context, in any) (result any, err error) {
	name := o.resourceName()
	ctx = log.ContextWithOperation(ctx, name, o.Method)
	ctx, span := telemetry.Tracer(telemetry.InstrumentationName).Start(ctx, name+"."+o.Method,
		trace.WithAttributes(telemetry.OperationAttributes(name, o.Method, string(o.Type))...))
	defer span.End()

	log.FromContext(ctx).Debug().
		Str(log.FieldEvent, "operation.invoke").
		Str("type", string(o.Type)).
		Msg("invoking operation")

	start := time.Now()
	defer func() {
		metrics.ObserveOperation(name, o.Method, outcome(err), time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err := security.Authorize(ctx, o.Security); err != nil {
		return nil, err
	}

	arg, err := o.argument(in)
	if err != nil {
		return nil, err
	}
	if o.validate {
		if verr := schema.Validate(arg, o.In); verr != nil {
			return nil, &errs.Error{Status: http.StatusBadRequest, Detail: verr.Error(), Err: verr}
		}
	}

	if o.loader != nil && o.Type == TypeQuery {
		return o.cached(ctx, name, arg)
	}
	return o.invoke(ctx, arg)
}

func (o *Operation) argument(in any) (any, error) {
	if in == nil {
		return reflect.Zero(o.In).Interface(), nil
	}
	if t := reflect.TypeOf(in); !t.AssignableTo(o.In) {
		return nil, fmt.Errorf("%w: %s.%s expects %s, got %s", ErrArgumentType, o.resourceName(), o.Method, o.In, t)
	}
	return in, nil
}

func (o *Operation) invoke(ctx context.Context, arg any) (any, error) {
	out, err := o.call(ctx, arg)
	if err != nil {
		return nil, err
	}
	if o.validate && o.Out != noContentType {
		if verr := schema.Validate(out, o.Out); verr != nil {
			return nil, errs.InternalServerError(fmt.Errorf("invalid result of %s.%s: %w", o.resourceName(), o.Method, verr))
		}
	}
	return out, nil
}

func (o *Operation) cached(ctx context.Context, name string, arg any) (any, error) {
	key, err := o.cacheKey(ctx, name, arg)
	if err != nil {
		return nil, errs.InternalServerError(err)
	}
	b, hit, err := o.loader.Load(ctx, key, o.ttl, func(ctx context.Context) ([]byte, error) {
		out, err := o.invoke(ctx, arg)
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	})
	metrics.RecordCacheLookup(name, o.Method, hit)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Bool(telemetry.CacheHitKey, hit))
	if err != nil {
		return nil, err
	}
	ptr := reflect.New(o.Out)
	if err := json.Unmarshal(b, ptr.Interface()); err != nil {
		return nil, errs.InternalServerError(fmt.Errorf("decode cached result: %w", err))
	}
	return ptr.Elem().Interface(), nil
}

func (o *Operation) cacheKey(ctx context.Context, name string, arg any) (string, error) {
	b, err := json.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	h := sha256.New()
	if o.resource != nil {
		h.Write([]byte(o.resource.Path()))
	}
	h.Write([]byte{0})
	if p := auth.PrincipalFromContext(ctx); p != nil {
		h.Write([]byte(p.ID))
	}
	h.Write([]byte{0})
	h.Write(b)
	return fmt.Sprintf("op:%s:%s:%x", name, o.Method, h.Sum(nil)), nil
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	if status, ok := errs.Status(err); ok && status >= 400 && status < 500 {
		return metrics.OutcomeClientError
	}
	return metrics.OutcomeError
}

// Call invokes op and asserts the result type.
func Call[Out any](ctx context.Context, op *Operation, in any) (Out, error) {
	var zero Out
	result, err := op.Invoke(ctx, in)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	out, ok := result.(Out)
	if !ok {
		return zero, fmt.Errorf("%w: result is %T", ErrArgumentType, result)
	}
	return out, nil
}
