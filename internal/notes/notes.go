// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package notes is a small notes API served by the resource framework.
// Notes live in a SQLite table; the API is documented at /openapi.json.
package notes

import (
	"context"
	"fmt"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"

	"github.com/fondat/fondat-core/internal/auth"
	"github.com/fondat/fondat-core/internal/cache"
	"github.com/fondat/fondat-core/internal/errs"
	"github.com/fondat/fondat-core/internal/httpapi"
	"github.com/fondat/fondat-core/internal/log"
	"github.com/fondat/fondat-core/internal/openapi"
	"github.com/fondat/fondat-core/internal/resource"
	"github.com/fondat/fondat-core/internal/security"
	"github.com/fondat/fondat-core/internal/sql"
)

// Scopes and security scheme names.
const (
	ScopeRead  = "notes:read"
	ScopeWrite = "notes:write"

	SchemeBearer = "bearer"
	SchemeAPIKey = "apiKey"
	SchemeBasic  = "basic"

	// APIKeyHeader carries the API key for the apiKey scheme.
	APIKeyHeader = "X-API-Key"

	TableName = "notes"
)

// Note is a stored note.
type Note struct {
	ID       uuid.UUID `json:"id" db:"id" doc:"Note identifier."`
	Title    string    `json:"title" minLength:"1" maxLength:"200"`
	Body     string    `json:"body" maxLength:"65536"`
	Tags     []string  `json:"tags,omitempty" uniqueItems:"true"`
	Archived bool      `json:"archived"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
}

// NoteInput is the body of a create request.
type NoteInput struct {
	Title string   `json:"title" minLength:"1" maxLength:"200"`
	Body  string   `json:"body" maxLength:"65536"`
	Tags  []string `json:"tags,omitempty" uniqueItems:"true"`
}

// CreateIn is the input of the create operation.
type CreateIn struct {
	Note NoteInput `body:""`
}

// Options configures the service.
type Options struct {
	// Tokens authenticates bearer tokens and API keys.
	Tokens httpapi.TokenAuthenticator
	// Realm enables HTTP Basic with tokens as passwords when Tokens also
	// authenticates passwords.
	Realm string
	// Cache serves repeated count queries; nil disables caching.
	Cache    *cache.Loader
	CacheTTL time.Duration
	// BasePath is where the API is mounted; default "/".
	BasePath string
	// Title and Version appear in the OpenAPI document.
	Title   string
	Version string
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service owns the notes table and its resource tree.
type Service struct {
	db      sql.Database
	table   *sql.Table[Note]
	updated *sql.Index
	schemes []security.Scheme
	root    *resource.Resource
	path    string
	now     func() time.Time
}

// New builds the service over db. Call Migrate before serving.
func New(db sql.Database, opts Options) (*Service, error) {
	table, err := sql.NewTable[Note](TableName, db, "id")
	if err != nil {
		return nil, fmt.Errorf("notes table: %w", err)
	}
	s := &Service{
		db:      db,
		table:   table,
		updated: table.Index("notes_updated_idx", false, "updated DESC"),
		path:    opts.BasePath,
		now:     opts.Now,
	}
	if s.path == "" {
		s.path = "/"
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.Tokens != nil {
		s.schemes = []security.Scheme{
			httpapi.Bearer(SchemeBearer, opts.Tokens),
			httpapi.HeaderKey(SchemeAPIKey, APIKeyHeader, opts.Tokens),
		}
		if pa, ok := opts.Tokens.(httpapi.PasswordAuthenticator); ok && opts.Realm != "" {
			s.schemes = append(s.schemes, httpapi.Basic(SchemeBasic, opts.Realm, pa))
		}
	}
	s.root = s.build(opts)
	return s, nil
}

// Migrate creates the notes table and its index when missing.
func (s *Service) Migrate(ctx context.Context) error {
	return s.db.Transaction(ctx, func(ctx context.Context) error {
		if err := s.table.CreateIfNotExists(ctx); err != nil {
			return err
		}
		return s.updated.CreateIfNotExists(ctx)
	})
}

// Root returns the API's root resource.
func (s *Service) Root() *resource.Resource {
	return s.root
}

// Schemes returns the configured security schemes.
func (s *Service) Schemes() []security.Scheme {
	return s.schemes
}

// Table returns the notes table.
func (s *Service) Table() *sql.Table[Note] {
	return s.table
}

// Application returns an HTTP application serving the API under the base path.
func (s *Service) Application(opts ...httpapi.Option) *httpapi.Application {
	opts = append([]httpapi.Option{
		httpapi.WithPath(s.path),
		httpapi.WithFilters(httpapi.SchemeFilters(s.schemes...)...),
	}, opts...)
	return httpapi.New(s.root, opts...)
}

// requirements returns one requirement per scheme; any one of them grants access.
func (s *Service) requirements(scope string) []security.Requirement {
	if len(s.schemes) == 0 {
		return []security.Requirement{auth.RequireScope(scope)}
	}
	reqs := make([]security.Requirement, 0, len(s.schemes))
	for _, scheme := range s.schemes {
		reqs = append(reqs, auth.RequireScope(scope, scheme.Name()))
	}
	return reqs
}

func (s *Service) build(opts Options) *resource.Resource {
	read, write := s.requirements(ScopeRead), s.requirements(ScopeWrite)

	tableOpts := []sql.TableResourceOption[uuid.UUID]{
		sql.WithReadSecurity[uuid.UUID](read...),
		sql.WithWriteSecurity[uuid.UUID](write...),
		sql.WithResourceTag[uuid.UUID]("notes"),
		sql.WithItem(func(id uuid.UUID, item *resource.Resource) {
			resource.Mutation(item, "archive", func(ctx context.Context, _ struct{}) (Note, error) {
				return s.Archive(ctx, id)
			}, resource.WithOpDescription("Archives a note and returns it."), resource.WithSecurity(write...))
		}),
	}
	if opts.Cache != nil {
		tableOpts = append(tableOpts, sql.WithCountOptions[uuid.UUID](resource.WithCache(opts.Cache, opts.CacheTTL)))
	}

	notes := sql.TableResource(s.table, "notes", tableOpts...)
	notes.Description = "Notes."
	create := func(ctx context.Context, in CreateIn) (uuid.UUID, error) {
		return s.Create(ctx, in.Note)
	}
	notes.Handle(resource.Op("post", create,
		resource.WithOpDescription("Creates a note and returns its identifier."),
		resource.WithSecurity(write...),
	))

	title := opts.Title
	if title == "" {
		title = "Notes API"
	}
	root := resource.New("", resource.WithTag("notes"))
	root.Mount("notes", notes)
	root.Mount("openapi.json", openapi.Resource(root, s.path,
		&openapi3.Info{Title: title, Version: opts.Version},
		openapi.WithSchemes(s.schemes...),
	))
	return root
}

// Create stores a new note built from in.
func (s *Service) Create(ctx context.Context, in NoteInput) (uuid.UUID, error) {
	now := s.now().UTC()
	note := Note{
		ID:      uuid.New(),
		Title:   in.Title,
		Body:    in.Body,
		Tags:    in.Tags,
		Created: now,
		Updated: now,
	}
	if err := s.table.Insert(ctx, note); err != nil {
		return uuid.Nil, err
	}
	logger := log.WithContext(ctx, log.WithComponent("notes"))
	logger.Info().
		Str(log.FieldEvent, "note.created").
		Str("note_id", note.ID.String()).
		Msg("note created")
	recordEvent(ctx, EventCreated)
	return note.ID, nil
}

// Archive marks the note archived and returns it. The archived event is
// recorded once the change is committed.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) (Note, error) {
	var note Note
	changed := false
	err := s.db.Transaction(ctx, func(ctx context.Context) error {
		v, err := s.table.Read(ctx, id)
		if err != nil {
			return err
		}
		if v == nil {
			return errs.NotFound("note not found")
		}
		note = *v
		if note.Archived {
			return nil
		}
		note.Archived = true
		note.Updated = s.now().UTC()
		if err := s.table.Update(ctx, note); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return Note{}, err
	}
	if changed {
		recordEvent(ctx, EventArchived)
	}
	return note, nil
}
