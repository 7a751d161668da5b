// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/renameio/v2"
	"github.com/oasdiff/yaml"
	"github.com/spf13/cobra"

	"github.com/fondat/fondat-core/internal/auth"
	"github.com/fondat/fondat-core/internal/notes"
	"github.com/fondat/fondat-core/internal/openapi"
	"github.com/fondat/fondat-core/internal/sql/sqlite"
)

func newOpenAPICmd(load loadFunc) *cobra.Command {
	var (
		output string
		format string
	)
	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Write the OpenAPI document",
		Long:  "Generates the OpenAPI 3.0.3 document for the notes API without opening the configured database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			doc, err := document(cmd.Context(), cfg.Server.BasePath, cfg.Auth.Realm, cfg.Version)
			if err != nil {
				return err
			}
			data, err := encode(doc, format)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return writeFileAtomic(output, data)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}

// document generates the API document over a throwaway database.
func document(ctx context.Context, basePath, realm, version string) (*openapi3.T, error) {
	dir, err := os.MkdirTemp("", "fondat-openapi-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	db, err := sqlite.OpenDatabase(filepath.Join(dir, "schema.db"), sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	defer db.Close()

	svc, err := notes.New(db, notes.Options{
		Tokens:   auth.NewStaticTokens(),
		Realm:    realm,
		BasePath: basePath,
		Version:  version,
	})
	if err != nil {
		return nil, err
	}
	info := &openapi3.Info{Title: "fondat notes", Version: version}
	doc, err := openapi.Generate(svc.Root(), basePath, info, openapi.WithSchemes(svc.Schemes()...))
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("generated document is invalid: %w", err)
	}
	return doc, nil
}

func encode(doc *openapi3.T, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unsupported format %q (json or yaml)", format)
	}
}

func writeFileAtomic(path string, data []byte) error {
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return pendingFile.CloseAtomicallyReplace()
}
