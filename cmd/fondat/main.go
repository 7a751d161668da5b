// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command fondat serves the notes API and provides operator tooling.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fondat/fondat-core/internal/config"
	applog "github.com/fondat/fondat-core/internal/log"
	"github.com/fondat/fondat-core/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "fondat",
		Short:         "Resource-oriented HTTP API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML)")

	load := func() (config.Config, *config.Loader, error) {
		path := configPath
		if path == "" {
			path = config.ParseString(config.EnvConfig, "")
		}
		loader := config.NewLoader(path, version.Version)
		cfg, err := loader.Load()
		if err != nil {
			return cfg, loader, err
		}
		applog.Configure(applog.Config{
			Level:   cfg.Log.Level,
			Service: cfg.Log.Service,
			Version: cfg.Version,
		})
		return cfg, loader, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newOpenAPICmd(load),
		newVerifyCmd(load),
		newVersionCmd(),
	)
	return root
}

type loadFunc func() (config.Config, *config.Loader, error)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}
