// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fondat/fondat-core/internal/auth"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a loader for the YAML file at configPath; empty means
// defaults and environment only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Path returns the configuration file path.
func (l *Loader) Path() string {
	return l.configPath
}

// Load loads configuration with precedence: ENV > File > Defaults, then validates it.
func (l *Loader) Load() (Config, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	mergeEnv(&cfg)
	cfg.Version = l.version
	cfg.Telemetry.ServiceVersion = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes the YAML file at path over cfg with strict parsing.
func loadFile(path string, cfg *Config) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

// mergeEnv applies FONDAT_* overrides.
func mergeEnv(cfg *Config) {
	cfg.Server.Listen = ParseString(EnvListen, cfg.Server.Listen)
	cfg.Server.BasePath = ParseString(EnvBasePath, cfg.Server.BasePath)
	cfg.Server.RateLimitRequests = ParseInt(EnvRateLimit, cfg.Server.RateLimitRequests)
	cfg.Server.AllowedOrigins = ParseList(EnvAllowedOrigins, cfg.Server.AllowedOrigins)
	cfg.Log.Level = ParseString(EnvLogLevel, cfg.Log.Level)
	cfg.Database.Path = ParseString(EnvDBPath, cfg.Database.Path)
	cfg.Cache.Backend = ParseString(EnvCacheBackend, cfg.Cache.Backend)
	cfg.Cache.TTL = ParseDuration(EnvCacheTTL, cfg.Cache.TTL)
	cfg.Cache.Redis.Addr = ParseString(EnvRedisAddr, cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = ParseString(EnvRedisPassword, cfg.Cache.Redis.Password)
	cfg.Cache.Badger.Path = ParseString(EnvBadgerPath, cfg.Cache.Badger.Path)
	cfg.Telemetry.Enabled = ParseBool(EnvTracingEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Endpoint = ParseString(EnvTracingTarget, cfg.Telemetry.Endpoint)

	if token := ParseString(EnvAPIToken, ""); token != "" {
		cfg.Auth.Tokens = append(cfg.Auth.Tokens, auth.TokenGrant{
			Token:  token,
			Scopes: ParseList(EnvAPITokenScopes, []string{"*"}),
		})
	}
}
