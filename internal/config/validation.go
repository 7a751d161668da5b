// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fondat/fondat-core/internal/middleware"
)

// Validate reports every invalid setting in cfg.
func Validate(cfg Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, _, err := net.SplitHostPort(cfg.Server.Listen); err != nil {
		add("server.listen: %v", err)
	}
	if !strings.HasPrefix(cfg.Server.BasePath, "/") {
		add("server.basePath: must start with /")
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		add("server.maxBodyBytes: must be positive")
	}
	if cfg.Server.RateLimitRequests < 0 {
		add("server.rateLimitRequests: must not be negative")
	}
	if cfg.Server.RateLimitRequests > 0 && cfg.Server.RateLimitWindow <= 0 {
		add("server.rateLimitWindow: must be positive when rate limiting")
	}
	if cfg.Server.GlobalRateLimit < 0 || cfg.Server.WriteRateLimit < 0 {
		add("server: token bucket rates must not be negative")
	}
	if cfg.Server.TLS.KeyFile != "" && cfg.Server.TLS.CertFile == "" {
		add("server.tls.certFile: required with keyFile")
	}
	if cfg.Server.TLS.CertFile != "" && cfg.Server.TLS.KeyFile == "" {
		add("server.tls.keyFile: required with certFile")
	}
	if _, err := middleware.ParseCIDRs(cfg.Server.TrustedProxies); err != nil {
		add("server.trustedProxies: %v", err)
	}
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		add("log.level: %v", err)
	}
	if cfg.Database.Path == "" {
		add("database.path: required")
	}
	switch cfg.Cache.Backend {
	case CacheNone, CacheMemory, CacheBadger:
	case CacheRedis:
		if cfg.Cache.Redis.Addr == "" {
			add("cache.redis.addr: required for redis backend")
		}
	default:
		add("cache.backend: unknown backend %q", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL < 0 {
		add("cache.ttl: must not be negative")
	}
	for i, g := range cfg.Auth.Tokens {
		if strings.TrimSpace(g.Token) == "" {
			add("auth.tokens[%d].token: required", i)
		}
	}
	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.ExporterType {
		case "grpc", "http":
		default:
			add("telemetry.exporter: must be grpc or http")
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			add("telemetry.samplingRate: must be between 0 and 1")
		}
	}
	return errors.Join(errs...)
}
