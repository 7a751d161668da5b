// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fondat/fondat-core/internal/log"
)

// Environment variables.
const (
	EnvConfig         = "FONDAT_CONFIG"
	EnvListen         = "FONDAT_LISTEN"
	EnvBasePath       = "FONDAT_BASE_PATH"
	EnvLogLevel       = "FONDAT_LOG_LEVEL"
	EnvDBPath         = "FONDAT_DB_PATH"
	EnvCacheBackend   = "FONDAT_CACHE_BACKEND"
	EnvCacheTTL       = "FONDAT_CACHE_TTL"
	EnvRedisAddr      = "FONDAT_REDIS_ADDR"
	EnvRedisPassword  = "FONDAT_REDIS_PASSWORD"
	EnvBadgerPath     = "FONDAT_BADGER_PATH"
	EnvAPIToken       = "FONDAT_API_TOKEN"
	EnvAPITokenScopes = "FONDAT_API_TOKEN_SCOPES"
	EnvTracingEnabled = "FONDAT_TRACING_ENABLED"
	EnvTracingTarget  = "FONDAT_TRACING_ENDPOINT"
	EnvRateLimit      = "FONDAT_RATE_LIMIT"
	EnvAllowedOrigins = "FONDAT_ALLOWED_ORIGINS"
)

func envLogger() zerolog.Logger {
	return log.WithComponent("config")
}

func sensitive(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "token") || strings.Contains(lower, "password")
}

// ParseString reads a string from environment variable or returns default value.
// An empty variable counts as unset.
func ParseString(key, defaultValue string) string {
	logger := envLogger()
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	if sensitive(key) {
		logger.Debug().Str("key", key).Bool("sensitive", true).Msg("using environment variable")
	} else {
		logger.Debug().Str("key", key).Str("value", v).Msg("using environment variable")
	}
	return v
}

// ParseInt reads an integer from environment variable or returns default value.
// It falls back to default on parse errors.
func ParseInt(key string, defaultValue int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logger := envLogger()
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	return i
}

// ParseDuration reads a duration in Go duration format (e.g. "5s").
// It falls back to default on parse errors.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger := envLogger()
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Dur("default", defaultValue).
			Msg("invalid duration in environment variable, using default")
		return defaultValue
	}
	return d
}

// ParseBool reads a boolean. It accepts "true", "false", "1", "0", "yes", "no"
// (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	logger := envLogger()
	logger.Warn().
		Str("key", key).
		Str("value", v).
		Bool("default", defaultValue).
		Msg("invalid boolean in environment variable, using default")
	return defaultValue
}

// ParseList reads a comma-separated list, trimming blanks.
func ParseList(key string, defaultValue []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
