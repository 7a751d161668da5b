// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"time"

	"github.com/fondat/fondat-core/internal/auth"
	"github.com/fondat/fondat-core/internal/cache"
	"github.com/fondat/fondat-core/internal/certs"
	"github.com/fondat/fondat-core/internal/sql/sqlite"
	"github.com/fondat/fondat-core/internal/telemetry"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheBadger = "badger"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Log       LogConfig        `yaml:"log"`
	Database  sqlite.Config    `yaml:"database"`
	Cache     CacheConfig      `yaml:"cache"`
	Auth      AuthConfig       `yaml:"auth"`
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Version is set from the binary, never from the file.
	Version string `yaml:"-"`
}

// ServerConfig configures the HTTP listener and middleware stack.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	BasePath        string        `yaml:"basePath"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`

	AllowedOrigins []string `yaml:"allowedOrigins"`
	TrustedProxies []string `yaml:"trustedProxies"`

	TLS certs.Config `yaml:"tls"`

	// RateLimitRequests per RateLimitWindow per client; zero disables limiting.
	RateLimitRequests int           `yaml:"rateLimitRequests"`
	RateLimitWindow   time.Duration `yaml:"rateLimitWindow"`

	// Process-wide token buckets in requests per second; zero disables.
	GlobalRateLimit float64 `yaml:"globalRateLimit"`
	GlobalBurst     int     `yaml:"globalBurst"`
	WriteRateLimit  float64 `yaml:"writeRateLimit"`
	WriteBurst      int     `yaml:"writeBurst"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// CacheConfig selects the operation result cache.
type CacheConfig struct {
	Backend string             `yaml:"backend"`
	TTL     time.Duration      `yaml:"ttl"`
	Redis   cache.RedisConfig  `yaml:"redis"`
	Badger  cache.BadgerConfig `yaml:"badger"`
}

// AuthConfig lists accepted API tokens.
type AuthConfig struct {
	Realm  string            `yaml:"realm"`
	Tokens []auth.TokenGrant `yaml:"tokens"`
}

// Defaults returns the configuration used before the file and environment apply.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Listen:            ":8080",
			BasePath:          "/",
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxBodyBytes:      10 << 20,
			RateLimitRequests: 0,
			RateLimitWindow:   time.Minute,
		},
		Log: LogConfig{Level: "info", Service: "fondat"},
		Database: sqlite.Config{
			Path:         "fondat.db",
			BusyTimeout:  sqlite.DefaultConfig().BusyTimeout,
			MaxOpenConns: sqlite.DefaultConfig().MaxOpenConns,
		},
		Cache: CacheConfig{Backend: CacheMemory, TTL: 30 * time.Second},
		Auth:  AuthConfig{Realm: "fondat"},
		Telemetry: telemetry.Config{
			ServiceName:  "fondat",
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
