// Package config loads the bridge configuration from the environment, and
// the editor-managed settings file that carries explicitly configured access
// tokens.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server ServerConfig
	Cache  CacheConfig
	HTTP   HTTPConfig
	Tokens TokenConfig
}

type ServerConfig struct {
	Port                   int `env:"SERVER_PORT, default=8417"`
	ShutdownTimeoutSeconds int `env:"SERVER_SHUTDOWN_TIMEOUT_SECS, default=25"`

	// SettingsPath locates the editor's settings file. Empty disables the
	// settings layer of token resolution.
	SettingsPath string `env:"COMMITFMT_SETTINGS"`
}

// CacheConfig sizes the three in-memory caches. TTLs are in seconds.
type CacheConfig struct {
	RepoTTLSeconds int `env:"CACHE_REPO_TTL_SECS, default=300"`
	RepoMaxSize    int `env:"CACHE_REPO_MAX_SIZE, default=16"`

	IssueTTLSeconds int `env:"CACHE_ISSUE_TTL_SECS, default=120"`
	IssueMaxSize    int `env:"CACHE_ISSUE_MAX_SIZE, default=64"`

	// Tokens change rarely, so the token caches default to an hour.
	TokenTTLSeconds int `env:"CACHE_TOKEN_TTL_SECS, default=3600"`
	TokenMaxSize    int `env:"CACHE_TOKEN_MAX_SIZE, default=32"`
}

func (c CacheConfig) RepoTTL() time.Duration  { return time.Duration(c.RepoTTLSeconds) * time.Second }
func (c CacheConfig) IssueTTL() time.Duration { return time.Duration(c.IssueTTLSeconds) * time.Second }
func (c CacheConfig) TokenTTL() time.Duration { return time.Duration(c.TokenTTLSeconds) * time.Second }

// HTTPConfig bounds the outgoing connection pools and request behaviour.
type HTTPConfig struct {
	MaxConnsPerHost       int `env:"HTTP_MAX_CONNS_PER_HOST, default=5"`
	MaxIdleConnsPerHost   int `env:"HTTP_MAX_IDLE_CONNS_PER_HOST, default=2"`
	RequestTimeoutSeconds int `env:"HTTP_REQUEST_TIMEOUT_SECS, default=30"`
	MaxRetries            int `env:"HTTP_MAX_RETRIES, default=2"`
}

func (c HTTPConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// TokenConfig is the environment-variable layer of token resolution. It sits
// below the explicit settings-file tokens and above the host-specific
// settings.
type TokenConfig struct {
	GitHub      string `env:"GITHUB_TOKEN"`
	GitLab      string `env:"GITLAB_TOKEN"`
	Gitee       string `env:"GITEE_TOKEN"`
	LocalGitLab string `env:"LOCAL_GITLAB_TOKEN"`
}

// Credentials bundles every token source a platform consults.
type Credentials struct {
	Env      TokenConfig
	Settings Settings
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	if err := cfg.Cache.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid cache configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the cache configuration is usable.
func (c *CacheConfig) Validate() error {
	ttls := map[string]int{
		"CACHE_REPO_TTL_SECS":  c.RepoTTLSeconds,
		"CACHE_ISSUE_TTL_SECS": c.IssueTTLSeconds,
		"CACHE_TOKEN_TTL_SECS": c.TokenTTLSeconds,
	}
	for name, ttl := range ttls {
		if ttl <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	sizes := map[string]int{
		"CACHE_REPO_MAX_SIZE":  c.RepoMaxSize,
		"CACHE_ISSUE_MAX_SIZE": c.IssueMaxSize,
		"CACHE_TOKEN_MAX_SIZE": c.TokenMaxSize,
	}
	for name, size := range sizes {
		if size < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	return nil
}
