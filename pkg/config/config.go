package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the dataset engine.
// Configuration can come from a YAML file (config.yaml) or environment
// variables; environment variables always override YAML values.
// Secrets (API tokens) must only come from environment variables.
type Config struct {
	// Remote metadata/data API
	APIBaseURL string `yaml:"api_base_url" env:"DSE_API_BASE_URL" env-default:""`
	APIVersion string `yaml:"api_version" env:"DSE_API_VERSION" env-default:"v9.2"`
	Env        string `yaml:"env" env:"DSE_ENVIRONMENT" env-default:"local"`

	// APIToken is the bearer token presented to the remote API.
	APIToken string `yaml:"-" env:"DSE_API_TOKEN"` // Secret - not in YAML

	// HTTPTimeoutSeconds bounds every remote call.
	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds" env:"DSE_HTTP_TIMEOUT_SECONDS" env-default:"30"`

	// Discovery settings
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Paging defaults applied when callers don't specify their own.
	Paging PagingConfig `yaml:"paging"`
}

// DiscoveryConfig holds view/relationship discovery settings.
type DiscoveryConfig struct {
	// CacheTTLMinutes is how long relationship/form discovery results are memoized.
	CacheTTLMinutes int `yaml:"cache_ttl_minutes" env:"DSE_DISCOVERY_CACHE_TTL_MINUTES" env-default:"5"`

	// PublisherPrefix narrows relationship and form scans to one publisher's
	// customizations when set (e.g. "new" matches new_* names).
	PublisherPrefix string `yaml:"publisher_prefix" env:"DSE_PUBLISHER_PREFIX" env-default:""`

	// PageEntity and TargetEntity let a host that already knows its entities
	// skip discovery entirely.
	PageEntity   string `yaml:"page_entity" env:"DSE_PAGE_ENTITY" env-default:""`
	TargetEntity string `yaml:"target_entity" env:"DSE_TARGET_ENTITY" env-default:""`
}

// PagingConfig holds record paging defaults.
type PagingConfig struct {
	DefaultPageSize int `yaml:"default_page_size" env:"DSE_DEFAULT_PAGE_SIZE" env-default:"50"`
	MaxPageSize     int `yaml:"max_page_size" env:"DSE_MAX_PAGE_SIZE" env-default:"250"`
}

// Load reads configuration from config.yaml (if present) and the environment.
func Load() (*Config, error) {
	return LoadFrom("config.yaml")
}

// LoadFrom reads configuration from the given YAML path (if present) and the
// environment, then validates the result.
func LoadFrom(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read config env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// remote-call failures later.
func (c *Config) Validate() error {
	if c.APIBaseURL != "" {
		u, err := url.Parse(c.APIBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("api_base_url %q is not an absolute URL", c.APIBaseURL)
		}
	}
	if c.Paging.DefaultPageSize <= 0 {
		return fmt.Errorf("default_page_size must be positive, got %d", c.Paging.DefaultPageSize)
	}
	if c.Paging.MaxPageSize < c.Paging.DefaultPageSize {
		return fmt.Errorf("max_page_size %d is smaller than default_page_size %d",
			c.Paging.MaxPageSize, c.Paging.DefaultPageSize)
	}
	if c.Discovery.CacheTTLMinutes < 0 {
		return fmt.Errorf("cache_ttl_minutes must not be negative, got %d", c.Discovery.CacheTTLMinutes)
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("http_timeout_seconds must be positive, got %d", c.HTTPTimeoutSeconds)
	}
	return nil
}
