// Package config loads the command configuration from a TOML file and
// HTRC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/htrc-client/pkg/cache"
	"github.com/Sternrassler/htrc-client/pkg/client"
	"github.com/Sternrassler/htrc-client/pkg/dataapi"
	"github.com/Sternrassler/htrc-client/pkg/ratelimit"
	"github.com/Sternrassler/htrc-client/pkg/solr"
)

// DefaultUserAgent identifies the tools to the remote services.
const DefaultUserAgent = "htrc-client/0.1.0"

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Duration is a time.Duration written as a string such as "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the complete command configuration.
type Config struct {
	Solr    SolrConfig    `toml:"solr"`
	DataAPI DataAPIConfig `toml:"dataapi"`
	HTTP    HTTPConfig    `toml:"http"`
	Cache   CacheConfig   `toml:"cache"`
	Fetch   FetchConfig   `toml:"fetch"`
	Log     LogConfig     `toml:"log"`

	// Path is the file the configuration was read from; empty when none was.
	Path string `toml:"-"`
}

// SolrConfig configures the search proxy.
type SolrConfig struct {
	BaseURL   string `toml:"base_url"`
	MARCURL   string `toml:"marc_url"`
	PageSize  int    `toml:"page_size"`
	BatchSize int    `toml:"batch_size"`
}

// DataAPIConfig configures the Data API client and its credentials.
type DataAPIConfig struct {
	BaseURL  string   `toml:"base_url"`
	Key      string   `toml:"key"`
	Secret   string   `toml:"secret"`
	TokenURL string   `toml:"token_url"`
	Scopes   []string `toml:"scopes"`

	// Auth forces a mode: "oauth1", "basic", "client_credentials" or "none".
	// Empty picks oauth1 for a key, client_credentials for a token URL.
	Auth string `toml:"auth"`
}

// HTTPConfig configures the shared transport.
type HTTPConfig struct {
	UserAgent string   `toml:"user_agent"`
	Timeout   Duration `toml:"timeout"`
}

// CacheConfig configures the optional Redis page cache.
type CacheConfig struct {
	// RedisAddr enables caching when set, e.g. "localhost:6379".
	RedisAddr string   `toml:"redis_addr"`
	DB        int      `toml:"db"`
	TTL       Duration `toml:"ttl"`
}

// FetchConfig configures aggregate fetch pacing.
type FetchConfig struct {
	Rate     float64  `toml:"rate"`
	Burst    int      `toml:"burst"`
	Cooldown Duration `toml:"cooldown"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Solr: SolrConfig{
			BaseURL:   solr.DefaultBaseURL,
			MARCURL:   solr.DefaultMARCURL,
			PageSize:  solr.DefaultPageSize,
			BatchSize: solr.DefaultBatchSize,
		},
		DataAPI: DataAPIConfig{
			BaseURL: dataapi.DefaultBaseURL,
		},
		HTTP: HTTPConfig{
			UserAgent: DefaultUserAgent,
		},
		Cache: CacheConfig{
			TTL: Duration{cache.DefaultTTL},
		},
		Fetch: FetchConfig{
			Cooldown: Duration{ratelimit.DefaultCooldown},
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// DefaultPath returns ~/.htrc/config.toml.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".htrc", "config.toml"), nil
}

// Load reads the configuration. An empty path reads DefaultPath and treats a
// missing file as empty; an explicit path must exist. Environment variables
// override file values.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	} else {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return cfg, fmt.Errorf("expanding config path: %w", err)
		}
		path = expanded
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
		cfg.Path = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides values from HTRC_* variables.
func (c *Config) applyEnv() error {
	c.Solr.BaseURL = getEnv("HTRC_SOLR_URL", c.Solr.BaseURL)
	c.Solr.MARCURL = getEnv("HTRC_MARC_URL", c.Solr.MARCURL)
	c.DataAPI.BaseURL = getEnv("HTRC_DATAAPI_URL", c.DataAPI.BaseURL)
	c.DataAPI.Key = getEnv("HTRC_DATAAPI_KEY", c.DataAPI.Key)
	c.DataAPI.Secret = getEnv("HTRC_DATAAPI_SECRET", c.DataAPI.Secret)
	c.DataAPI.TokenURL = getEnv("HTRC_DATAAPI_TOKEN_URL", c.DataAPI.TokenURL)
	c.DataAPI.Auth = getEnv("HTRC_DATAAPI_AUTH", c.DataAPI.Auth)
	c.HTTP.UserAgent = getEnv("HTRC_USER_AGENT", c.HTTP.UserAgent)
	c.Cache.RedisAddr = getEnv("HTRC_REDIS_ADDR", c.Cache.RedisAddr)
	c.Log.Level = getEnv("HTRC_LOG_LEVEL", c.Log.Level)

	var err error
	if c.HTTP.Timeout.Duration, err = envDuration("HTRC_HTTP_TIMEOUT", c.HTTP.Timeout.Duration); err != nil {
		return err
	}
	if c.Cache.TTL.Duration, err = envDuration("HTRC_CACHE_TTL", c.Cache.TTL.Duration); err != nil {
		return err
	}
	if v := os.Getenv("HTRC_FETCH_RATE"); v != "" {
		if c.Fetch.Rate, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("HTRC_FETCH_RATE: %w", err)
		}
	}
	return nil
}

// Validate reports the first unusable value.
func (c Config) Validate() error {
	for name, raw := range map[string]string{
		"solr.base_url":    c.Solr.BaseURL,
		"solr.marc_url":    c.Solr.MARCURL,
		"dataapi.base_url": c.DataAPI.BaseURL,
	} {
		if err := checkURL(raw); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
		}
	}
	if c.DataAPI.TokenURL != "" {
		if err := checkURL(c.DataAPI.TokenURL); err != nil {
			return fmt.Errorf("%w: dataapi.token_url: %v", ErrInvalid, err)
		}
		if c.DataAPI.Key == "" {
			return fmt.Errorf("%w: dataapi.token_url requires dataapi.key", ErrInvalid)
		}
	}
	switch dataapi.AuthMode(c.DataAPI.Auth) {
	case "", dataapi.AuthNone:
	case dataapi.AuthOAuth1, dataapi.AuthBasic:
		if c.DataAPI.Key == "" {
			return fmt.Errorf("%w: dataapi.auth %s requires dataapi.key", ErrInvalid, c.DataAPI.Auth)
		}
	case dataapi.AuthClientCredentials:
		if c.DataAPI.TokenURL == "" {
			return fmt.Errorf("%w: dataapi.auth %s requires dataapi.token_url", ErrInvalid, c.DataAPI.Auth)
		}
	default:
		return fmt.Errorf("%w: dataapi.auth %q is not one of oauth1, basic, client_credentials, none", ErrInvalid, c.DataAPI.Auth)
	}

	switch {
	case c.Solr.PageSize <= 0:
		return fmt.Errorf("%w: solr.page_size must be > 0", ErrInvalid)
	case c.Solr.BatchSize <= 0:
		return fmt.Errorf("%w: solr.batch_size must be > 0", ErrInvalid)
	case c.HTTP.UserAgent == "":
		return fmt.Errorf("%w: http.user_agent is required", ErrInvalid)
	case c.HTTP.Timeout.Duration < 0:
		return fmt.Errorf("%w: http.timeout must not be negative", ErrInvalid)
	case c.Cache.TTL.Duration < 0:
		return fmt.Errorf("%w: cache.ttl must not be negative", ErrInvalid)
	case c.Fetch.Rate < 0:
		return fmt.Errorf("%w: fetch.rate must not be negative", ErrInvalid)
	case c.Fetch.Burst < 0:
		return fmt.Errorf("%w: fetch.burst must not be negative", ErrInvalid)
	case c.Fetch.Cooldown.Duration < 0:
		return fmt.Errorf("%w: fetch.cooldown must not be negative", ErrInvalid)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	return nil
}

// HTTPClient returns the shared client configuration, without a cache.
func (c Config) HTTPClient() client.Config {
	cfg := client.DefaultConfig(c.HTTP.UserAgent)
	cfg.Timeout = c.HTTP.Timeout.Duration
	cfg.CacheTTL = c.Cache.TTL.Duration
	return cfg
}

// SolrClient returns the search proxy configuration.
func (c Config) SolrClient() solr.Config {
	return solr.Config{
		BaseURL:   c.Solr.BaseURL,
		MARCURL:   c.Solr.MARCURL,
		PageSize:  c.Solr.PageSize,
		BatchSize: c.Solr.BatchSize,
	}
}

// DataAPIClient returns the Data API configuration.
func (c Config) DataAPIClient() dataapi.Config {
	return dataapi.Config{
		BaseURL:  c.DataAPI.BaseURL,
		Key:      c.DataAPI.Key,
		Secret:   c.DataAPI.Secret,
		TokenURL: c.DataAPI.TokenURL,
		Scopes:   c.DataAPI.Scopes,
		Auth:     dataapi.AuthMode(c.DataAPI.Auth),
	}
}

// Limiter returns the fetch pacing configuration.
func (c Config) Limiter() ratelimit.Config {
	return ratelimit.Config{
		Rate:     c.Fetch.Rate,
		Burst:    c.Fetch.Burst,
		Cooldown: c.Fetch.Cooldown.Duration,
	}
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute url", raw)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
