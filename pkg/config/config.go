package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the tagdown backend
type Config struct {
	// HTTP server settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Request quota settings
	Quota QuotaConfig `yaml:"quota" json:"quota"`

	// Redis connection for the durable quota backend
	Redis RedisConfig `yaml:"redis" json:"redis"`

	// Upstream scraping API settings
	Upstream UpstreamConfig `yaml:"upstream" json:"upstream"`

	// Audio transcode settings
	Transcode TranscodeConfig `yaml:"transcode" json:"transcode"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr              string        `yaml:"addr" json:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" json:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	// TrustProxyHeaders controls whether X-Forwarded-For / X-Real-IP are
	// honored when resolving an anonymous caller's identity. Enable only
	// when the service sits behind a trusted reverse proxy.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" json:"trust_proxy_headers"`
}

// QuotaConfig holds request quota configuration
type QuotaConfig struct {
	// Backend selects the quota store: "memory" or "redis"
	Backend            string        `yaml:"backend" json:"backend"`
	AuthenticatedLimit int64         `yaml:"authenticated_limit" json:"authenticated_limit"`
	AnonymousLimit     int64         `yaml:"anonymous_limit" json:"anonymous_limit"`
	Window             time.Duration `yaml:"window" json:"window"`
}

// RedisConfig holds connection settings for the redis quota backend
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

// UpstreamConfig holds RapidAPI settings for the scraping providers
type UpstreamConfig struct {
	APIKey            string        `yaml:"api_key" json:"api_key"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	InstagramHost     string        `yaml:"instagram_host" json:"instagram_host"`
	InstagramPostHost string        `yaml:"instagram_post_host" json:"instagram_post_host"`
	TikTokHost        string        `yaml:"tiktok_host" json:"tiktok_host"`
}

// TranscodeConfig holds audio extraction settings
type TranscodeConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path" json:"ffmpeg_path"`
	Bitrate    string `yaml:"bitrate" json:"bitrate"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":3001",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			// Off unless explicitly deployed behind a trusted proxy;
			// otherwise forged X-Forwarded-For values mint fresh
			// anonymous identities and the quota never triggers.
			TrustProxyHeaders: false,
		},
		Quota: QuotaConfig{
			Backend:            "memory",
			AuthenticatedLimit: 20,
			AnonymousLimit:     5,
			Window:             24 * time.Hour,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		Upstream: UpstreamConfig{
			Timeout:           30 * time.Second,
			InstagramHost:     "instagram-scraper-20251.p.rapidapi.com",
			InstagramPostHost: "instagram-looter2.p.rapidapi.com",
			TikTokHost:        "tiktok-video-no-watermark2.p.rapidapi.com",
		},
		Transcode: TranscodeConfig{
			FFmpegPath: "ffmpeg",
			Bitrate:    "192k",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if addr := os.Getenv("TAGDOWN_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if trust := os.Getenv("TAGDOWN_TRUST_PROXY"); trust != "" {
		c.Server.TrustProxyHeaders = strings.ToLower(trust) == "true"
	}

	if backend := os.Getenv("TAGDOWN_QUOTA_BACKEND"); backend != "" {
		c.Quota.Backend = backend
	}
	if limit := os.Getenv("TAGDOWN_AUTH_LIMIT"); limit != "" {
		var val int64
		fmt.Sscanf(limit, "%d", &val)
		if val > 0 {
			c.Quota.AuthenticatedLimit = val
		}
	}
	if limit := os.Getenv("TAGDOWN_ANON_LIMIT"); limit != "" {
		var val int64
		fmt.Sscanf(limit, "%d", &val)
		if val > 0 {
			c.Quota.AnonymousLimit = val
		}
	}
	if window := os.Getenv("TAGDOWN_QUOTA_WINDOW"); window != "" {
		if d, err := time.ParseDuration(window); err == nil && d > 0 {
			c.Quota.Window = d
		}
	}

	if addr := os.Getenv("TAGDOWN_REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if password := os.Getenv("TAGDOWN_REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}
	if db := os.Getenv("TAGDOWN_REDIS_DB"); db != "" {
		var val int
		fmt.Sscanf(db, "%d", &val)
		c.Redis.DB = val
	}

	if key := os.Getenv("RAPIDAPI_KEY"); key != "" {
		c.Upstream.APIKey = key
	}
	if timeout := os.Getenv("TAGDOWN_UPSTREAM_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			c.Upstream.Timeout = d
		}
	}

	if path := os.Getenv("TAGDOWN_FFMPEG_PATH"); path != "" {
		c.Transcode.FFmpegPath = path
	}

	if logLevel := os.Getenv("TAGDOWN_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("TAGDOWN_LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".tagdown.yaml",
		".tagdown.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "tagdown", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "tagdown", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address is required"))
	}

	switch strings.ToLower(c.Quota.Backend) {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis address is required for the redis quota backend"))
		}
	default:
		errs = append(errs, errors.New("quota backend must be \"memory\" or \"redis\""))
	}

	if c.Quota.AuthenticatedLimit <= 0 {
		errs = append(errs, errors.New("authenticated limit must be positive"))
	}
	if c.Quota.AnonymousLimit <= 0 {
		errs = append(errs, errors.New("anonymous limit must be positive"))
	}
	if c.Quota.Window <= 0 {
		errs = append(errs, errors.New("quota window must be positive"))
	}

	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("upstream timeout must be positive"))
	}
	if c.Upstream.InstagramHost == "" || c.Upstream.InstagramPostHost == "" || c.Upstream.TikTokHost == "" {
		errs = append(errs, errors.New("upstream hosts are required"))
	}

	if c.Transcode.FFmpegPath == "" {
		errs = append(errs, errors.New("ffmpeg path is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	validLogFormats := map[string]bool{
		"console": true, "json": true,
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, errors.New("invalid log format"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Environment variables > .env file > Config file > Defaults
func Load(configPath string) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tagdown.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
