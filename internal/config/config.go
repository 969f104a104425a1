// Package config provides configuration management for dashdl using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultHTTPTimeout        = 30 * time.Second
	defaultBaseURLTimeout     = 10_000 * time.Second
	defaultFragmentRetryCount = 10
	defaultMaxErrorCount      = 30
	defaultRetryAttempts      = 3
	defaultRetryDelay         = 1 * time.Second
	defaultRetryMaxDelay      = 30 * time.Second
	defaultXLinkDepth         = 5
	defaultLoggingLevel       = "info"
	defaultLoggingFormat      = "json"
)

// Config holds all configuration for the downloader.
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Manifest ManifestConfig `mapstructure:"manifest"`
	Helpers  HelpersConfig  `mapstructure:"helpers"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// HTTPConfig holds HTTP client configuration shared by the manifest loader
// and segment fetcher.
type HTTPConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	BaseURLTimeout time.Duration `mapstructure:"base_url_timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
	UserAgent      string        `mapstructure:"user_agent"`
	Referer        string        `mapstructure:"referer"`
	AuthUsername   string        `mapstructure:"auth_username"`
	AuthPassword   string        `mapstructure:"auth_password"`
	BearerToken    string        `mapstructure:"bearer_token"`
}

// FetchConfig holds segment-fetching behavior: retry budgets, bandwidth
// throttling, and fragment archival, per the segment fetcher contract.
type FetchConfig struct {
	FragmentRetryCount int      `mapstructure:"fragment_retry_count"`
	MaxErrorCount      int      `mapstructure:"max_error_count"`
	BandwidthLimit     ByteSize `mapstructure:"bandwidth_limit"` // 0 = unlimited, bytes/s
	VerifyContentType  bool     `mapstructure:"verify_content_type"`
	ArchiveFragments   bool     `mapstructure:"archive_fragments"`
	FragmentDir        string   `mapstructure:"fragment_dir"`
	PersistFiles       bool     `mapstructure:"persist_files"`
	TempDir            string   `mapstructure:"temp_dir"`
}

// ManifestConfig holds manifest ingestion options.
type ManifestConfig struct {
	XLinkDepth      int      `mapstructure:"xlink_depth"`
	XSLTStylesheets []string `mapstructure:"xslt_stylesheets"`
	AllowIndexRange bool     `mapstructure:"allow_index_range"`
	CheckConformity bool     `mapstructure:"check_conformity"`
}

// HelpersConfig holds paths and environment overrides for external helper
// binaries invoked by the post-processor.
type HelpersConfig struct {
	FFmpegPath          string `mapstructure:"ffmpeg_path"`
	MP4BoxPath          string `mapstructure:"mp4box_path"`
	MkvmergePath        string `mapstructure:"mkvmerge_path"`
	VLCPath             string `mapstructure:"vlc_path"`
	Mp4decryptPath      string `mapstructure:"mp4decrypt_path"`
	ShakaPackagerPath   string `mapstructure:"shaka_packager_path"`
	XsltprocPath        string `mapstructure:"xsltproc_path"`
	ContainerRuntime    string `mapstructure:"container_runtime"` // podman (default) or docker
	UseContainerDecrypt bool   `mapstructure:"use_container_decrypt"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with DASHDL_ and use underscores for
// nesting, e.g. DASHDL_FETCH_MAX_ERROR_COUNT=50.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("dashdl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/dashdl")
		v.AddConfigPath("/etc/dashdl")
	}

	// Environment variable settings
	v.SetEnvPrefix("DASHDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults
// are in place.
func SetDefaults(v *viper.Viper) {
	// HTTP defaults
	v.SetDefault("http.timeout", defaultHTTPTimeout)
	v.SetDefault("http.base_url_timeout", defaultBaseURLTimeout)
	v.SetDefault("http.retry_attempts", defaultRetryAttempts)
	v.SetDefault("http.retry_delay", defaultRetryDelay)
	v.SetDefault("http.retry_max_delay", defaultRetryMaxDelay)
	v.SetDefault("http.user_agent", "dashdl/1.0")

	// Fetch defaults
	v.SetDefault("fetch.fragment_retry_count", defaultFragmentRetryCount)
	v.SetDefault("fetch.max_error_count", defaultMaxErrorCount)
	v.SetDefault("fetch.bandwidth_limit", 0)
	v.SetDefault("fetch.verify_content_type", true)
	v.SetDefault("fetch.archive_fragments", false)
	v.SetDefault("fetch.persist_files", false)

	// Manifest defaults
	v.SetDefault("manifest.xlink_depth", defaultXLinkDepth)
	v.SetDefault("manifest.allow_index_range", true)
	v.SetDefault("manifest.check_conformity", true)

	// Helpers defaults
	v.SetDefault("helpers.container_runtime", "podman")
	v.SetDefault("helpers.use_container_decrypt", false)

	// Logging defaults
	v.SetDefault("logging.level", defaultLoggingLevel)
	v.SetDefault("logging.format", defaultLoggingFormat)
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

// Default returns a Config populated with SetDefaults' values and no file
// or environment overlay, for callers constructing a Config in-process
// (e.g. a library Builder) rather than via Load.
func Default() Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}
	if c.Fetch.FragmentRetryCount < 0 {
		return fmt.Errorf("fetch.fragment_retry_count must not be negative")
	}
	if c.Fetch.MaxErrorCount < 1 {
		return fmt.Errorf("fetch.max_error_count must be at least 1")
	}
	if c.Manifest.XLinkDepth < 0 {
		return fmt.Errorf("manifest.xlink_depth must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
