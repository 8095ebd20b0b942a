// Package config handles TOML-based configuration loading and validation.
// Values are merged as defaults < config file < environment < CLI flags.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"vidparse/internal/media"
)

// Duration wraps time.Duration so TOML strings like "15s" decode.
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
	return []byte(d.String()), nil
}

// Retry holds the retry ceilings. The defaults match what the service has
// always used and are kept configurable since nothing pins them down.
type Retry struct {
	DownloadAttempts int            `toml:"download_attempts"`
	DownloadBackoff  Duration       `toml:"download_backoff"`
	ExtractionJitter Duration       `toml:"extraction_jitter"`
	PlatformAttempts map[string]int `toml:"platform_attempts"`
}

// Config holds all application configuration.
type Config struct {
	Listen          string   `toml:"listen"`
	PublicBaseURL   string   `toml:"public_base_url"`
	VideosDir       string   `toml:"videos_dir"`
	ServableDomains []string `toml:"servable_domains"`
	ResolveTimeout  Duration `toml:"resolve_timeout"`
	StreamTimeout   Duration `toml:"stream_timeout"`
	FFmpeg          string   `toml:"ffmpeg"`
	Player          string   `toml:"player"`
	History         bool     `toml:"history"`
	Debug           bool     `toml:"debug"`
	Retry           Retry    `toml:"retry"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Listen:        ":5001",
		PublicBaseURL: "http://localhost:5001",
		VideosDir:     "./static/videos",
		ServableDomains: []string{
			"aweme.snssdk.com",
			"v3-web.douyinvod.com",
			"v26-web.douyinvod.com",
			"sns-video-bd.xhscdn.com",
			"sns-video-hw.xhscdn.com",
			"v1.kwaicdn.com",
			"v2.kwaicdn.com",
			"vd3.bdstatic.com",
			"vd4.bdstatic.com",
		},
		ResolveTimeout: Duration{15 * time.Second},
		StreamTimeout:  Duration{10 * time.Minute},
		FFmpeg:         "ffmpeg",
		Player:         "mpv",
		History:        true,
		Debug:          false,
		Retry: Retry{
			DownloadAttempts: 5,
			DownloadBackoff:  Duration{time.Second},
			PlatformAttempts: map[string]int{
				media.Xiaohongshu.String(): 5,
			},
		},
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vidparse"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "vidparse"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file and merges with defaults and the environment.
// If the config file doesn't exist, defaults are used.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides deployment-specific values from the environment
// (populated from .env by the CLI before Load runs).
func (c *Config) applyEnv() {
	if v := os.Getenv("VIDPARSE_PUBLIC_BASE_URL"); v != "" {
		c.PublicBaseURL = v
	}
	if v := os.Getenv("VIDPARSE_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("VIDPARSE_VIDEOS_DIR"); v != "" {
		c.VideosDir = v
	}
	if v := os.Getenv("VIDPARSE_FFMPEG"); v != "" {
		c.FFmpeg = v
	}
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	u, err := url.Parse(c.PublicBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("public_base_url must be an absolute http(s) URL, got %q", c.PublicBaseURL)
	}

	if c.VideosDir == "" {
		return fmt.Errorf("videos_dir cannot be empty")
	}

	if c.Player == "" {
		return fmt.Errorf("player cannot be empty")
	}

	if c.ResolveTimeout.Duration <= 0 || c.StreamTimeout.Duration <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	if c.Retry.DownloadAttempts < 1 || c.Retry.DownloadAttempts > 20 {
		return fmt.Errorf("download_attempts must be between 1 and 20, got %d", c.Retry.DownloadAttempts)
	}
	if c.Retry.DownloadBackoff.Duration < 0 || c.Retry.ExtractionJitter.Duration < 0 {
		return fmt.Errorf("retry delays cannot be negative")
	}

	for name, n := range c.Retry.PlatformAttempts {
		if media.ParsePlatform(name) == media.Unknown {
			return fmt.Errorf("unknown platform %q in platform_attempts", name)
		}
		if n < 1 || n > 20 {
			return fmt.Errorf("attempts for %s must be between 1 and 20, got %d", name, n)
		}
	}

	return nil
}

// PlatformAttempts returns the configured extraction attempts per platform.
func (c *Config) PlatformAttempts() map[media.Platform]int {
	out := make(map[media.Platform]int, len(c.Retry.PlatformAttempts))
	for name, n := range c.Retry.PlatformAttempts {
		out[media.ParsePlatform(name)] = n
	}
	return out
}

// BaseURL returns the public base URL without a trailing slash.
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.PublicBaseURL, "/")
}

// ExpandVideosDir resolves ~ in the videos directory path.
func (c *Config) ExpandVideosDir() (string, error) {
	return expandHome(c.VideosDir)
}

func expandHome(dir string) (string, error) {
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		dir = filepath.Join(home, dir[2:])
	}
	return filepath.Abs(dir)
}

// HistoryPath returns the path to the parse history database.
func HistoryPath() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "vidparse", "history.db"), nil
}
