package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"vidparse/internal/media"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.PublicBaseURL != "http://localhost:5001" {
		t.Errorf("default public_base_url = %q, want http://localhost:5001", cfg.PublicBaseURL)
	}
	if cfg.Retry.DownloadAttempts != 5 {
		t.Errorf("default download_attempts = %d, want 5", cfg.Retry.DownloadAttempts)
	}
	if cfg.Retry.DownloadBackoff.Duration != time.Second {
		t.Errorf("default download_backoff = %v, want 1s", cfg.Retry.DownloadBackoff)
	}
	if got := cfg.PlatformAttempts()[media.Xiaohongshu]; got != 5 {
		t.Errorf("default xiaohongshu attempts = %d, want 5", got)
	}
	if !cfg.History {
		t.Error("default history should be true")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"empty listen", func(c *Config) { c.Listen = "" }, true},
		{"relative base url", func(c *Config) { c.PublicBaseURL = "/static" }, true},
		{"ftp base url", func(c *Config) { c.PublicBaseURL = "ftp://example.com" }, true},
		{"empty videos dir", func(c *Config) { c.VideosDir = "" }, true},
		{"empty player", func(c *Config) { c.Player = "" }, true},
		{"zero stream timeout", func(c *Config) { c.StreamTimeout.Duration = 0 }, true},
		{"zero download attempts", func(c *Config) { c.Retry.DownloadAttempts = 0 }, true},
		{"negative backoff", func(c *Config) { c.Retry.DownloadBackoff.Duration = -time.Second }, true},
		{"unknown platform", func(c *Config) { c.Retry.PlatformAttempts["youtube"] = 2 }, true},
		{"platform attempts too high", func(c *Config) { c.Retry.PlatformAttempts["douyin"] = 50 }, true},
		{"valid https base", func(c *Config) { c.PublicBaseURL = "https://video.example.com" }, false},
		{"valid douyin attempts", func(c *Config) { c.Retry.PlatformAttempts["douyin"] = 3 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromTOML(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	content := `
listen = ":9000"
public_base_url = "https://cdn.example.com/"
servable_domains = ["a.example.com"]
stream_timeout = "2m"
history = false
player = "vlc"

[retry]
download_attempts = 3
download_backoff = "250ms"

[retry.platform_attempts]
xiaohongshu = 4
kuaishou = 2
`
	dir := filepath.Join(tmpDir, "vidparse")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Listen != ":9000" {
		t.Errorf("listen = %q, want :9000", cfg.Listen)
	}
	if cfg.BaseURL() != "https://cdn.example.com" {
		t.Errorf("BaseURL() = %q, want trailing slash trimmed", cfg.BaseURL())
	}
	if len(cfg.ServableDomains) != 1 || cfg.ServableDomains[0] != "a.example.com" {
		t.Errorf("servable_domains = %v", cfg.ServableDomains)
	}
	if cfg.StreamTimeout.Duration != 2*time.Minute {
		t.Errorf("stream_timeout = %v, want 2m", cfg.StreamTimeout)
	}
	if cfg.Retry.DownloadAttempts != 3 {
		t.Errorf("download_attempts = %d, want 3", cfg.Retry.DownloadAttempts)
	}
	if cfg.Retry.DownloadBackoff.Duration != 250*time.Millisecond {
		t.Errorf("download_backoff = %v, want 250ms", cfg.Retry.DownloadBackoff)
	}
	attempts := cfg.PlatformAttempts()
	if attempts[media.Xiaohongshu] != 4 || attempts[media.Kuaishou] != 2 {
		t.Errorf("platform attempts = %v", attempts)
	}
	if cfg.History {
		t.Error("history should be false")
	}
	if cfg.Player != "vlc" {
		t.Errorf("player = %q, want vlc", cfg.Player)
	}
	// untouched fields keep their defaults
	if cfg.ResolveTimeout.Duration != 15*time.Second {
		t.Errorf("resolve_timeout = %v, want default 15s", cfg.ResolveTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() should not error on missing file: %v", err)
	}
	if cfg.Listen != ":5001" {
		t.Errorf("missing file should return defaults, got listen = %q", cfg.Listen)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("VIDPARSE_PUBLIC_BASE_URL", "https://media.example.org")
	t.Setenv("VIDPARSE_VIDEOS_DIR", "/srv/videos")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.PublicBaseURL != "https://media.example.org" {
		t.Errorf("public_base_url = %q", cfg.PublicBaseURL)
	}
	if cfg.VideosDir != "/srv/videos" {
		t.Errorf("videos_dir = %q", cfg.VideosDir)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	dir := filepath.Join(tmpDir, "vidparse")
	os.MkdirAll(dir, 0755)
	os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`stream_timeout = "forever"`), 0644)

	if _, err := Load(); err == nil {
		t.Error("Load() should fail on an unparseable duration")
	}
}

func TestExpandVideosDir(t *testing.T) {
	cfg := Default()
	cfg.VideosDir = "/tmp/test-videos"

	dir, err := cfg.ExpandVideosDir()
	if err != nil {
		t.Fatalf("ExpandVideosDir() error: %v", err)
	}
	if dir != "/tmp/test-videos" {
		t.Errorf("got %q, want /tmp/test-videos", dir)
	}
}
