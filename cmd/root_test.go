package cmd

import (
	"bytes"
	"os"
	"testing"
)

func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		flagDebug, flagListen, flagBaseURL, flagVideosDir, flagFFmpeg, flagNoHistory = false, "", "", "", "", false
		cfg = nil
	})
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	resetFlags(t)
	chdir(t, t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("VIDPARSE_LISTEN", ":7000")

	flagBaseURL = "https://v.example.com/"
	flagNoHistory = true
	if err := loadConfig(rootCmd, nil); err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Listen != ":7000" {
		t.Errorf("Listen = %q, want env value :7000", cfg.Listen)
	}
	if cfg.BaseURL() != "https://v.example.com" {
		t.Errorf("BaseURL() = %q", cfg.BaseURL())
	}
	if cfg.History {
		t.Error("--no-history did not disable history")
	}

	flagListen = ":8000"
	if err := loadConfig(rootCmd, nil); err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Listen != ":8000" {
		t.Errorf("Listen = %q, want flag value :8000", cfg.Listen)
	}
}

func TestLoadConfigRejectsInvalidFlag(t *testing.T) {
	resetFlags(t)
	chdir(t, t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	flagBaseURL = "not a url"
	if err := loadConfig(rootCmd, nil); err == nil {
		t.Error("loadConfig() accepted an invalid public base URL")
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	// godotenv never overrides variables that are already set.
	os.Unsetenv("VIDPARSE_FFMPEG")
	t.Cleanup(func() { os.Unsetenv("VIDPARSE_FFMPEG") })
	if err := writeFile(dir+"/.env", "VIDPARSE_FFMPEG=/opt/ffmpeg/bin/ffmpeg\n"); err != nil {
		t.Fatal(err)
	}

	if err := loadConfig(rootCmd, nil); err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.FFmpeg != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("FFmpeg = %q, want value from .env", cfg.FFmpeg)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	if got := out.String(); got != "vidparse dev\n" {
		t.Errorf("version output = %q", got)
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(prev) })
}
