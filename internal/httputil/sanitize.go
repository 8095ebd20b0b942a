package httputil

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// validIDPattern matches video IDs that are safe to use as filenames.
var validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateURL checks that a URL is well-formed and uses HTTP(S).
// Platform CDNs still hand out plain-HTTP media links, so both are accepted.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("only HTTP(S) URLs are allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

// ValidateID checks that a video ID contains only filename-safe characters.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if len(id) > 128 {
		return fmt.Errorf("ID too long: %d characters", len(id))
	}
	if !validIDPattern.MatchString(id) {
		return fmt.Errorf("ID contains invalid characters: %q", id)
	}
	return nil
}

// Host returns the lower-cased host of rawURL without port, or "" if it
// cannot be parsed.
func Host(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// reservedRunes cannot appear in filenames on at least one common OS.
const reservedRunes = `/\:*?"<>|`

// SanitizeFilename turns a video title into a single safe path element.
// Directory components are dropped, reserved characters become "_",
// control characters become spaces and runs of whitespace collapse. Leading
// and trailing dots and spaces are trimmed so the result is never hidden
// and stays valid on Windows.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "..", "_")

	name = strings.Map(func(r rune) rune {
		switch {
		case r == 0:
			return -1
		case strings.ContainsRune(reservedRunes, r):
			return '_'
		case unicode.IsControl(r):
			return ' '
		}
		return r
	}, name)

	name = strings.Join(strings.Fields(name), " ")
	name = strings.Trim(name, ". ")
	if name == "" {
		return "untitled"
	}
	return name
}

// TruncateRunes shortens s to at most n runes.
func TruncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// SafeDownloadPath joins dir and the sanitized filename and checks that the
// result is still inside dir.
func SafeDownloadPath(dir, filename string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	full := filepath.Join(absDir, SanitizeFilename(filename))
	rel, err := filepath.Rel(absDir, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %q", full, absDir)
	}
	return full, nil
}

// JoinURL appends escaped path segments to base.
func JoinURL(base string, pathSegments ...string) string {
	u := strings.TrimRight(base, "/")
	for _, seg := range pathSegments {
		u += "/" + url.PathEscape(seg)
	}
	return u
}
