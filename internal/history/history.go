// Package history records successful parses in a local SQLite database.
// The store is optional: the pipeline works the same without it.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"vidparse/internal/config"
	"vidparse/internal/httputil"
	"vidparse/internal/media"
)

const schema = `
CREATE TABLE IF NOT EXISTS parse_records (
	video_id  TEXT    NOT NULL,
	client    TEXT    NOT NULL,
	platform  TEXT    NOT NULL,
	title     TEXT    NOT NULL DEFAULT '',
	page_url  TEXT    NOT NULL DEFAULT '',
	video_url TEXT    NOT NULL DEFAULT '',
	parse_count INTEGER NOT NULL DEFAULT 1,
	parsed_at INTEGER NOT NULL,
	PRIMARY KEY (video_id, client)
);
CREATE INDEX IF NOT EXISTS parse_records_parsed_at ON parse_records (parsed_at DESC);
`

// Store is a parse history backed by SQLite. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	// SQLite allows one writer; serialize instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenDefault opens the database at the XDG data path.
func OpenDefault() (*Store, error) {
	path, err := config.HistoryPath()
	if err != nil {
		return nil, err
	}
	return Open(path)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts an entry or, if the client already parsed this video,
// refreshes it and bumps its parse count.
func (s *Store) Save(ctx context.Context, e media.HistoryEntry) error {
	if e.ParsedAt == 0 {
		e.ParsedAt = time.Now().Unix()
	}
	if e.Client == "" {
		e.Client = "Guest"
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO parse_records (video_id, client, platform, title, page_url, video_url, parsed_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (video_id, client) DO UPDATE SET
	platform = excluded.platform,
	title = excluded.title,
	page_url = excluded.page_url,
	video_url = excluded.video_url,
	parse_count = parse_records.parse_count + 1,
	parsed_at = excluded.parsed_at`,
		e.VideoID, e.Client, e.Platform.String(), e.Title, e.PageURL, e.VideoURL, e.ParsedAt)
	if err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	return nil
}

// List returns up to limit entries, most recent first. A limit of zero or
// less returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]media.HistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT video_id, client, platform, title, page_url, video_url, parsed_at, parse_count
FROM parse_records
ORDER BY parsed_at DESC, rowid DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []media.HistoryEntry
	for rows.Next() {
		var e media.HistoryEntry
		var platform string
		if err := rows.Scan(&e.VideoID, &e.Client, &platform, &e.Title, &e.PageURL, &e.VideoURL, &e.ParsedAt, &e.ParseCount); err != nil {
			return nil, fmt.Errorf("reading history: %w", err)
		}
		e.Platform = media.ParsePlatform(platform)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return entries, nil
}

// parseCount returns how many times videoID has been parsed across clients.
func (s *Store) parseCount(ctx context.Context, videoID string) (int, error) {
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(parse_count) FROM parse_records WHERE video_id = ?`, videoID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting history: %w", err)
	}
	return int(n.Int64), nil
}

// Remove deletes every entry for videoID.
func (s *Store) Remove(ctx context.Context, videoID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM parse_records WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("removing history: %w", err)
	}
	return nil
}

// FormatForDisplay creates one display line per entry.
func FormatForDisplay(entries []media.HistoryEntry) []string {
	var items []string
	for _, e := range entries {
		when := time.Unix(e.ParsedAt, 0).Format("2006-01-02 15:04")
		title := httputil.TruncateRunes(e.Title, 40)
		if title == "" {
			title = "(无标题)"
		}
		if e.ParseCount > 1 {
			title += fmt.Sprintf(" (×%d)", e.ParseCount)
		}
		items = append(items, fmt.Sprintf("%s  [%s] %s  %s", when, e.Platform.DisplayName(), title, e.VideoID))
	}
	return items
}
