package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pauljones0/dealfeed-bot/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS seen_deals (
	fingerprint    TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	price          TEXT NOT NULL,
	original_price TEXT NOT NULL DEFAULT '',
	link           TEXT NOT NULL,
	image          TEXT NOT NULL DEFAULT '',
	tag            TEXT NOT NULL DEFAULT '',
	coupon         TEXT NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_seen_deals_created_at ON seen_deals(created_at);
`

// Store persists the fingerprints of every deal already delivered, so a
// listing that reappears on a source front page is not sent twice.
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at path and ensures the schema
// exists. The parent directory is created if missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	// SQLite tolerates exactly one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	slog.Info("Opened deal database", "path", path)
	return &Store{db: db}, nil
}

// Contains reports whether a deal with the given fingerprint was already
// delivered at any point still covered by retention.
func (s *Store) Contains(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM seen_deals WHERE fingerprint = ?", fingerprint).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking fingerprint: %w", err)
	}
	return true, nil
}

// RecentFingerprints loads every fingerprint recorded within the window as a
// set, so a whole cycle's candidates can be deduplicated with one query.
func (s *Store) RecentFingerprints(ctx context.Context, window time.Duration) (map[string]struct{}, error) {
	cutoff := time.Now().Add(-window).Unix()
	rows, err := s.db.QueryContext(ctx,
		"SELECT fingerprint FROM seen_deals WHERE created_at >= ?", cutoff)
	if err != nil {
		return nil, fmt.Errorf("loading recent fingerprints: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("scanning fingerprint: %w", err)
		}
		seen[fp] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fingerprints: %w", err)
	}
	return seen, nil
}

// Record upserts a delivered deal. A repeat of an existing fingerprint
// refreshes created_at, which keeps a recurring front-page deal from being
// swept and re-sent while it is still live.
func (s *Store) Record(ctx context.Context, rec models.SeenRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO seen_deals
			(fingerprint, title, price, original_price, link, image, tag, coupon, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET created_at = excluded.created_at`,
		rec.Fingerprint, rec.Title, rec.Price, rec.OriginalPrice,
		rec.Link, rec.Image, rec.Tag, rec.Coupon, rec.SentAt.Unix())
	if err != nil {
		return fmt.Errorf("recording deal %s: %w", rec.Fingerprint, err)
	}
	return nil
}

// Sweep deletes records older than the retention window and returns how many
// were removed.
func (s *Store) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM seen_deals WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweeping old deals: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting swept deals: %w", err)
	}
	return n, nil
}

// Count returns the number of records currently held.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM seen_deals").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting deals: %w", err)
	}
	return n, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
