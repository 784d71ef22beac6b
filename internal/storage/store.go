// Package storage persists an append-only record of every merged item the
// search pipeline has produced. Records are immutable observations, not a
// synchronized catalog: re-seeing a known (source, provider id) pair is a
// no-op.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/skywave/skywave/internal/catalog"
	"github.com/skywave/skywave/internal/dedupe"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store is the sqlite-backed directory record sink.
type Store struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

// New opens (or creates) the sqlite database at path.
func New(path string, logger zerolog.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)", path)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		db:     conn,
		path:   path,
		logger: logger.With().Str("component", "storage").Logger(),
	}, nil
}

// Migrate runs all pending migrations using the embedded SQL files.
func (s *Store) Migrate() error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordStations inserts station observations, ignoring pairs already seen.
func (s *Store) RecordStations(ctx context.Context, items []catalog.StationItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO station_records
			(uuid, provider_item_id, source, name, identity_key, payload, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for _, item := range items {
		if item.ID == "" || item.Source == "" {
			continue
		}
		payload, err := json.Marshal(item)
		if err != nil {
			s.logger.Warn().Err(err).Str("station", item.ID).Msg("Failed to encode station payload")
			continue
		}
		res, err := stmt.ExecContext(ctx,
			uuid.NewString(), item.ID, item.Source, item.Name,
			dedupe.NormalizeStreamURL(item.StreamURL), string(payload), now)
		if err != nil {
			return fmt.Errorf("failed to insert station record: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit station records: %w", err)
	}

	s.logger.Debug().
		Int("candidates", len(items)).
		Int("inserted", inserted).
		Msg("Recorded stations")

	return nil
}

// RecordPodcasts inserts podcast observations, ignoring pairs already seen.
func (s *Store) RecordPodcasts(ctx context.Context, items []catalog.PodcastItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO podcast_records
			(uuid, provider_item_id, source, title, identity_key, payload, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for _, item := range items {
		if item.ID == "" || item.Source == "" {
			continue
		}
		payload, err := json.Marshal(item)
		if err != nil {
			s.logger.Warn().Err(err).Str("podcast", item.ID).Msg("Failed to encode podcast payload")
			continue
		}
		res, err := stmt.ExecContext(ctx,
			uuid.NewString(), item.ID, item.Source, item.Title,
			podcastIdentity(item), string(payload), now)
		if err != nil {
			return fmt.Errorf("failed to insert podcast record: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit podcast records: %w", err)
	}

	s.logger.Debug().
		Int("candidates", len(items)).
		Int("inserted", inserted).
		Msg("Recorded podcasts")

	return nil
}

// RecentStations returns the most recently observed stations, newest first.
func (s *Store) RecentStations(ctx context.Context, limit int) ([]catalog.StationItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM station_records
		ORDER BY observed_at DESC, rowid DESC
		LIMIT ?
	`, clampRecentLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query station records: %w", err)
	}
	defer rows.Close()

	var items []catalog.StationItem
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan station record: %w", err)
		}
		var item catalog.StationItem
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			s.logger.Warn().Err(err).Msg("Skipping undecodable station record")
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RecentPodcasts returns the most recently observed podcasts, newest first.
func (s *Store) RecentPodcasts(ctx context.Context, limit int) ([]catalog.PodcastItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM podcast_records
		ORDER BY observed_at DESC, rowid DESC
		LIMIT ?
	`, clampRecentLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query podcast records: %w", err)
	}
	defer rows.Close()

	var items []catalog.PodcastItem
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan podcast record: %w", err)
		}
		var item catalog.PodcastItem
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			s.logger.Warn().Err(err).Msg("Skipping undecodable podcast record")
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// podcastIdentity picks the strongest identity key the item carries.
func podcastIdentity(item catalog.PodcastItem) string {
	keys := dedupe.PodcastKeys(item)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

func clampRecentLimit(limit int) int {
	if limit < 1 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
