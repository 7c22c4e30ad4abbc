package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"archdiagram/pkg"

	_ "modernc.org/sqlite"
)

// SQLiteHistoryStore keeps generation history in a sqlite database
type SQLiteHistoryStore struct {
	db       *sql.DB
	capacity int
}

// NewSQLiteHistoryStore opens (and migrates) the database at dbPath.
// ":memory:" gives a private in-memory database.
func NewSQLiteHistoryStore(ctx context.Context, dbPath string, capacity int) (*SQLiteHistoryStore, error) {
	dsn := ":memory:"
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every connection to ":memory:" is a different database
	db.SetMaxOpenConns(1)

	if capacity <= 0 {
		capacity = 100
	}
	s := &SQLiteHistoryStore{db: db, capacity: capacity}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteHistoryStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS generations (
		id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		status TEXT NOT NULL,
		node_count INTEGER NOT NULL DEFAULT 0,
		edge_count INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_generations_created ON generations(created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteHistoryStore) Save(ctx context.Context, rec pkg.GenerationRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO generations (id, prompt, status, node_count, edge_count, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Prompt, string(rec.Status), rec.NodeCount, rec.EdgeCount, rec.Error, rec.DurationMs, rec.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM generations WHERE rowid NOT IN (
			SELECT rowid FROM generations ORDER BY created_at DESC, rowid DESC LIMIT ?
		)
	`, s.capacity)
	if err != nil {
		return fmt.Errorf("failed to trim generations: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteHistoryStore) Recent(ctx context.Context, limit int) ([]pkg.GenerationRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prompt, status, node_count, edge_count, error, duration_ms, created_at
		FROM generations
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	out := []pkg.GenerationRecord{}
	for rows.Next() {
		var (
			rec       pkg.GenerationRecord
			status    string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.Prompt, &status, &rec.NodeCount, &rec.EdgeCount, &rec.Error, &rec.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		rec.Status = pkg.GenerationStatus(status)
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteHistoryStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteHistoryStore) Close() error {
	return s.db.Close()
}
