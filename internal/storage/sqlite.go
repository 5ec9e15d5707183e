package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/redline/internal/models"
)

// SQLiteStorage implements Store using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS revisions (
		id TEXT PRIMARY KEY,
		artifact TEXT NOT NULL UNIQUE,
		report TEXT NOT NULL DEFAULT '',
		instruction TEXT NOT NULL,
		source_digest TEXT NOT NULL,
		proposals INTEGER NOT NULL DEFAULT 0,
		applied INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_revisions_created_at ON revisions(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateRevision inserts a revision. ID and CreatedAt are assigned when unset.
func (s *SQLiteStorage) CreateRevision(ctx context.Context, rev *models.Revision) error {
	if rev.Artifact == "" {
		return fmt.Errorf("revision artifact is required")
	}
	if rev.ID == "" {
		rev.ID = uuid.New().String()
	}
	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revisions (id, artifact, report, instruction, source_digest, proposals, applied, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rev.ID, rev.Artifact, rev.Report, rev.Instruction, rev.SourceDigest, rev.Proposals, rev.Applied, rev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert revision: %w", err)
	}
	return nil
}

// GetRevisionByArtifact returns the revision that produced artifact.
func (s *SQLiteStorage) GetRevisionByArtifact(ctx context.Context, artifact string) (*models.Revision, error) {
	var rev models.Revision
	err := s.db.QueryRowContext(ctx,
		`SELECT id, artifact, report, instruction, source_digest, proposals, applied, created_at
		 FROM revisions WHERE artifact = ?`, artifact,
	).Scan(&rev.ID, &rev.Artifact, &rev.Report, &rev.Instruction, &rev.SourceDigest, &rev.Proposals, &rev.Applied, &rev.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, artifact)
	}
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

// ListRevisions returns revisions newest first with offset and limit.
func (s *SQLiteStorage) ListRevisions(ctx context.Context, offset, limit int) ([]*models.Revision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, artifact, report, instruction, source_digest, proposals, applied, created_at
		 FROM revisions ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	revs := []*models.Revision{}
	for rows.Next() {
		var rev models.Revision
		if err := rows.Scan(&rev.ID, &rev.Artifact, &rev.Report, &rev.Instruction, &rev.SourceDigest, &rev.Proposals, &rev.Applied, &rev.CreatedAt); err != nil {
			return nil, err
		}
		revs = append(revs, &rev)
	}
	return revs, rows.Err()
}

// CountRevisions returns the number of catalog rows.
func (s *SQLiteStorage) CountRevisions(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM revisions`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
