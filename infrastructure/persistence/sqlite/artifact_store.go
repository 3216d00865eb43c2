// Package sqlite stores clustering artifacts in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS clustering_artifacts (
	selection_key TEXT PRIMARY KEY,
	payload       BLOB NOT NULL,
	updated_at    DATETIME NOT NULL
);`

const upsertArtifact = `
INSERT INTO clustering_artifacts (selection_key, payload, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(selection_key) DO UPDATE SET
	payload = excluded.payload,
	updated_at = excluded.updated_at`

// ArtifactStore implements ports.ArtifactStore on SQLite.
type ArtifactStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens (or creates) the database at path, enables WAL mode and
// creates the artifact table.
func Open(path string, logger *zap.Logger) (*ArtifactStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create artifact table: %w", err)
	}

	logger.Info("Artifact store opened", zap.String("path", path))
	return &ArtifactStore{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database.
func (s *ArtifactStore) Close() error {
	return s.db.Close()
}

// Put replaces the artifact stored under key.
func (s *ArtifactStore) Put(ctx context.Context, key string, payload []byte) error {
	if _, err := s.db.ExecContext(ctx, upsertArtifact, key, payload, s.now().UTC()); err != nil {
		return pkgerrors.NewArtifactPersistenceError("write", err)
	}
	return nil
}

// Get returns the artifact stored under key.
func (s *ArtifactStore) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM clustering_artifacts WHERE selection_key = ?`, key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewNotFoundError("artifact")
	}
	if err != nil {
		return nil, pkgerrors.NewArtifactPersistenceError("read", err)
	}
	return payload, nil
}

// Ping reports whether the database is usable.
func (s *ArtifactStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ ports.ArtifactStore = (*ArtifactStore)(nil)
