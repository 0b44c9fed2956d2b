package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/taskbot/internal/store"
)

// BlobStore keeps the bot state as a single blob under a well-known key.
// It implements store.Persister.
type BlobStore struct {
	db         *sqlx.DB
	key        string
	legacyFile string
	logger     *slog.Logger
}

// NewBlobStore creates a blob store for key. When legacyFile is not empty
// and no blob exists yet, the file's contents are imported on first load.
func NewBlobStore(db *sqlx.DB, key, legacyFile string, logger *slog.Logger) *BlobStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BlobStore{
		db:         db,
		key:        key,
		legacyFile: legacyFile,
		logger:     logger.With("component", "blob_store"),
	}
}

// Load returns the blob, importing the legacy file on first run.
// It returns store.ErrNotFound when neither exists.
func (b *BlobStore) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := b.db.GetContext(ctx, &data, `SELECT data FROM blobs WHERE key = ?;`, b.key)
	if err == nil {
		b.logger.DebugContext(ctx, "Loaded blob", "key", b.key, "bytes", len(data))
		return data, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to load blob %q: %w", b.key, err)
	}

	return b.importLegacy(ctx)
}

func (b *BlobStore) importLegacy(ctx context.Context) ([]byte, error) {
	if b.legacyFile == "" {
		return nil, store.ErrNotFound
	}
	data, err := os.ReadFile(b.legacyFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy file %q: %w", b.legacyFile, err)
	}

	if err := b.Save(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to import legacy file %q: %w", b.legacyFile, err)
	}
	b.logger.InfoContext(ctx, "Imported legacy state file", "path", b.legacyFile, "bytes", len(data))
	return data, nil
}

// Save overwrites the blob.
func (b *BlobStore) Save(ctx context.Context, data []byte) error {
	if data == nil {
		return errors.New("cannot save nil blob")
	}
	query := `
        INSERT INTO blobs (key, data, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at;
    `
	if _, err := b.db.ExecContext(ctx, query, b.key, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save blob %q: %w", b.key, err)
	}
	return nil
}
