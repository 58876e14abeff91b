// Package kvstore is the server-side keyed store backing the persistence
// protocol: a sqlite database holding one JSON value per key plus the
// image attachments associated with map entities.
package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/drawmap/backend/internal/models"
	"github.com/drawmap/backend/internal/remote"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS images (
    key           TEXT PRIMARY KEY,
    entity_id     TEXT NOT NULL,
    attachment_id TEXT NOT NULL,
    url           TEXT NOT NULL,
    alt           TEXT NOT NULL DEFAULT ''
);
`

// Store implements the remote persistence protocol over a local sqlite
// database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath and ensures the
// schema exists. Callers must import the sqlite3 driver.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) List(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = json.RawMessage(value)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return json.RawMessage(value), nil
}

func (s *Store) Set(ctx context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return &remote.ProtocolError{Status: 400, Code: "invalid_value", Message: "value is not valid JSON"}
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO kv (key, value) VALUES (?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value
    `, key, string(value))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Remove deletes a key along with any image attachment recorded under it,
// so deleting an entity's image key leaves no orphaned attachment row.
func (s *Store) Remove(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM images WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove image %s: %w", key, err)
	}
	return tx.Commit()
}

// Migrate imports a payload of key/value pairs in a single transaction.
// Existing keys are overwritten.
func (s *Store) Migrate(ctx context.Context, payload map[string]json.RawMessage) (*remote.MigrateResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin migrate: %w", err)
	}
	defer tx.Rollback()

	imported := 0
	for key, value := range payload {
		if !json.Valid(value) {
			return nil, &remote.ProtocolError{Status: 400, Code: "invalid_value", Message: fmt.Sprintf("value for %s is not valid JSON", key)}
		}
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO kv (key, value) VALUES (?, ?)
            ON CONFLICT(key) DO UPDATE SET value = excluded.value
        `, key, string(value)); err != nil {
			return nil, fmt.Errorf("migrate %s: %w", key, err)
		}
		imported++
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit migrate: %w", err)
	}
	return &remote.MigrateResult{Imported: imported}, nil
}

// SaveImage records an attachment association and returns the resolved
// image descriptor. The URL is served from the local media route.
func (s *Store) SaveImage(ctx context.Context, req remote.ImageRequest) (*models.Image, error) {
	if req.Key == "" || req.AttachmentID == "" {
		return nil, &remote.ProtocolError{Status: 400, Code: "invalid_image", Message: "key and attachmentId are required"}
	}

	url := "/media/" + req.AttachmentID
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO images (key, entity_id, attachment_id, url) VALUES (?, ?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET
            entity_id = excluded.entity_id,
            attachment_id = excluded.attachment_id,
            url = excluded.url
    `, req.Key, req.EntityID, req.AttachmentID, url)
	if err != nil {
		return nil, fmt.Errorf("save image %s: %w", req.Key, err)
	}
	// Read the row back so a previously set alt text survives re-upload.
	return s.ImageFor(ctx, req.Key)
}

// ImageFor looks up the stored image for a key, nil when none exists.
func (s *Store) ImageFor(ctx context.Context, key string) (*models.Image, error) {
	var img models.Image
	err := s.db.QueryRowContext(ctx, `
        SELECT attachment_id, url, alt FROM images WHERE key = ?
    `, key).Scan(&img.ID, &img.URL, &img.Alt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("image for %s: %w", key, err)
	}
	return &img, nil
}
