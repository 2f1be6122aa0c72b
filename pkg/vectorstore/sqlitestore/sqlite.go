// Package sqlitestore persists each user's vector store as its own SQLite
// file under <root>/<user id>/index.db.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"docubot-be/pkg/vectorstore"
)

const IndexFile = "index.db"

const schema = `
CREATE TABLE IF NOT EXISTS store_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS passages (
    position INTEGER PRIMARY KEY,
    id TEXT NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    vector BLOB NOT NULL,
    created_at INTEGER NOT NULL
);
`

type Backend struct {
	root string
}

func New(root string) (*Backend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create vector store root: %w", err)
	}
	return &Backend{root: root}, nil
}

// Dir is the per-user directory. The id must already be validated.
func (b *Backend) Dir(userID string) string {
	return filepath.Join(b.root, userID)
}

func (b *Backend) userDir(userID string) (string, error) {
	if err := vectorstore.ValidateUserID(userID); err != nil {
		return "", err
	}
	return b.Dir(userID), nil
}

// Exists reports whether the user's directory is present.
func (b *Backend) Exists(_ context.Context, userID string) (bool, error) {
	dir, err := b.userDir(userID)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// Load reads the user's index. A directory without an index file loads as an empty store.
func (b *Backend) Load(ctx context.Context, userID string) (*vectorstore.Snapshot, error) {
	dir, err := b.userDir(userID)
	if err != nil {
		return nil, err
	}
	snap := &vectorstore.Snapshot{UserID: userID}

	path := filepath.Join(dir, IndexFile)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return snap, nil
	}

	db, err := open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var dim string
	err = db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = 'dimension'`).Scan(&dim)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to read store metadata: %w", err)
	default:
		if snap.Dimension, err = strconv.Atoi(dim); err != nil {
			return nil, fmt.Errorf("corrupt dimension %q: %w", dim, err)
		}
	}

	rows, err := db.QueryContext(ctx, `SELECT position, id, source, content, vector, created_at FROM passages ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query passages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p       vectorstore.Passage
			blob    []byte
			created int64
		)
		if err := rows.Scan(&p.Position, &p.ID, &p.Source, &p.Text, &blob, &created); err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		p.Vector = deserializeVector(blob)
		p.CreatedAt = time.Unix(0, created).UTC()
		snap.Passages = append(snap.Passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate passages: %w", err)
	}
	return snap, nil
}

// Save replaces the user's index in a single transaction.
func (b *Backend) Save(ctx context.Context, snap *vectorstore.Snapshot) error {
	dir, err := b.userDir(snap.UserID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := open(ctx, filepath.Join(dir, IndexFile))
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM passages`); err != nil {
		return fmt.Errorf("failed to clear passages: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO store_meta (key, value) VALUES ('dimension', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(snap.Dimension)); err != nil {
		return fmt.Errorf("failed to write store metadata: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO passages (position, id, source, content, vector, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range snap.Passages {
		if _, err := stmt.ExecContext(ctx, i, p.ID, p.Source, p.Text, serializeVector(p.Vector), p.CreatedAt.UnixNano()); err != nil {
			return fmt.Errorf("failed to insert passage %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit store: %w", err)
	}
	return nil
}

func (b *Backend) Delete(_ context.Context, userID string) error {
	dir, err := b.userDir(userID)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

func open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func serializeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func deserializeVector(data []byte) []float32 {
	vector := make([]float32, len(data)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}
