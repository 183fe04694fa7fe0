// Package attachments is the upload registry: file bytes on disk under
// random stored names, metadata rows in SQLite.
package attachments

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record describes one stored attachment.
type Record struct {
	ID           int64  `json:"id"`
	StoredName   string `json:"filename"`
	OriginalName string `json:"originalname"`
	SizeBytes    int64  `json:"size"`
	CreatedAt    int64  `json:"created_at"`
}

// ErrTooLarge means the upload exceeds the configured size limit.
type ErrTooLarge struct {
	Limit int64
}

func (e *ErrTooLarge) Error() string {
	return fmt.Sprintf("attachment exceeds %d bytes", e.Limit)
}

// Registry stores attachment files and their metadata. The stored name is
// random hex, so original names never collide or escape into paths.
type Registry struct {
	dir      string
	maxBytes int64
	db       *sql.DB
}

// NewRegistry opens (or creates) the registry. dir receives the file
// bytes; dbPath holds the metadata. maxBytes <= 0 means no limit.
func NewRegistry(ctx context.Context, dir, dbPath string, maxBytes int64) (*Registry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	// WAL mode for concurrent readers; SQLite only ever has one writer.
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open attachments database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping attachments database: %w", err)
	}

	r := &Registry{dir: dir, maxBytes: maxBytes, db: db}
	if err := r.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize attachments schema: %w", err)
	}
	return r, nil
}

// Close closes the metadata database.
func (r *Registry) Close() error {
	return r.db.Close()
}

func (r *Registry) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS attachments (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		stored_name   TEXT NOT NULL UNIQUE,
		original_name TEXT NOT NULL,
		size_bytes    INTEGER NOT NULL,
		created_at    INTEGER NOT NULL
	);
	`
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Save stores the content under a fresh random name and records its
// metadata. The reader is consumed fully; exceeding the size limit
// aborts the save and removes the partial file.
func (r *Registry) Save(ctx context.Context, originalName string, content io.Reader) (Record, error) {
	storedName, err := randomName()
	if err != nil {
		return Record{}, err
	}
	path := filepath.Join(r.dir, storedName)

	f, err := os.Create(path)
	if err != nil {
		return Record{}, fmt.Errorf("failed to create attachment file: %w", err)
	}

	src := content
	if r.maxBytes > 0 {
		src = io.LimitReader(content, r.maxBytes+1)
	}
	written, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return Record{}, fmt.Errorf("failed to write attachment: %w", err)
	}
	if r.maxBytes > 0 && written > r.maxBytes {
		os.Remove(path)
		return Record{}, &ErrTooLarge{Limit: r.maxBytes}
	}

	rec := Record{
		StoredName:   storedName,
		OriginalName: originalName,
		SizeBytes:    written,
		CreatedAt:    time.Now().Unix(),
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO attachments (stored_name, original_name, size_bytes, created_at) VALUES (?, ?, ?, ?)`,
		rec.StoredName, rec.OriginalName, rec.SizeBytes, rec.CreatedAt)
	if err != nil {
		os.Remove(path)
		return Record{}, fmt.Errorf("failed to record attachment: %w", err)
	}
	rec.ID, _ = res.LastInsertId()
	return rec, nil
}

// List returns all attachments, newest first.
func (r *Registry) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, stored_name, original_name, size_bytes, created_at FROM attachments ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.StoredName, &rec.OriginalName, &rec.SizeBytes, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// randomName generates a 32-char hex name, the same flavor of opaque
// identifier the original upload middleware produced.
func randomName() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to generate attachment name: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}
