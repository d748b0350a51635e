package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps SQLite database operations
type DB struct {
	db *sql.DB
}

// Open opens or creates a SQLite database
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets serve read while sync writes
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	storage := &DB{db: db}

	// Initialize schema
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return storage, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// initSchema creates tables if they don't exist
func (d *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		subtitle TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL,
		published_at INTEGER,
		updated_at INTEGER,
		banner_url TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		reading_minutes INTEGER NOT NULL DEFAULT 1,
		synced_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_published ON posts(COALESCE(published_at, 0) DESC, id DESC);
	CREATE INDEX IF NOT EXISTS idx_author ON posts(author);
	CREATE INDEX IF NOT EXISTS idx_hash ON posts(content_hash);
	`

	_, err := d.db.Exec(schema)
	return err
}

const selectColumns = `
	SELECT id, title, subtitle, author, published_at, updated_at, banner_url,
	       content, content_hash, reading_minutes, synced_at
	FROM posts
`

// Upsert inserts or updates a document
func (d *DB) Upsert(doc *Document) error {
	query := `
	INSERT INTO posts (
		id, title, subtitle, author, published_at, updated_at, banner_url,
		content, content_hash, reading_minutes, synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		subtitle = excluded.subtitle,
		author = excluded.author,
		published_at = excluded.published_at,
		updated_at = excluded.updated_at,
		banner_url = excluded.banner_url,
		content = excluded.content,
		content_hash = excluded.content_hash,
		reading_minutes = excluded.reading_minutes,
		synced_at = excluded.synced_at
	`

	_, err := d.db.Exec(query,
		doc.ID, doc.Title, doc.Subtitle, doc.Author, toUnix(doc.PublishedAt), toUnix(doc.UpdatedAt),
		doc.BannerURL, doc.Content, doc.ContentHash, doc.ReadingMinutes, doc.SyncedAt.Unix(),
	)
	return err
}

// Get retrieves a document by ID. It returns nil, nil when absent.
func (d *DB) Get(id string) (*Document, error) {
	doc, err := scanDocument(d.db.QueryRow(selectColumns+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// List retrieves all documents, most recently published first
func (d *DB) List() ([]*Document, error) {
	rows, err := d.db.Query(selectColumns + " ORDER BY COALESCE(published_at, 0) DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// Count returns the total number of documents
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM posts").Scan(&count)
	return count, err
}

// IDs returns the id of every mirrored post.
func (d *DB) IDs() ([]string, error) {
	rows, err := d.db.Query("SELECT id FROM posts ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes a post. Deleting an absent post is not an error.
func (d *DB) Delete(id string) error {
	_, err := d.db.Exec("DELETE FROM posts WHERE id = ?", id)
	return err
}

// LastSynced returns when the most recent sync wrote a post, or nil for an
// empty mirror.
func (d *DB) LastSynced() (*time.Time, error) {
	var unix sql.NullInt64
	if err := d.db.QueryRow("SELECT MAX(synced_at) FROM posts").Scan(&unix); err != nil {
		return nil, err
	}
	return fromUnix(unix), nil
}

// GetContentHash retrieves just the content hash for a document
func (d *DB) GetContentHash(id string) (string, error) {
	var hash string
	err := d.db.QueryRow("SELECT content_hash FROM posts WHERE id = ?", id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*Document, error) {
	doc := &Document{}
	var published, updated sql.NullInt64
	var synced int64
	err := s.Scan(
		&doc.ID, &doc.Title, &doc.Subtitle, &doc.Author, &published, &updated, &doc.BannerURL,
		&doc.Content, &doc.ContentHash, &doc.ReadingMinutes, &synced,
	)
	if err != nil {
		return nil, err
	}
	doc.PublishedAt = fromUnix(published)
	doc.UpdatedAt = fromUnix(updated)
	doc.SyncedAt = time.Unix(synced, 0).UTC()
	return doc, nil
}

func toUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
