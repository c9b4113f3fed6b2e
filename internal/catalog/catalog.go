// Package catalog maps sequence labels to the content hash of their bundle.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Entry is one label in the catalog.
type Entry struct {
	Label     string    `json:"label"`
	Algo      string    `json:"algo"`
	Hash      string    `json:"hash"`
	Frames    int       `json:"frames"`
	CreatedAt time.Time `json:"created_at"`
}

// Catalog is the sqlite backed label store.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the catalog at path and applies pending migrations.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Catalog{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	// m.Close would close db as well
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Put inserts or replaces the entry for e.Label. A zero CreatedAt is set to now.
func (c *Catalog) Put(ctx context.Context, e Entry) error {
	if e.Label == "" {
		return fmt.Errorf("empty label")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO labels (label, algo, hash, frames, created_at) VALUES (?, ?, ?, ?, ?)",
		e.Label, e.Algo, e.Hash, e.Frames, e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store label %s: %w", e.Label, err)
	}
	return nil
}

// Get returns the entry for label.
func (c *Catalog) Get(ctx context.Context, label string) (Entry, bool, error) {
	row := c.db.QueryRowContext(ctx, "SELECT label, algo, hash, frames, created_at FROM labels WHERE label = ?", label)
	e, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to get label %s: %w", label, err)
	}
	return e, true, nil
}

// List returns every entry ordered by label.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT label, algo, hash, frames, created_at FROM labels ORDER BY label")
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read label: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes label and reports whether it existed.
func (c *Catalog) Delete(ctx context.Context, label string) (bool, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM labels WHERE label = ?", label)
	if err != nil {
		return false, fmt.Errorf("failed to delete label %s: %w", label, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Referenced reports whether any label points at the given content.
func (c *Catalog) Referenced(ctx context.Context, algo, hash string) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM labels WHERE algo = ? AND hash = ?", algo, hash).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check references: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (Entry, error) {
	var e Entry
	var created int64
	if err := s.Scan(&e.Label, &e.Algo, &e.Hash, &e.Frames, &created); err != nil {
		return Entry{}, err
	}
	e.CreatedAt = time.Unix(created, 0)
	return e, nil
}
