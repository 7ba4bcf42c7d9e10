// Package library stores imported books and their formats in a SQLite
// database and runs the library related file type hooks.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andrei-cloud/ebookconv/internal/errorcodes"
	"github.com/andrei-cloud/ebookconv/internal/oeb"
	"github.com/andrei-cloud/ebookconv/internal/plugins"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

// DatabaseName is the file name of the library database inside the library root.
const DatabaseName = "metadata.db"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		title     TEXT NOT NULL,
		authors   TEXT NOT NULL DEFAULT '',
		publisher TEXT NOT NULL DEFAULT '',
		language  TEXT NOT NULL DEFAULT '',
		added     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS formats (
		book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		format  TEXT NOT NULL,
		path    TEXT NOT NULL,
		size    INTEGER NOT NULL,
		PRIMARY KEY (book_id, format)
	)`,
}

// Book is a library entry.
type Book struct {
	ID        int64             `json:"id"`
	Title     string            `json:"title"`
	Authors   string            `json:"authors"`
	Publisher string            `json:"publisher,omitempty"`
	Language  string            `json:"language,omitempty"`
	Added     time.Time         `json:"added"`
	Formats   map[string]string `json:"formats"` // format -> absolute path
}

// Library is a book store rooted at a directory.
type Library struct {
	db   *sql.DB
	root string
	reg  *plugins.Registry
}

// Open opens or creates the library at root. Hooks are taken from reg.
func Open(ctx context.Context, root string, reg *plugins.Registry) (*Library, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create library root: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(root, DatabaseName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// pragmas below are per connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, stmt := range append(pragmas, schema...) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to prepare database: %w", err)
		}
	}

	return &Library{db: db, root: root, reg: reg}, nil
}

// Close closes the database.
func (l *Library) Close() error {
	return l.db.Close()
}

// Root returns the library directory.
func (l *Library) Root() string {
	return l.root
}

// Add imports the file at path as a new book and returns its id.
func (l *Library) Add(ctx context.Context, path string) (int64, error) {
	ft := plugins.FileType(path)
	if ft == "" {
		return 0, fmt.Errorf("%s: file has no extension", path)
	}
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}

	src, _ := l.reg.RunFileTypeHooks(ctx, path, plugins.OccasionImport, ft)
	if src != path {
		defer os.Remove(src)
	}

	mi := l.readMetadata(ctx, src, ft)
	if mi.Title == "" {
		mi.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	var id int64
	var dest string
	err := l.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO books (title, authors, publisher, language, added) VALUES (?, ?, ?, ?, ?)`,
			mi.Title, mi.AuthorsString(), mi.Publisher, mi.Language, time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}

		dest, err = l.storeFile(ctx, tx, id, mi.Title, ft, src)

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("add %s: %w", path, err)
	}

	log.Info().Str("event", "library_add").Int64("book_id", id).Str("format", ft).Str("path", dest).Msg("book added")

	l.reg.RunPostImport(ctx, id, ft, l)
	l.reg.RunPostAdd(ctx, id, map[string]string{ft: dest}, l)

	return id, nil
}

// AddFormat stores path as a format of an existing book, replacing the
// previous file of that format.
func (l *Library) AddFormat(ctx context.Context, bookID int64, path string) error {
	ft := plugins.FileType(path)
	if ft == "" {
		return fmt.Errorf("%s: file has no extension", path)
	}

	err := l.inTx(ctx, func(tx *sql.Tx) error {
		var title string
		err := tx.QueryRowContext(ctx, `SELECT title FROM books WHERE id = ?`, bookID).Scan(&title)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %d", errorcodes.ErrBookNotFound, bookID)
		}
		if err != nil {
			return err
		}
		_, err = l.storeFile(ctx, tx, bookID, title, ft, path)

		return err
	})
	if err != nil {
		return err
	}

	l.reg.RunPostConvert(ctx, bookID, ft, l)

	return nil
}

// RemoveFormat deletes one format of a book.
func (l *Library) RemoveFormat(ctx context.Context, bookID int64, format string) error {
	format = strings.ToLower(format)
	path, err := l.FormatPath(ctx, bookID, format)
	if err != nil {
		return err
	}

	if _, err := l.db.ExecContext(ctx,
		`DELETE FROM formats WHERE book_id = ? AND format = ?`, bookID, format); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	l.reg.RunPostDelete(ctx, bookID, format, l)

	return nil
}

// Remove deletes a book with all its formats.
func (l *Library) Remove(ctx context.Context, bookID int64) error {
	b, err := l.Get(ctx, bookID)
	if err != nil {
		return err
	}
	for format := range b.Formats {
		if err := l.RemoveFormat(ctx, bookID, format); err != nil {
			return err
		}
	}

	if _, err := l.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, bookID); err != nil {
		return err
	}

	return os.RemoveAll(l.bookDir(bookID))
}

// FormatPath implements plugins.Library.
func (l *Library) FormatPath(ctx context.Context, bookID int64, format string) (string, error) {
	var rel string
	err := l.db.QueryRowContext(ctx,
		`SELECT path FROM formats WHERE book_id = ? AND format = ?`, bookID, strings.ToLower(format),
	).Scan(&rel)
	if errors.Is(err, sql.ErrNoRows) {
		if _, gerr := l.Get(ctx, bookID); gerr != nil {
			return "", gerr
		}
		return "", fmt.Errorf("%w: %d %s", errorcodes.ErrL2, bookID, format)
	}
	if err != nil {
		return "", err
	}

	return filepath.Join(l.root, filepath.FromSlash(rel)), nil
}

// Get returns one book with its formats.
func (l *Library) Get(ctx context.Context, bookID int64) (*Book, error) {
	b := &Book{ID: bookID, Formats: map[string]string{}}
	var added string
	err := l.db.QueryRowContext(ctx,
		`SELECT title, authors, publisher, language, added FROM books WHERE id = ?`, bookID,
	).Scan(&b.Title, &b.Authors, &b.Publisher, &b.Language, &added)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", errorcodes.ErrBookNotFound, bookID)
	}
	if err != nil {
		return nil, err
	}
	b.Added, _ = time.Parse(time.RFC3339, added)

	rows, err := l.db.QueryContext(ctx, `SELECT format, path FROM formats WHERE book_id = ?`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var format, rel string
		if err := rows.Scan(&format, &rel); err != nil {
			return nil, err
		}
		b.Formats[format] = filepath.Join(l.root, filepath.FromSlash(rel))
	}

	return b, rows.Err()
}

// List returns every book id in insertion order.
func (l *Library) List(ctx context.Context) ([]int64, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id FROM books ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// readMetadata returns the result of the first enabled reader that succeeds.
func (l *Library) readMetadata(ctx context.Context, path, ft string) *oeb.Metadata {
	f, err := os.Open(path)
	if err != nil {
		return &oeb.Metadata{}
	}
	defer f.Close()

	for _, r := range l.reg.MetadataReadersFor(ft) {
		if l.reg.IsPluginDisabled(r) {
			continue
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			break
		}
		var mi *oeb.Metadata
		err := plugins.WithMount(ctx, r, func(ctx context.Context) error {
			var err error
			mi, err = r.GetMetadata(ctx, f, ft)
			return err
		})
		if err == nil && mi != nil {
			return mi
		}
		log.Debug().Err(err).Str("plugin", r.Meta().Name).Str("path", path).Msg("metadata reader failed")
	}

	return &oeb.Metadata{}
}

// storeFile copies src into the book directory and records it as format ft.
func (l *Library) storeFile(ctx context.Context, tx *sql.Tx, bookID int64, title, ft, src string) (string, error) {
	dir := l.bookDir(bookID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(dir, safeName(title)+"."+ft)
	size, err := copyFile(src, dest)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(l.root, dest)
	if err != nil {
		return "", err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO formats (book_id, format, path, size) VALUES (?, ?, ?, ?)
		 ON CONFLICT(book_id, format) DO UPDATE SET path = excluded.path, size = excluded.size`,
		bookID, ft, filepath.ToSlash(rel), size,
	)

	return dest, err
}

func (l *Library) bookDir(bookID int64) string {
	return filepath.Join(l.root, fmt.Sprintf("%d", bookID))
}

func (l *Library) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// safeName turns a title into a portable file name.
func safeName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, strings.TrimSpace(title))
	name = strings.Trim(name, ". ")
	if r := []rune(name); len(r) > 80 {
		name = string(r[:80])
	}
	if name == "" {
		return "book"
	}

	return name
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}

	return n, err
}
