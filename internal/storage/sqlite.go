// Package storage persists the note and category sequences in SQLite.
//
// The store owns the canonical ordering: new notes are prepended (storage
// order is newest-created-first), edits replace a record in place without
// moving it, and every mutation is committed before the call returns.
package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kalambet/minimemo/internal/note"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps a SQLite database holding the note and category sequences.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests). A database that cannot be read is moved aside and replaced by a
// fresh one so the caller never sees a startup error for corrupt state; a
// never-before-seeded store is populated with the built-in starter data.
func Open(dataDir string) (*Store, error) {
	s, err := open(dataDir)
	if err != nil && dataDir != ":memory:" {
		// Corrupt or unreadable database. Keep the bytes around for manual
		// recovery and start over with seed data.
		path := dbPath(dataDir)
		backup := path + ".corrupt-" + time.Now().UTC().Format("20060102150405")
		slog.Warn("persisted notes unreadable, falling back to seed data", "error", err, "backup", backup)
		if renameErr := os.Rename(path, backup); renameErr != nil {
			return nil, fmt.Errorf("moving corrupt database aside: %w", renameErr)
		}
		s, err = open(dataDir)
	}
	if err != nil {
		return nil, err
	}
	if err := s.seedIfEmpty(); err != nil {
		s.Close()
		return nil, fmt.Errorf("seeding store: %w", err)
	}
	return s, nil
}

func dbPath(dataDir string) string {
	return filepath.Join(dataDir, "minimemo.db")
}

func open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = dbPath(dataDir)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// seedIfEmpty populates a store that has never held data with the starter
// notes and default categories. A store the user emptied on purpose stays
// empty: the seeded flag is written exactly once.
func (s *Store) seedIfEmpty() error {
	var seeded int
	err := s.db.QueryRow("SELECT COUNT(*) FROM meta WHERE key = 'seeded'").Scan(&seeded)
	if err != nil {
		return err
	}
	if seeded > 0 {
		return nil
	}

	now := s.now().UnixMilli()
	if err := s.ReplaceAll(note.SeedNotes(now), note.DefaultCategories); err != nil {
		return err
	}
	_, err = s.db.Exec("INSERT INTO meta (key, value) VALUES ('seeded', '1')")
	return err
}

// --- Notes ---

const noteColumns = "id, title, content, category, color, font, created_at, updated_at"

func scanNote(scan func(dest ...any) error) (note.Note, error) {
	var n note.Note
	err := scan(&n.ID, &n.Title, &n.Content, &n.Category, &n.Color, &n.Font, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

// ListNotes returns the full note sequence in storage order
// (newest-created-first).
func (s *Store) ListNotes() ([]note.Note, error) {
	rows, err := s.db.Query("SELECT " + noteColumns + " FROM notes ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	var notes []note.Note
	for rows.Next() {
		n, err := scanNote(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// GetNote returns the note with the given id, or ErrNotFound.
func (s *Store) GetNote(id string) (note.Note, error) {
	n, err := scanNote(s.db.QueryRow("SELECT "+noteColumns+" FROM notes WHERE id = ?", id).Scan)
	if err == sql.ErrNoRows {
		return note.Note{}, ErrNotFound
	}
	if err != nil {
		return note.Note{}, fmt.Errorf("querying note %s: %w", id, err)
	}
	return n, nil
}

// SaveNote commits a draft. A draft without an ID becomes a new note: it
// gets a generated id, both timestamps set to now, and is prepended to the
// sequence. A draft with an ID replaces the matching note in place,
// preserving its position and createdAt and refreshing updatedAt; saving an
// unknown id returns ErrNotFound. The draft's category must exist; color
// and font tags outside the palette are normalized to the defaults.
func (s *Store) SaveNote(d note.Draft) (note.Note, error) {
	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM categories WHERE name = ?", d.Category).Scan(&exists); err != nil {
		return note.Note{}, fmt.Errorf("checking category: %w", err)
	}
	if exists == 0 {
		return note.Note{}, fmt.Errorf("category %q does not exist", d.Category)
	}

	now := s.now().UnixMilli()
	n := note.Note{
		ID:        d.ID,
		Title:     d.Title,
		Content:   d.Content,
		Category:  d.Category,
		Color:     note.NormalizeColor(d.Color),
		Font:      note.NormalizeFont(d.Font),
		UpdatedAt: now,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return note.Note{}, fmt.Errorf("beginning save transaction: %w", err)
	}

	if d.ID == "" {
		n.ID = uuid.New().String()
		n.CreatedAt = now
		_, err = tx.Exec(`
			INSERT INTO notes (id, position, title, content, category, color, font, created_at, updated_at)
			VALUES (?, (SELECT COALESCE(MIN(position), 1) - 1 FROM notes), ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.Title, n.Content, n.Category, n.Color, n.Font, n.CreatedAt, n.UpdatedAt,
		)
		if err != nil {
			tx.Rollback()
			return note.Note{}, fmt.Errorf("inserting note: %w", err)
		}
	} else {
		if err := tx.QueryRow("SELECT created_at FROM notes WHERE id = ?", d.ID).Scan(&n.CreatedAt); err != nil {
			tx.Rollback()
			if err == sql.ErrNoRows {
				return note.Note{}, ErrNotFound
			}
			return note.Note{}, fmt.Errorf("looking up note %s: %w", d.ID, err)
		}
		_, err = tx.Exec(`
			UPDATE notes SET title = ?, content = ?, category = ?, color = ?, font = ?, updated_at = ?
			WHERE id = ?`,
			n.Title, n.Content, n.Category, n.Color, n.Font, n.UpdatedAt, n.ID,
		)
		if err != nil {
			tx.Rollback()
			return note.Note{}, fmt.Errorf("updating note %s: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return note.Note{}, fmt.Errorf("committing save: %w", err)
	}
	return n, nil
}

// DeleteNote removes the note with the given id. Deleting an id that does
// not exist is a no-op, not an error.
func (s *Store) DeleteNote(id string) error {
	if _, err := s.db.Exec("DELETE FROM notes WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting note %s: %w", id, err)
	}
	return nil
}

// --- Categories ---

// ListCategories returns the category names in insertion order.
func (s *Store) ListCategories() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM categories ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AddCategory appends a category name unless it is already present
// (case-sensitive exact match). Idempotent.
func (s *Store) AddCategory(name string) error {
	_, err := s.db.Exec(`
		INSERT INTO categories (name, position)
		VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM categories))
		ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("adding category %q: %w", name, err)
	}
	return nil
}

// ReplaceAll atomically replaces both sequences wholesale. Used by restore;
// performs no validation beyond what the backup codec already guarantees.
func (s *Store) ReplaceAll(notes []note.Note, categories []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning replace transaction: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM notes"); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing notes: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM categories"); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing categories: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO notes (id, position, title, content, category, color, font, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing note insert: %w", err)
	}
	defer stmt.Close()

	for i, n := range notes {
		if _, err := stmt.Exec(n.ID, i, n.Title, n.Content, n.Category, n.Color, n.Font, n.CreatedAt, n.UpdatedAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting note %s: %w", n.ID, err)
		}
	}

	for i, name := range categories {
		if _, err := tx.Exec("INSERT INTO categories (name, position) VALUES (?, ?)", name, i); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting category %q: %w", name, err)
		}
	}

	return tx.Commit()
}

// CountNotes returns the number of stored notes.
func (s *Store) CountNotes() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM notes").Scan(&count)
	return count, err
}
