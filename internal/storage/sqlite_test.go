package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/minimemo/internal/note"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenSeedsFirstRun(t *testing.T) {
	s := openTestStore(t)

	notes, err := s.ListNotes()
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(notes) != 6 {
		t.Fatalf("expected 6 seed notes, got %d", len(notes))
	}

	cats, err := s.ListCategories()
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(cats) != len(note.DefaultCategories) {
		t.Fatalf("expected %d seed categories, got %d", len(note.DefaultCategories), len(cats))
	}
	for i, want := range note.DefaultCategories {
		if cats[i] != want {
			t.Errorf("category[%d] = %q, want %q", i, cats[i], want)
		}
	}

	for _, n := range notes {
		if n.CreatedAt > n.UpdatedAt {
			t.Errorf("seed note %s: createdAt %d > updatedAt %d", n.ID, n.CreatedAt, n.UpdatedAt)
		}
	}
}

// TestNoReseedAfterEmptying verifies a deliberately emptied store stays
// empty across reopen: seeding happens exactly once per database.
func TestNoReseedAfterEmptying(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := s1.ReplaceAll(nil, note.DefaultCategories); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer s2.Close()

	count, err := s2.CountNotes()
	if err != nil {
		t.Fatalf("CountNotes: %v", err)
	}
	if count != 0 {
		t.Errorf("expected emptied store to stay empty, got %d notes", count)
	}
}

// TestOpenCorruptDatabase verifies that an unreadable database file is
// moved aside and replaced with a fresh seeded store, without an error.
func TestOpenCorruptDatabase(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(dbPath(dir), []byte("this is not a sqlite database at all"), 0o644); err != nil {
		t.Fatalf("writing garbage: %v", err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open over corrupt file: %v", err)
	}
	defer s.Close()

	count, err := s.CountNotes()
	if err != nil {
		t.Fatalf("CountNotes: %v", err)
	}
	if count != 6 {
		t.Errorf("expected seeded store, got %d notes", count)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var foundBackup bool
	for _, e := range entries {
		if strings.Contains(e.Name(), ".corrupt-") {
			foundBackup = true
		}
	}
	if !foundBackup {
		t.Error("corrupt database file was not preserved")
	}
}

func TestSaveNoteNewPrepends(t *testing.T) {
	s := openTestStore(t)

	saved, err := s.SaveNote(note.Draft{Title: "First new", Category: "Work", Color: "blue", Font: "sans"})
	if err != nil {
		t.Fatalf("SaveNote: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected generated id")
	}
	if saved.CreatedAt != saved.UpdatedAt {
		t.Errorf("new note timestamps differ: %d vs %d", saved.CreatedAt, saved.UpdatedAt)
	}

	notes, err := s.ListNotes()
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if notes[0].ID != saved.ID {
		t.Errorf("new note not at head of sequence, head is %s", notes[0].ID)
	}

	second, err := s.SaveNote(note.Draft{Title: "Second new", Category: "Work"})
	if err != nil {
		t.Fatalf("SaveNote: %v", err)
	}
	notes, _ = s.ListNotes()
	if notes[0].ID != second.ID || notes[1].ID != saved.ID {
		t.Errorf("sequence head = %s, %s; want %s, %s", notes[0].ID, notes[1].ID, second.ID, saved.ID)
	}
}

func TestSaveNoteIDsUnique(t *testing.T) {
	s := openTestStore(t)

	seen := make(map[string]bool)
	for range 20 {
		n, err := s.SaveNote(note.Draft{Title: "x", Category: "Misc"})
		if err != nil {
			t.Fatalf("SaveNote: %v", err)
		}
		if seen[n.ID] {
			t.Fatalf("duplicate id %s", n.ID)
		}
		seen[n.ID] = true
	}
}

func TestSaveNoteEditPreservesCreatedAtAndPosition(t *testing.T) {
	s := openTestStore(t)

	base := time.Now()
	s.now = func() time.Time { return base }

	created, err := s.SaveNote(note.Draft{Title: "Original", Category: "Ideas"})
	if err != nil {
		t.Fatalf("SaveNote: %v", err)
	}
	// A later note so the edited one is no longer at the head.
	if _, err := s.SaveNote(note.Draft{Title: "Newer", Category: "Ideas"}); err != nil {
		t.Fatalf("SaveNote: %v", err)
	}

	s.now = func() time.Time { return base.Add(5 * time.Second) }
	edited, err := s.SaveNote(note.Draft{ID: created.ID, Title: "Edited", Category: "Ideas"})
	if err != nil {
		t.Fatalf("SaveNote edit: %v", err)
	}

	if edited.CreatedAt != created.CreatedAt {
		t.Errorf("createdAt changed on edit: %d -> %d", created.CreatedAt, edited.CreatedAt)
	}
	if edited.UpdatedAt <= created.UpdatedAt {
		t.Errorf("updatedAt did not advance: %d -> %d", created.UpdatedAt, edited.UpdatedAt)
	}
	if edited.CreatedAt > edited.UpdatedAt {
		t.Errorf("createdAt %d > updatedAt %d", edited.CreatedAt, edited.UpdatedAt)
	}

	notes, _ := s.ListNotes()
	if notes[1].ID != created.ID {
		t.Errorf("edited note moved in the sequence")
	}
	if notes[1].Title != "Edited" {
		t.Errorf("edit not applied, title = %q", notes[1].Title)
	}
}

func TestSaveNoteUnknownID(t *testing.T) {
	s := openTestStore(t)

	_, err := s.SaveNote(note.Draft{ID: "no-such-note", Title: "x", Category: "Work"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveNoteUnknownCategory(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.SaveNote(note.Draft{Title: "x", Category: "Nonexistent"}); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestSaveNoteNormalizesPalette(t *testing.T) {
	s := openTestStore(t)

	n, err := s.SaveNote(note.Draft{Title: "x", Category: "Misc", Color: "bg-chartreuse-950", Font: "comic-sans"})
	if err != nil {
		t.Fatalf("SaveNote: %v", err)
	}
	if n.Color != note.DefaultColor {
		t.Errorf("color = %q, want default %q", n.Color, note.DefaultColor)
	}
	if n.Font != note.DefaultFont {
		t.Errorf("font = %q, want default %q", n.Font, note.DefaultFont)
	}
}

func TestDeleteNote(t *testing.T) {
	s := openTestStore(t)

	n, err := s.SaveNote(note.Draft{Title: "doomed", Category: "Misc"})
	if err != nil {
		t.Fatalf("SaveNote: %v", err)
	}
	before, _ := s.CountNotes()

	if err := s.DeleteNote(n.ID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	after, _ := s.CountNotes()
	if after != before-1 {
		t.Errorf("count %d -> %d, want one fewer", before, after)
	}

	if _, err := s.GetNote(n.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting a nonexistent id is a no-op.
	if err := s.DeleteNote("never-existed"); err != nil {
		t.Errorf("delete of unknown id returned %v", err)
	}
	final, _ := s.CountNotes()
	if final != after {
		t.Errorf("no-op delete changed count %d -> %d", after, final)
	}
}

func TestAddCategory(t *testing.T) {
	s := openTestStore(t)

	if err := s.AddCategory("Recipes"); err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	if err := s.AddCategory("Recipes"); err != nil {
		t.Fatalf("AddCategory repeat: %v", err)
	}
	// Case-sensitive uniqueness: different casing is a different category.
	if err := s.AddCategory("recipes"); err != nil {
		t.Fatalf("AddCategory lowercase: %v", err)
	}

	cats, err := s.ListCategories()
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}

	count := 0
	for _, c := range cats {
		if c == "Recipes" || c == "recipes" {
			count++
		}
	}
	if count != 2 {
		t.Errorf("expected both casings stored once each, got %d entries", count)
	}
	if cats[len(cats)-2] != "Recipes" || cats[len(cats)-1] != "recipes" {
		t.Errorf("categories not appended in insertion order: %v", cats)
	}
}

func TestReplaceAll(t *testing.T) {
	s := openTestStore(t)

	notes := []note.Note{
		{ID: "a", Title: "A", Category: "X", Color: "blue", Font: "sans", CreatedAt: 100, UpdatedAt: 100},
		{ID: "b", Title: "B", Category: "Y", Color: "pink", Font: "mono", CreatedAt: 200, UpdatedAt: 250},
	}
	cats := []string{"X", "Y"}

	if err := s.ReplaceAll(notes, cats); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	gotNotes, err := s.ListNotes()
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(gotNotes) != 2 || gotNotes[0].ID != "a" || gotNotes[1].ID != "b" {
		t.Errorf("notes after restore: %+v", gotNotes)
	}
	if gotNotes[1].UpdatedAt != 250 {
		t.Errorf("restored timestamps not preserved: %+v", gotNotes[1])
	}

	gotCats, err := s.ListCategories()
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(gotCats) != 2 || gotCats[0] != "X" || gotCats[1] != "Y" {
		t.Errorf("categories after restore: %v", gotCats)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestDataDirIsolation(t *testing.T) {
	a := t.TempDir()
	b := filepath.Join(a, "nested")

	s1, err := Open(a)
	if err != nil {
		t.Fatalf("Open(a): %v", err)
	}
	defer s1.Close()
	s2, err := Open(b)
	if err != nil {
		t.Fatalf("Open(b): %v", err)
	}
	defer s2.Close()

	if _, err := s1.SaveNote(note.Draft{Title: "only in a", Category: "Misc"}); err != nil {
		t.Fatalf("SaveNote: %v", err)
	}
	ca, _ := s1.CountNotes()
	cb, _ := s2.CountNotes()
	if ca == cb {
		t.Errorf("stores share state: both have %d notes", ca)
	}
}
