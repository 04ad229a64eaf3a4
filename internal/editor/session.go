// Package editor holds the transient draft of one note being created or
// edited. Nothing reaches the store until the draft is committed, and no
// session state survives closing.
package editor

import (
	"errors"
	"strings"

	"github.com/kalambet/minimemo/internal/note"
)

// Store is the subset of the note store a session needs to commit intents.
type Store interface {
	SaveNote(d note.Draft) (note.Note, error)
	DeleteNote(id string) error
	AddCategory(name string) error
}

// State is the session lifecycle state.
type State int

const (
	StateClosed State = iota
	StateEditing
	StateConfirmingDelete
)

var (
	// ErrClosed is returned by operations that need an open session.
	ErrClosed = errors.New("no open editor session")
	// ErrNotDeletable is returned when delete is requested for a draft that
	// has never been saved.
	ErrNotDeletable = errors.New("draft has no stored note to delete")
	// ErrNotConfirming is returned when a delete confirmation step is taken
	// outside the confirming sub-state.
	ErrNotConfirming = errors.New("no delete pending confirmation")
)

// Session is the in-memory editing state machine:
// Closed -> Editing [-> ConfirmingDelete] -> Closed.
type Session struct {
	store Store
	state State
	draft note.Draft
}

func NewSession(store Store) *Session {
	return &Session{store: store}
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Draft returns a copy of the current draft. Meaningful only while open.
func (s *Session) Draft() note.Draft { return s.draft }

// OpenNew starts a session for a brand-new note. The draft seeds from the
// default template: empty title and content, the first available category,
// default color and font.
func (s *Session) OpenNew(categories []string) {
	category := ""
	if len(categories) > 0 {
		category = categories[0]
	}
	s.draft = note.Draft{
		Category: category,
		Color:    note.DefaultColor,
		Font:     note.DefaultFont,
	}
	s.state = StateEditing
}

// OpenExisting starts a session editing a stored note. The note's id rides
// along on the draft; createdAt is preserved by the store on commit.
func (s *Session) OpenExisting(n note.Note) {
	s.draft = note.Draft{
		ID:       n.ID,
		Title:    n.Title,
		Content:  n.Content,
		Category: n.Category,
		Color:    n.Color,
		Font:     n.Font,
	}
	s.state = StateEditing
}

// Close discards the draft unconditionally.
func (s *Session) Close() {
	s.draft = note.Draft{}
	s.state = StateClosed
}

func (s *Session) open() bool {
	return s.state == StateEditing || s.state == StateConfirmingDelete
}

// SetTitle updates the draft title. Edits mutate only the in-memory draft.
func (s *Session) SetTitle(title string) error {
	if !s.open() {
		return ErrClosed
	}
	s.draft.Title = title
	return nil
}

// SetContent updates the draft content.
func (s *Session) SetContent(content string) error {
	if !s.open() {
		return ErrClosed
	}
	s.draft.Content = content
	return nil
}

// SetCategory selects an existing category for the draft.
func (s *Session) SetCategory(category string) error {
	if !s.open() {
		return ErrClosed
	}
	s.draft.Category = category
	return nil
}

// SetColor picks a palette color for the draft.
func (s *Session) SetColor(color string) error {
	if !s.open() {
		return ErrClosed
	}
	s.draft.Color = color
	return nil
}

// SetFont picks a font for the draft.
func (s *Session) SetFont(font string) error {
	if !s.open() {
		return ErrClosed
	}
	s.draft.Font = font
	return nil
}

// AddCategory creates a brand-new category and selects it for the draft.
// The name is trimmed first; a name that is empty after trimming cancels
// the affordance silently.
func (s *Session) AddCategory(name string) error {
	if !s.open() {
		return ErrClosed
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if err := s.store.AddCategory(name); err != nil {
		return err
	}
	s.draft.Category = name
	return nil
}

// Save commits the draft and closes the session. A draft whose title and
// content are both empty or whitespace-only is an implicit cancel: the
// session closes without touching the store and committed is false. On a
// store error the session stays open so the draft is not lost.
func (s *Session) Save() (saved note.Note, committed bool, err error) {
	if !s.open() {
		return note.Note{}, false, ErrClosed
	}

	if strings.TrimSpace(s.draft.Title) == "" && strings.TrimSpace(s.draft.Content) == "" {
		s.Close()
		return note.Note{}, false, nil
	}

	saved, err = s.store.SaveNote(s.draft)
	if err != nil {
		return note.Note{}, false, err
	}
	s.Close()
	return saved, true, nil
}

// RequestDelete enters the confirmation sub-state. Only a session editing a
// stored note can delete.
func (s *Session) RequestDelete() error {
	if !s.open() {
		return ErrClosed
	}
	if s.draft.ID == "" {
		return ErrNotDeletable
	}
	s.state = StateConfirmingDelete
	return nil
}

// CancelDelete leaves the confirmation sub-state without data loss.
func (s *Session) CancelDelete() error {
	if s.state != StateConfirmingDelete {
		return ErrNotConfirming
	}
	s.state = StateEditing
	return nil
}

// ConfirmDelete issues the destructive call and closes the session.
func (s *Session) ConfirmDelete() error {
	if s.state != StateConfirmingDelete {
		return ErrNotConfirming
	}
	if err := s.store.DeleteNote(s.draft.ID); err != nil {
		return err
	}
	s.Close()
	return nil
}
