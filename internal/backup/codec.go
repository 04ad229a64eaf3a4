// Package backup serializes the full store (notes and categories) to a
// portable versioned JSON document and validates documents on import.
//
// The codec never touches the store itself: restoring is the caller's
// decision, taken after an explicit confirmation of the destructive replace.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/minimemo/internal/note"
)

// Version is the only defined backup document version.
const Version = 1

var (
	// ErrMalformedDocument is returned when the document is not valid JSON.
	ErrMalformedDocument = errors.New("malformed backup document")
	// ErrInvalidSchema is returned when the parsed document does not carry
	// array-typed notes and categories fields of the expected shape.
	ErrInvalidSchema = errors.New("invalid backup schema")
)

// Document is the backup envelope.
type Document struct {
	Version    int         `json:"version"`
	ExportedAt int64       `json:"exportedAt"`
	Notes      []note.Note `json:"notes"`
	Categories []string    `json:"categories"`
}

// Export builds a version-1 envelope around the given sequences and
// serializes it as indented JSON. Nil sequences are emitted as empty arrays
// so the result always satisfies Import's schema.
func Export(notes []note.Note, categories []string) ([]byte, error) {
	if notes == nil {
		notes = []note.Note{}
	}
	if categories == nil {
		categories = []string{}
	}
	doc := Document{
		Version:    Version,
		ExportedAt: time.Now().UnixMilli(),
		Notes:      notes,
		Categories: categories,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding backup document: %w", err)
	}
	return data, nil
}

// Import parses and validates a backup document, returning the note and
// category sequences it carries. Syntactically invalid JSON fails with
// ErrMalformedDocument; a document whose notes or categories are missing,
// not arrays, or hold records of the wrong shape fails with ErrInvalidSchema.
//
// Well-typed records are normalized rather than rejected: a missing or
// duplicate id gets a fresh one, timestamps are clamped so createdAt never
// exceeds updatedAt, and color/font tags outside the palette fall back to
// the defaults. This is stricter than simply trusting the file but keeps
// backups from older or hand-edited exports importable.
func Import(data []byte) ([]note.Note, []string, error) {
	var raw struct {
		Version    *int            `json:"version"`
		Notes      json.RawMessage `json:"notes"`
		Categories json.RawMessage `json:"categories"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	if raw.Version != nil && *raw.Version != Version {
		return nil, nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidSchema, *raw.Version)
	}
	if raw.Notes == nil {
		return nil, nil, fmt.Errorf("%w: missing notes array", ErrInvalidSchema)
	}
	if raw.Categories == nil {
		return nil, nil, fmt.Errorf("%w: missing categories array", ErrInvalidSchema)
	}

	var notes []note.Note
	if err := json.Unmarshal(raw.Notes, &notes); err != nil {
		return nil, nil, fmt.Errorf("%w: notes: %v", ErrInvalidSchema, err)
	}
	var categories []string
	if err := json.Unmarshal(raw.Categories, &categories); err != nil {
		return nil, nil, fmt.Errorf("%w: categories: %v", ErrInvalidSchema, err)
	}

	seen := make(map[string]bool, len(notes))
	for i := range notes {
		normalize(&notes[i], seen)
	}

	return notes, categories, nil
}

func normalize(n *note.Note, seen map[string]bool) {
	if n.ID == "" || seen[n.ID] {
		n.ID = uuid.New().String()
	}
	seen[n.ID] = true

	if n.CreatedAt == 0 {
		n.CreatedAt = n.UpdatedAt
	}
	if n.UpdatedAt < n.CreatedAt {
		n.UpdatedAt = n.CreatedAt
	}

	n.Color = note.NormalizeColor(n.Color)
	n.Font = note.NormalizeFont(n.Font)
}
