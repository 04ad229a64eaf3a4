package backup

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/kalambet/minimemo/internal/note"
)

func sampleNotes() []note.Note {
	return []note.Note{
		{ID: "a", Title: "Zebra", Content: "stripes", Category: "Animals", Color: "blue", Font: "sans", CreatedAt: 100, UpdatedAt: 150},
		{ID: "b", Title: "Apple", Content: "fruit", Category: "Food", Color: "pink", Font: "mono", CreatedAt: 200, UpdatedAt: 200},
	}
}

// TestRoundTrip: import(export(notes, categories)) reproduces the same
// records and the same category sequence.
func TestRoundTrip(t *testing.T) {
	notes := sampleNotes()
	categories := []string{"Animals", "Food"}

	data, err := Export(notes, categories)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	gotNotes, gotCategories, err := Import(data)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !reflect.DeepEqual(gotNotes, notes) {
		t.Errorf("notes round-trip mismatch:\n got %+v\nwant %+v", gotNotes, notes)
	}
	if !reflect.DeepEqual(gotCategories, categories) {
		t.Errorf("categories round-trip mismatch: %v vs %v", gotCategories, categories)
	}
}

func TestExportEnvelope(t *testing.T) {
	data, err := Export(nil, nil)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	for _, field := range []string{"version", "exportedAt", "notes", "categories"} {
		if _, ok := doc[field]; !ok {
			t.Errorf("envelope missing %q", field)
		}
	}
	if string(doc["version"]) != "1" {
		t.Errorf("version = %s, want 1", doc["version"])
	}
	if string(doc["notes"]) != "[]" {
		t.Errorf("nil notes exported as %s, want []", doc["notes"])
	}
}

func TestImportMalformed(t *testing.T) {
	for _, text := range []string{"", "{not json", "][", "{\"notes\": [}"} {
		if _, _, err := Import([]byte(text)); !errors.Is(err, ErrMalformedDocument) {
			t.Errorf("Import(%q) = %v, want ErrMalformedDocument", text, err)
		}
	}
}

func TestImportInvalidSchema(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing notes", `{"version":1,"categories":[]}`},
		{"missing categories", `{"version":1,"notes":[]}`},
		{"notes not an array", `{"version":1,"notes":{"id":"x"},"categories":[]}`},
		{"categories not an array", `{"version":1,"notes":[],"categories":"Work"}`},
		{"note record not an object", `{"version":1,"notes":[42],"categories":[]}`},
		{"category not a string", `{"version":1,"notes":[],"categories":[7]}`},
		{"unsupported version", `{"version":2,"notes":[],"categories":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Import([]byte(tt.doc)); !errors.Is(err, ErrInvalidSchema) {
				t.Errorf("Import = %v, want ErrInvalidSchema", err)
			}
		})
	}
}

func TestImportToleratesMissingVersion(t *testing.T) {
	doc := `{"notes":[],"categories":["Work"]}`
	_, categories, err := Import([]byte(doc))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(categories) != 1 || categories[0] != "Work" {
		t.Errorf("categories = %v", categories)
	}
}

func TestImportNormalizesRecords(t *testing.T) {
	doc := `{
		"version": 1,
		"notes": [
			{"id": "", "title": "no id", "createdAt": 100, "updatedAt": 50},
			{"id": "dup", "title": "first", "createdAt": 10, "updatedAt": 20},
			{"id": "dup", "title": "second", "createdAt": 10, "updatedAt": 20},
			{"id": "c", "title": "odd palette", "colorClass": "bg-mauve-500", "fontClass": "wingdings", "createdAt": 5, "updatedAt": 5}
		],
		"categories": []
	}`

	notes, _, err := Import([]byte(doc))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if notes[0].ID == "" {
		t.Error("missing id not assigned")
	}
	if notes[0].UpdatedAt != notes[0].CreatedAt {
		t.Errorf("timestamps not clamped: created %d, updated %d", notes[0].CreatedAt, notes[0].UpdatedAt)
	}

	if notes[1].ID == notes[2].ID {
		t.Error("duplicate ids survived import")
	}
	if notes[1].ID != "dup" {
		t.Errorf("first holder of an id should keep it, got %q", notes[1].ID)
	}

	if notes[3].Color != note.DefaultColor || notes[3].Font != note.DefaultFont {
		t.Errorf("palette not normalized: %q/%q", notes[3].Color, notes[3].Font)
	}
}
