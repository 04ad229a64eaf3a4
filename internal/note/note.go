// Package note contains the core data types of the application,
// independent of the storage and API layers.
package note

import "fmt"

// Note is a single user-authored record. Timestamps are epoch milliseconds,
// matching the backup document format.
type Note struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Category  string `json:"category"`
	Color     string `json:"colorClass"`
	Font      string `json:"fontClass"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Draft carries the editable fields of a note on their way to the store.
// An empty ID means a new note; a non-empty ID replaces the matching record.
type Draft struct {
	ID       string
	Title    string
	Content  string
	Category string
	Color    string
	Font     string
}

// SortMode selects the ordering of a note view.
type SortMode string

const (
	SortCreatedDesc SortMode = "created_desc" // newest first
	SortCreatedAsc  SortMode = "created_asc"  // oldest first
	SortUpdatedDesc SortMode = "updated_desc" // recently updated first
	SortAlphaAsc    SortMode = "alpha_asc"    // title A-Z
)

// ParseSortMode validates a sort mode string. The empty string maps to
// SortCreatedDesc, the application default.
func ParseSortMode(s string) (SortMode, error) {
	switch SortMode(s) {
	case "":
		return SortCreatedDesc, nil
	case SortCreatedDesc, SortCreatedAsc, SortUpdatedDesc, SortAlphaAsc:
		return SortMode(s), nil
	}
	return "", fmt.Errorf("unknown sort mode %q", s)
}

// SortLabels maps each sort mode to its display label.
var SortLabels = map[SortMode]string{
	SortCreatedDesc: "Newest First",
	SortCreatedAsc:  "Oldest First",
	SortUpdatedDesc: "Recently Updated",
	SortAlphaAsc:    "A-Z",
}
