// Package query derives the filtered, sorted note view shown to the user.
//
// View is a pure function over a snapshot of the store: it never mutates
// its input and identical inputs always produce identical output order.
package query

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/kalambet/minimemo/internal/note"
)

// Query is the ephemeral view state: free-text search, an optional exact
// category filter, and one of the four sort modes.
type Query struct {
	Search   string
	Category string
	Sort     note.SortMode
}

// View filters notes by the query and returns them in the requested order.
//
// Search is a case-insensitive substring match over title, content, and
// category; an empty search matches everything. The category filter is an
// exact, case-sensitive match. Sorting is stable: notes that compare equal
// keep their input order.
func View(notes []note.Note, q Query) []note.Note {
	result := make([]note.Note, 0, len(notes))

	needle := strings.ToLower(q.Search)
	for _, n := range notes {
		if needle != "" && !matches(n, needle) {
			continue
		}
		if q.Category != "" && n.Category != q.Category {
			continue
		}
		result = append(result, n)
	}

	// Titles are ordered with locale-aware comparison rather than raw byte
	// order, so e.g. "Ärende" sorts next to "Arende". The collator carries
	// internal buffers and is not safe for concurrent use, hence per call.
	var titles *collate.Collator
	if q.Sort == note.SortAlphaAsc {
		titles = collate.New(language.Und)
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch q.Sort {
		case note.SortCreatedAsc:
			return a.CreatedAt < b.CreatedAt
		case note.SortUpdatedDesc:
			return a.UpdatedAt > b.UpdatedAt
		case note.SortAlphaAsc:
			return titles.CompareString(a.Title, b.Title) < 0
		default: // SortCreatedDesc
			return a.CreatedAt > b.CreatedAt
		}
	})

	return result
}

func matches(n note.Note, needle string) bool {
	return strings.Contains(strings.ToLower(n.Title), needle) ||
		strings.Contains(strings.ToLower(n.Content), needle) ||
		strings.Contains(strings.ToLower(n.Category), needle)
}
