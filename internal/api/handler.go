// Package api exposes the note store over HTTP and MCP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/minimemo/internal/backup"
	"github.com/kalambet/minimemo/internal/editor"
	"github.com/kalambet/minimemo/internal/note"
	"github.com/kalambet/minimemo/internal/query"
	"github.com/kalambet/minimemo/internal/storage"
)

const maxImportBodySize = 10 << 20 // 10MB

// NoteRequest is the wire form of a note draft. Create and update both take
// the full representation, the way the editor commits a whole draft.
type NoteRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
	Color    string `json:"colorClass"`
	Font     string `json:"fontClass"`
}

type AppDeps struct {
	Store  *storage.Store
	Token  string       // optional; empty disables bearer auth
	Assets http.Handler // optional; mounted under /assets when set
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	if deps.Assets != nil {
		r.Mount("/assets", http.StripPrefix("/assets", deps.Assets))
	}

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Get("/api/notes", handleListNotes(deps))
		r.Post("/api/notes", handleCreateNote(deps))
		r.Get("/api/notes/{id}", handleGetNote(deps))
		r.Put("/api/notes/{id}", handleUpdateNote(deps))
		r.Delete("/api/notes/{id}", handleDeleteNote(deps))
		r.Get("/api/categories", handleListCategories(deps))
		r.Post("/api/categories", handleAddCategory(deps))
		r.Get("/api/palette", handleGetPalette())
		r.Get("/api/export", handleExport(deps))
		r.Post("/api/import", handleImport(deps))
	})

	return r
}

// handleListNotes returns the filtered, sorted view. Query parameters: q
// (substring search), category (exact match; selecting none returns all),
// sort (created_desc | created_asc | updated_desc | alpha_asc).
func handleListNotes(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sortMode, err := note.ParseSortMode(r.URL.Query().Get("sort"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		notes, err := deps.Store.ListNotes()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list notes: %v", err)
			return
		}

		view := query.View(notes, query.Query{
			Search:   r.URL.Query().Get("q"),
			Category: r.URL.Query().Get("category"),
			Sort:     sortMode,
		})

		writeJSON(w, http.StatusOK, map[string]any{"notes": view})
	}
}

func handleGetNote(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := deps.Store.GetNote(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "note not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load note: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}

// handleCreateNote runs a full editor session for the request: a draft whose
// title and content are both blank is an implicit cancel and produces 204
// without touching the store.
func handleCreateNote(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req NoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		categories, err := deps.Store.ListCategories()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list categories: %v", err)
			return
		}

		sess := editor.NewSession(deps.Store)
		sess.OpenNew(categories)
		applyRequest(sess, req)

		saved, committed, err := sess.Save()
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if !committed {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}

func handleUpdateNote(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		existing, err := deps.Store.GetNote(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found_error", "note not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load note: %v", err)
			return
		}

		var req NoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		sess := editor.NewSession(deps.Store)
		sess.OpenExisting(existing)
		applyRequest(sess, req)

		saved, committed, err := sess.Save()
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if !committed {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func applyRequest(sess *editor.Session, req NoteRequest) {
	sess.SetTitle(req.Title)
	sess.SetContent(req.Content)
	if req.Category != "" {
		sess.SetCategory(req.Category)
	}
	if req.Color != "" {
		sess.SetColor(req.Color)
	}
	if req.Font != "" {
		sess.SetFont(req.Font)
	}
}

func handleDeleteNote(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.DeleteNote(chi.URLParam(r, "id")); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete note: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListCategories(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := deps.Store.ListCategories()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list categories: %v", err)
			return
		}
		if categories == nil {
			categories = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
	}
}

// handleAddCategory appends a new category. The name is trimmed; a name
// that is empty after trimming is a silent no-op, mirroring the editor's
// add-category affordance.
func handleAddCategory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err := deps.Store.AddCategory(name); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add category: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"name": name})
	}
}

func handleGetPalette() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"colors": note.Colors,
			"fonts":  note.Fonts,
			"sorts":  note.SortLabels,
		})
	}
}

func handleExport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notes, err := deps.Store.ListNotes()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list notes: %v", err)
			return
		}
		categories, err := deps.Store.ListCategories()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list categories: %v", err)
			return
		}

		data, err := backup.Export(notes, categories)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to build backup: %v", err)
			return
		}

		filename := fmt.Sprintf("minimemo-backup-%s.json", time.Now().UTC().Format("2006-01-02"))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// handleImport restores a backup document. The replace is destructive, so
// the request must carry confirm=true; without it nothing is touched and
// the response says what confirmation would do.
func handleImport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBodySize)
		defer r.Body.Close()

		data, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading request body: %v", err)
			return
		}

		notes, categories, err := backup.Import(data)
		if errors.Is(err, backup.ErrMalformedDocument) || errors.Is(err, backup.ErrInvalidSchema) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "import failed: %v", err)
			return
		}

		if r.URL.Query().Get("confirm") != "true" {
			httpError(w, http.StatusConflict, "confirmation_required",
				"importing replaces all %d existing notes; repeat the request with confirm=true", mustCount(deps.Store))
			return
		}

		if err := deps.Store.ReplaceAll(notes, categories); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "restoring backup: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]int{
			"notes":      len(notes),
			"categories": len(categories),
		})
	}
}

func mustCount(s *storage.Store) int {
	n, err := s.CountNotes()
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
