package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/minimemo/internal/editor"
	"github.com/kalambet/minimemo/internal/note"
	"github.com/kalambet/minimemo/internal/query"
	"github.com/kalambet/minimemo/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store *storage.Store
}

// NewMCPServer creates an MCP server exposing the note store as tools and
// resources, so agents can read and write the same data the app owns.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"minimemo",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("minimemo — local note store for short text notes grouped by category."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_notes",
			mcp.WithDescription("List notes, optionally filtered by a search query and category, in the requested order."),
			mcp.WithString("query", mcp.Description("Case-insensitive substring to match in title, content, or category")),
			mcp.WithString("category", mcp.Description("Exact category name to filter by")),
			mcp.WithString("sort", mcp.Description("Sort mode: created_desc (default), created_asc, updated_desc, alpha_asc")),
		),
		mcpListNotes(deps),
	)

	s.AddTool(
		mcp.NewTool("save_note",
			mcp.WithDescription("Create a note, or update an existing one when id is given. A note with blank title and content is discarded rather than saved."),
			mcp.WithString("id", mcp.Description("ID of the note to update; omit to create a new note")),
			mcp.WithString("title", mcp.Description("Note title")),
			mcp.WithString("content", mcp.Description("Note content")),
			mcp.WithString("category", mcp.Description("Existing category name; defaults to the first category for new notes")),
		),
		mcpSaveNote(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_note",
			mcp.WithDescription("Delete a note by id. Deleting an unknown id is a no-op."),
			mcp.WithString("id", mcp.Description("ID of the note to delete"), mcp.Required()),
		),
		mcpDeleteNote(deps),
	)

	s.AddTool(
		mcp.NewTool("add_category",
			mcp.WithDescription("Add a new category. Adding an existing name is a no-op."),
			mcp.WithString("name", mcp.Description("Category name"), mcp.Required()),
		),
		mcpAddCategory(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"minimemo://notes",
			"All Notes",
			mcp.WithResourceDescription("The full note sequence as JSON, newest-created-first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceNotes(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"minimemo://categories",
			"Categories",
			mcp.WithResourceDescription("Category names in insertion order"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCategories(deps),
	)

	return s
}

func mcpListNotes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sortMode, err := note.ParseSortMode(req.GetString("sort", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}

		notes, err := deps.Store.ListNotes()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list notes: %v", err)), nil
		}

		view := query.View(notes, query.Query{
			Search:   req.GetString("query", ""),
			Category: req.GetString("category", ""),
			Sort:     sortMode,
		})

		b, err := json.Marshal(view)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal notes: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSaveNote(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess := editor.NewSession(deps.Store)

		if id := req.GetString("id", ""); id != "" {
			existing, err := deps.Store.GetNote(id)
			if err != nil {
				return mcpError(fmt.Sprintf("note %s not found", id)), nil
			}
			sess.OpenExisting(existing)
		} else {
			categories, err := deps.Store.ListCategories()
			if err != nil {
				return mcpError(fmt.Sprintf("failed to list categories: %v", err)), nil
			}
			sess.OpenNew(categories)
		}

		sess.SetTitle(req.GetString("title", ""))
		sess.SetContent(req.GetString("content", ""))
		if category := req.GetString("category", ""); category != "" {
			sess.SetCategory(category)
		}

		saved, committed, err := sess.Save()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to save note: %v", err)), nil
		}
		if !committed {
			return mcpText("Note was blank and has been discarded."), nil
		}
		return mcpText(fmt.Sprintf("Saved note %s", saved.ID)), nil
	}
}

func mcpDeleteNote(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		if err := deps.Store.DeleteNote(id); err != nil {
			return mcpError(fmt.Sprintf("failed to delete note: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Deleted note %s", id)), nil
	}
}

func mcpAddCategory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}

		sess := editor.NewSession(deps.Store)
		sess.OpenNew(nil)
		if err := sess.AddCategory(name); err != nil {
			return mcpError(fmt.Sprintf("failed to add category: %v", err)), nil
		}
		sess.Close()
		return mcpText(fmt.Sprintf("Category %q available", name)), nil
	}
}

func mcpResourceNotes(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		notes, err := deps.Store.ListNotes()
		if err != nil {
			return nil, fmt.Errorf("failed to list notes: %w", err)
		}
		if notes == nil {
			notes = []note.Note{}
		}

		b, err := json.Marshal(notes)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal notes: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceCategories(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		categories, err := deps.Store.ListCategories()
		if err != nil {
			return nil, fmt.Errorf("failed to list categories: %w", err)
		}
		if categories == nil {
			categories = []string{}
		}

		b, err := json.Marshal(categories)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal categories: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
