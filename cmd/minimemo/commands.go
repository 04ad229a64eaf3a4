package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/minimemo/internal/config"
)

type noteJSON struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Category  string `json:"category"`
	Color     string `json:"colorClass"`
	Font      string `json:"fontClass"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// shortID abbreviates long IDs for listing. Seed notes and imported backups
// can carry IDs shorter than the uuid prefix, so those print in full.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes",
	Long: `List notes, optionally filtered and sorted.

Examples:
  minimemo list
  minimemo list --category Work --sort alpha_asc
  minimemo list --search milk`,
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		category, _ := cmd.Flags().GetString("category")
		sortMode, _ := cmd.Flags().GetString("sort")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		params := url.Values{}
		if search != "" {
			params.Set("q", search)
		}
		if category != "" {
			params.Set("category", category)
		}
		if sortMode != "" {
			params.Set("sort", sortMode)
		}
		path := "/api/notes"
		if len(params) > 0 {
			path += "?" + params.Encode()
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var listing struct {
			Notes []noteJSON `json:"notes"`
		}
		if err := decodeJSON(resp, &listing); err != nil {
			return err
		}

		if len(listing.Notes) == 0 {
			fmt.Println("No notes found.")
			return nil
		}

		for _, n := range listing.Notes {
			title := n.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("%s  %-12s  %s\n",
				colorize(colorCyan, shortID(n.ID)),
				n.Category,
				colorize(colorBold, title),
			)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().String("search", "", "substring to match in title or content")
	listCmd.Flags().String("category", "", "only show notes in this category")
	listCmd.Flags().String("sort", "", "sort order: created_desc, created_asc, updated_desc, alpha_asc")
}

// --- new ---

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a note",
	Long: `Create a note. A note with an empty title and content is discarded.

Examples:
  minimemo new --title "Grocery list" --content "Milk, eggs" --category Shopping
  minimemo new --title "Idea" --color yellow --font serif`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := noteRequestFromFlags(cmd)

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/notes", req)
		if err != nil {
			return err
		}
		if resp.StatusCode == 204 {
			resp.Body.Close()
			printWarning("Note was blank and has been discarded")
			return nil
		}

		var created noteJSON
		if err := decodeJSON(resp, &created); err != nil {
			return err
		}

		printSuccess("Created note %s", created.ID)
		return nil
	},
}

// --- show ---

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single note as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/notes/"+args[0])
		if err != nil {
			return err
		}

		var n any
		if err := decodeJSON(resp, &n); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(n)
	},
}

// --- edit ---

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		// Load the current note so unset flags keep their values.
		resp, err := client.get(cmd.Context(), "/api/notes/"+args[0])
		if err != nil {
			return err
		}
		var current noteJSON
		if err := decodeJSON(resp, &current); err != nil {
			return err
		}

		req := map[string]string{
			"title":      current.Title,
			"content":    current.Content,
			"category":   current.Category,
			"colorClass": current.Color,
			"fontClass":  current.Font,
		}
		for flag, key := range map[string]string{
			"title":    "title",
			"content":  "content",
			"category": "category",
			"color":    "colorClass",
			"font":     "fontClass",
		} {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetString(flag)
				req[key] = v
			}
		}

		putResp, err := client.put(cmd.Context(), "/api/notes/"+args[0], req)
		if err != nil {
			return err
		}
		if putResp.StatusCode == 204 {
			putResp.Body.Close()
			printWarning("Note became blank and was left unchanged")
			return nil
		}

		var updated noteJSON
		if err := decodeJSON(putResp, &updated); err != nil {
			return err
		}

		printSuccess("Updated note %s", updated.ID)
		return nil
	},
}

func noteRequestFromFlags(cmd *cobra.Command) map[string]string {
	title, _ := cmd.Flags().GetString("title")
	content, _ := cmd.Flags().GetString("content")
	category, _ := cmd.Flags().GetString("category")
	color, _ := cmd.Flags().GetString("color")
	font, _ := cmd.Flags().GetString("font")

	req := map[string]string{
		"title":   title,
		"content": content,
	}
	if category != "" {
		req["category"] = category
	}
	if color != "" {
		req["colorClass"] = color
	}
	if font != "" {
		req["fontClass"] = font
	}
	return req
}

func addNoteFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "note title")
	cmd.Flags().String("content", "", "note body")
	cmd.Flags().String("category", "", "category name (must exist)")
	cmd.Flags().String("color", "", "color id (white, yellow, blue, green, pink, purple, orange)")
	cmd.Flags().String("font", "", "font id (sans, serif, mono)")
}

func init() {
	addNoteFlags(newCmd)
	addNoteFlags(editCmd)
}

// --- delete ---

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			fmt.Fprintf(os.Stderr, "Delete note %s? [y/N] ", args[0])
			if !confirmPrompt(os.Stdin) {
				fmt.Fprintln(os.Stderr, "aborted")
				return nil
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/api/notes/"+args[0])
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}

		printSuccess("Deleted note %s", args[0])
		return nil
	},
}

func confirmPrompt(r io.Reader) bool {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func init() {
	deleteCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
}

// --- categories ---

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List or add categories",
}

var categoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/categories")
		if err != nil {
			return err
		}

		var listing struct {
			Categories []string `json:"categories"`
		}
		if err := decodeJSON(resp, &listing); err != nil {
			return err
		}

		for _, c := range listing.Categories {
			fmt.Println(c)
		}
		return nil
	},
}

var categoriesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/categories", map[string]string{"name": args[0]})
		if err != nil {
			return err
		}
		if resp.StatusCode == 204 {
			resp.Body.Close()
			printWarning("Category name was blank, nothing added")
			return nil
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Added category %s", result["name"])
		return nil
	},
}

func init() {
	categoriesCmd.AddCommand(categoriesListCmd)
	categoriesCmd.AddCommand(categoriesAddCmd)
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all notes and categories as a backup document",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/export")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
		}

		if output == "" {
			output = fmt.Sprintf("minimemo-backup-%s.json", time.Now().UTC().Format("2006-01-02"))
		}
		if output == "-" {
			_, err := io.Copy(os.Stdout, resp.Body)
			return err
		}

		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		if _, err := io.Copy(f, resp.Body); err != nil {
			return err
		}

		printSuccess("Backup written to %s", output)
		return nil
	},
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Restore a backup document, replacing all current data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("Importing replaces ALL current notes and categories. Use --confirm to proceed.")
			return nil
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading backup file: %w", err)
		}

		var doc json.RawMessage
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("backup file is not valid JSON: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/import?confirm=true", doc)
		if err != nil {
			return err
		}

		var result map[string]int
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Imported %d notes and %d categories", result["notes"], result["categories"])
		return nil
	},
}

func init() {
	exportCmd.Flags().String("output", "", "output file path (default: minimemo-backup-<date>.json, - for stdout)")
	importCmd.Flags().Bool("confirm", false, "confirm the destructive restore")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
