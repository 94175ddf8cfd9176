package gateway

import (
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v5"
)

// libraryItem is one entry in the workspace browser.
type libraryItem struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	Title        string `json:"title"`
	Kind         string `json:"kind"`
	SizeBytes    int64  `json:"sizeBytes"`
	ModifiedAt   int64  `json:"modifiedAt"`
	PreviewText  string `json:"previewText"`
	MediaURL     string `json:"mediaUrl,omitempty"`
	EditableText bool   `json:"editableText"`
	Scope        string `json:"scope"`
}

// libraryKind maps a filename extension to its display kind. Unknown
// extensions are hidden from the browser entirely.
func libraryKind(ext string) string {
	switch strings.ToLower(ext) {
	case ".md", ".txt", ".json", ".srt":
		return "text"
	case ".mp3", ".wav", ".m4a", ".aac", ".flac":
		return "audio"
	case ".mp4", ".mov", ".webm", ".mkv":
		return "video"
	case ".jpg", ".jpeg", ".png", ".webp":
		return "image"
	default:
		return ""
	}
}

// libraryItemsHandler handles GET /api/library/items?scope=&limit=.
func (s *Server) libraryItemsHandler(c *echo.Context) error {
	if !s.requireAuth(c, "library list") {
		return nil
	}

	scope := strings.ToLower(strings.TrimSpace(c.QueryParam("scope")))
	if scope == "" {
		scope = "all"
	}
	limit := 200
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	limit = clamp(limit, 1, 1000)

	items, err := listLibraryItems(s.deps.Config.WorkspaceDir, scope, limit)
	if err != nil {
		s.logger.Warn("library list failed", "error", err)
		return jsonError(c, http.StatusInternalServerError, "Failed to list library items")
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func listLibraryItems(workspaceDir, scope string, limit int) ([]libraryItem, error) {
	var roots []string
	switch scope {
	case "journal":
		roots = []string{"journals"}
	case "feed":
		roots = []string{"journals/processed", "posts"}
	default:
		scope = "all"
		roots = []string{"journals", "posts"}
	}

	items := make([]libraryItem, 0, 32)
	for _, root := range roots {
		abs := filepath.Join(workspaceDir, filepath.FromSlash(root))
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		// Walk errors on individual entries are skipped so a single bad
		// permission cannot hide the rest of the workspace.
		_ = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if item, ok := buildLibraryItem(workspaceDir, path, scope); ok {
				items = append(items, item)
			}
			return nil
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ModifiedAt > items[j].ModifiedAt
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func buildLibraryItem(workspaceDir, path, requestedScope string) (libraryItem, bool) {
	kind := libraryKind(filepath.Ext(path))
	if kind == "" {
		return libraryItem{}, false
	}
	rel, err := filepath.Rel(workspaceDir, path)
	if err != nil {
		return libraryItem{}, false
	}
	rel = filepath.ToSlash(rel)
	relLower := strings.ToLower(rel)

	itemScope := "journal"
	if strings.HasPrefix(rel, "posts/") || strings.HasPrefix(rel, "journals/processed/") {
		itemScope = "feed"
	}
	switch requestedScope {
	case "feed":
		if itemScope != "feed" {
			return libraryItem{}, false
		}
	case "journal":
		if itemScope == "feed" {
			return libraryItem{}, false
		}
	}
	if itemScope == "feed" {
		// Pipeline intermediates are not feed content.
		if strings.Contains(relLower, "/artifacts/") ||
			strings.Contains(relLower, "/pipeline/") ||
			strings.HasSuffix(relLower, ".srt") ||
			strings.HasSuffix(relLower, ".json") ||
			strings.HasSuffix(relLower, ".caption.txt") {
			return libraryItem{}, false
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return libraryItem{}, false
	}

	item := libraryItem{
		ID:           rel,
		Path:         rel,
		Title:        strings.ReplaceAll(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), "_", " "),
		Kind:         kind,
		SizeBytes:    info.Size(),
		ModifiedAt:   info.ModTime().Unix(),
		EditableText: kind == "text",
		Scope:        itemScope,
	}
	if kind == "text" {
		if content, err := os.ReadFile(path); err == nil {
			item.PreviewText = truncateWithEllipsis(string(content), 240)
		}
	} else {
		item.MediaURL = "/api/media/" + rel
	}
	return item, true
}

// libraryTextHandler handles GET /api/library/text?path=.
func (s *Server) libraryTextHandler(c *echo.Context) error {
	if !s.requireAuth(c, "library text") {
		return nil
	}

	absPath := ResolveTextPath(s.deps.Config.WorkspaceDir, c.QueryParam("path"))
	if absPath == "" {
		return jsonError(c, http.StatusBadRequest, "Invalid text path")
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return jsonError(c, http.StatusNotFound, "Failed to read text file")
	}
	rel, err := filepath.Rel(s.deps.Config.WorkspaceDir, absPath)
	if err != nil {
		rel = c.QueryParam("path")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"path":    filepath.ToSlash(rel),
		"content": string(content),
	})
}

type saveTextBody struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// librarySaveTextHandler handles POST /api/library/save-text.
func (s *Server) librarySaveTextHandler(c *echo.Context) error {
	if !s.requireAuth(c, "library save") {
		return nil
	}

	var body saveTextBody
	if err := c.Bind(&body); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid JSON body")
	}
	absPath := ResolveTextPath(s.deps.Config.WorkspaceDir, body.Path)
	if absPath == "" {
		return jsonError(c, http.StatusBadRequest, "Invalid text path")
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return jsonError(c, http.StatusInternalServerError, "Failed to create directory")
	}
	if err := os.WriteFile(absPath, []byte(body.Content), 0o644); err != nil {
		return jsonError(c, http.StatusInternalServerError, "Failed to save text file")
	}
	rel, err := filepath.Rel(s.deps.Config.WorkspaceDir, absPath)
	if err != nil {
		rel = body.Path
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "path": filepath.ToSlash(rel)})
}
