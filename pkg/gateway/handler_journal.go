package gateway

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/nightjar-ai/nightjar/pkg/pocketbase"
)

type journalTextBody struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Source  string   `json:"source"`
	Tags    []string `json:"tags"`
}

// journalTextHandler handles POST /api/journal/text: save a Markdown note
// under journals/text and record journal_entries metadata with a preview.
func (s *Server) journalTextHandler(c *echo.Context) error {
	if !s.requireAuth(c, "journal text") {
		return nil
	}

	var body journalTextBody
	if err := c.Bind(&body); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid JSON body")
	}
	content := strings.TrimSpace(body.Content)
	if content == "" {
		return jsonError(c, http.StatusBadRequest, "content is required")
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		title = "Journal entry"
	}
	source := strings.TrimSpace(body.Source)
	if source == "" {
		source = "mobile"
	}

	relPath := TextJournalRelPath(title, time.Now())
	absPath := filepath.Join(s.deps.Config.WorkspaceDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return jsonError(c, http.StatusInternalServerError, "Failed to create journal directory")
	}
	note := fmt.Sprintf("# %s\n\n%s\n", title, content)
	if err := os.WriteFile(absPath, []byte(note), 0o644); err != nil {
		return jsonError(c, http.StatusInternalServerError, "Failed to save journal note")
	}

	metadata := s.writeJournalEntry(c, relPath, title, content, source, body.Tags)

	return c.JSON(http.StatusOK, map[string]any{
		"ok":       true,
		"path":     relPath,
		"title":    title,
		"metadata": metadata,
	})
}

func (s *Server) writeJournalEntry(c *echo.Context, relPath, title, content, source string, tags []string) pocketbase.Record {
	if s.deps.DocStore == nil {
		return nil
	}
	record, err := s.deps.DocStore.CreateRecord(c.Request().Context(), "journal_entries", map[string]any{
		"title":           title,
		"entryType":       "text",
		"source":          source,
		"workspacePath":   relPath,
		"status":          "raw",
		"previewText":     truncateWithEllipsis(content, 240),
		"textBody":        content,
		"tagsCsv":         strings.Join(tags, ","),
		"createdAtClient": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		s.logger.Warn("journal metadata write failed", "error", s.deps.Redactor.Sanitize(err.Error()))
		return nil
	}
	return record
}

// truncateWithEllipsis cuts s to at most max runes, appending "…" when
// anything was dropped.
func truncateWithEllipsis(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
