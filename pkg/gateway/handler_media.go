package gateway

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/nightjar-ai/nightjar/pkg/pocketbase"
)

// mediaUploadHandler handles POST /api/media/upload. The raw request body is
// streamed to disk under journals/media, then a media_assets metadata record
// is written to the DocStore. A failed stream removes the partial file.
func (s *Server) mediaUploadHandler(c *echo.Context) error {
	if !s.requireAuth(c, "media upload") {
		return nil
	}
	req := c.Request()

	contentType := req.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	kind := strings.TrimSpace(c.QueryParam("kind"))
	if kind == "" {
		kind = InferMediaKind(contentType)
	}
	source := strings.TrimSpace(c.QueryParam("source"))
	if source == "" {
		source = "mobile"
	}
	title := strings.TrimSpace(c.QueryParam("title"))
	originalName := strings.TrimSpace(c.QueryParam("filename"))
	if originalName == "" {
		originalName = strings.TrimSpace(req.Header.Get("X-File-Name"))
	}
	if originalName == "" {
		originalName = "upload-" + uuid.NewString()
	}

	relPath := MediaStorageRelPath(kind, originalName, time.Now())
	absPath := filepath.Join(s.deps.Config.WorkspaceDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return jsonError(c, http.StatusInternalServerError, "Failed to create media directory")
	}

	file, err := os.Create(absPath)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "Failed to create upload file")
	}

	written, err := io.Copy(file, req.Body)
	closeErr := file.Close()
	if err != nil {
		_ = os.Remove(absPath)
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return jsonError(c, http.StatusRequestEntityTooLarge, "request body too large")
		}
		s.logger.Warn("media upload stream failed", "error", err)
		return jsonError(c, http.StatusBadRequest, "Upload stream error")
	}
	if closeErr != nil {
		_ = os.Remove(absPath)
		return jsonError(c, http.StatusInternalServerError, "Failed writing upload file")
	}

	metadata := s.writeMediaAsset(c, relPath, contentType, kind, title, source,
		written, strings.TrimSpace(c.QueryParam("entry_id")))

	return c.JSON(http.StatusOK, map[string]any{
		"ok":          true,
		"kind":        kind,
		"contentType": contentType,
		"bytes":       written,
		"path":        relPath,
		"title":       title,
		"metadata":    metadata,
	})
}

// writeMediaAsset records upload metadata in the DocStore. Metadata is an
// enhancement: a failure is logged and the upload still succeeds.
func (s *Server) writeMediaAsset(c *echo.Context, relPath, contentType, kind, title, source string, size int64, entryID string) pocketbase.Record {
	if s.deps.DocStore == nil {
		return nil
	}
	record, err := s.deps.DocStore.CreateRecord(c.Request().Context(), "media_assets", map[string]any{
		"title":           title,
		"assetType":       kind,
		"mimeType":        contentType,
		"source":          source,
		"workspacePath":   relPath,
		"status":          "uploaded",
		"sizeBytes":       strconv.FormatInt(size, 10),
		"entryId":         entryID,
		"createdAtClient": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		s.logger.Warn("media metadata write failed", "error", s.deps.Redactor.Sanitize(err.Error()))
		return nil
	}
	return record
}

// mediaStreamHandler handles GET /api/media/{*path}: stream a file if and
// only if its canonicalized path sits under <workspace>/journals.
func (s *Server) mediaStreamHandler(c *echo.Context) error {
	if !s.requireAuth(c, "media stream") {
		return nil
	}

	requested := c.Param("*")
	absPath := ResolveMediaPath(s.deps.Config.WorkspaceDir, requested)
	if absPath == "" {
		return jsonError(c, http.StatusBadRequest, "Invalid media path")
	}
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		return jsonError(c, http.StatusNotFound, "Media file not found")
	}

	http.ServeFile(c.Response(), c.Request(), absPath)
	return nil
}
