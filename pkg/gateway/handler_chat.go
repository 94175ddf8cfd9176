package gateway

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/nightjar-ai/nightjar/pkg/pocketbase"
)

const chatListPageSize = 100

// chatListHandler handles GET /api/chat/messages?threadId=&limit=. The
// DocStore has no server-side thread filter, so the proxy pages through up to
// five pages and filters client-side.
func (s *Server) chatListHandler(c *echo.Context) error {
	if !s.requireAuth(c, "chat list") {
		return nil
	}
	if s.deps.DocStore == nil {
		return jsonError(c, http.StatusServiceUnavailable, "DocStore chat bridge unavailable")
	}

	threadID := strings.TrimSpace(c.QueryParam("threadId"))
	if threadID == "" {
		threadID = "default"
	}
	limit := 200
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	limit = clamp(limit, 1, 500)

	ctx := c.Request().Context()
	var items []pocketbase.Record
	for page := 1; page <= 5; page++ {
		records, err := s.deps.DocStore.ListRecords(ctx, s.deps.ChatCollection, page, chatListPageSize)
		if err != nil {
			s.logger.Warn("chat list failed", "error", s.deps.Redactor.Sanitize(err.Error()))
			return jsonError(c, http.StatusBadGateway, "DocStore list failed")
		}
		for _, rec := range records {
			if rec.GetString("threadId") == threadID {
				items = append(items, rec)
			}
		}
		if len(records) < chatListPageSize || len(items) >= limit {
			break
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return chatTimestamp(items[i]) < chatTimestamp(items[j])
	})
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []pocketbase.Record{}
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// chatTimestamp orders records by client-supplied creation time, falling back
// to the DocStore's own created field.
func chatTimestamp(rec pocketbase.Record) string {
	if ts := rec.GetString("createdAtClient"); ts != "" {
		return ts
	}
	return rec.GetString("created")
}

type chatSendBody struct {
	ThreadID string `json:"threadId"`
	Content  string `json:"content"`
}

// chatSendHandler handles POST /api/chat/messages: write a pending user
// record that the bridge worker picks up out-of-band.
func (s *Server) chatSendHandler(c *echo.Context) error {
	if !s.requireAuth(c, "chat send") {
		return nil
	}
	if s.deps.DocStore == nil {
		return jsonError(c, http.StatusServiceUnavailable, "DocStore chat bridge unavailable")
	}

	var body chatSendBody
	if err := c.Bind(&body); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid JSON body")
	}
	threadID := strings.TrimSpace(body.ThreadID)
	content := strings.TrimSpace(body.Content)
	if threadID == "" || content == "" {
		return jsonError(c, http.StatusBadRequest, "threadId and content are required")
	}

	record, err := s.deps.DocStore.CreateRecord(c.Request().Context(), s.deps.ChatCollection, map[string]any{
		"threadId":        threadID,
		"role":            "user",
		"content":         content,
		"status":          "pending",
		"source":          "gateway-ui",
		"createdAtClient": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		s.logger.Warn("chat send failed", "error", s.deps.Redactor.Sanitize(err.Error()))
		return jsonError(c, http.StatusBadGateway, "DocStore create failed")
	}
	return c.JSON(http.StatusOK, record)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
