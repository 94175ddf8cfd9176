package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/nightjar-ai/nightjar/pkg/memory"
	"github.com/nightjar-ai/nightjar/pkg/security"
)

type webhookBody struct {
	Message string `json:"message"`
}

// webhookHandler handles POST /webhook: the authenticated simple-chat entry
// point. Admission order is rate limit, bearer auth, webhook secret,
// body parse, idempotency, then dispatch.
func (s *Server) webhookHandler(c *echo.Context) error {
	key := clientKey(c, s.deps.Config.Gateway.TrustForwardedHeaders)
	if !s.deps.Limiters.Webhook.Allow(key) {
		s.logger.Warn("/webhook rate limit exceeded")
		return c.JSON(http.StatusTooManyRequests, map[string]any{
			"error":       "Too many webhook requests. Please retry later.",
			"retry_after": int(s.deps.Limiters.Webhook.Window().Seconds()),
		})
	}

	if !s.requireAuth(c, "webhook") {
		return nil
	}

	if s.deps.WebhookSecretHash != "" {
		provided := strings.TrimSpace(c.Request().Header.Get("X-Webhook-Secret"))
		if provided == "" ||
			!security.ConstantTimeEq(security.HashWebhookSecret(provided), s.deps.WebhookSecretHash) {
			s.logger.Warn("webhook rejected: invalid or missing X-Webhook-Secret")
			return jsonError(c, http.StatusUnauthorized,
				"Unauthorized — invalid or missing X-Webhook-Secret header")
		}
	}

	var body webhookBody
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		// A chunked body over the limit surfaces here as *http.MaxBytesError
		// rather than being caught by the Content-Length check.
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return jsonError(c, http.StatusRequestEntityTooLarge, "request body too large")
		}
		return jsonError(c, http.StatusBadRequest, `Invalid JSON body. Expected: {"message": "..."}`)
	}

	if idemKey := strings.TrimSpace(c.Request().Header.Get("X-Idempotency-Key")); idemKey != "" {
		if !s.deps.Idempotency.RecordIfNew(idemKey) {
			s.logger.Info("webhook duplicate ignored", "idempotency_key", idemKey)
			return c.JSON(http.StatusOK, map[string]any{
				"status":     "duplicate",
				"idempotent": true,
				"message":    "Request already processed for this idempotency key",
			})
		}
	}

	// Auto-save is an enhancement; failures are dropped.
	if s.deps.Memory != nil && s.deps.Config.Memory.AutoSave {
		_ = s.deps.Memory.Store(c.Request().Context(), memory.Entry{
			Key:      "webhook_msg_" + uuid.NewString(),
			Category: memory.CategoryConversation,
			Content:  body.Message,
		})
	}

	reply, err := s.deps.Dispatcher.SimpleChat(c.Request().Context(), s.deps.Config, body.Message)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "LLM request failed")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"response": reply,
		"model":    s.deps.Config.DefaultModel,
	})
}
