package gateway

import (
	"context"
	"io"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/nightjar-ai/nightjar/pkg/channels"
	"github.com/nightjar-ai/nightjar/pkg/memory"
	"github.com/nightjar-ai/nightjar/pkg/security"
)

// whatsappVerifyHandler handles GET /whatsapp: the Meta hub-challenge
// subscription handshake.
func (s *Server) whatsappVerifyHandler(c *echo.Context) error {
	if s.deps.WhatsApp == nil {
		return jsonError(c, http.StatusNotFound, "whatsapp not configured")
	}
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if mode == "subscribe" && security.ConstantTimeEq(token, s.deps.WhatsApp.VerifyToken()) {
		if challenge == "" {
			return jsonError(c, http.StatusBadRequest, "Missing hub.challenge")
		}
		s.logger.Info("whatsapp webhook verified")
		return c.String(http.StatusOK, challenge)
	}
	s.logger.Warn("whatsapp webhook verification failed: token mismatch")
	return jsonError(c, http.StatusForbidden, "Forbidden")
}

// whatsappWebhookHandler handles POST /whatsapp.
func (s *Server) whatsappWebhookHandler(c *echo.Context) error {
	if s.deps.WhatsApp == nil {
		return jsonError(c, http.StatusNotFound, "whatsapp not configured")
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "failed to read request body")
	}

	if appSecret := s.whatsappAppSecret(); appSecret != "" {
		sig := c.Request().Header.Get("X-Hub-Signature-256")
		if !security.VerifyWhatsAppSignature(appSecret, body, sig) {
			s.logger.Warn("whatsapp signature verification failed")
			return jsonError(c, http.StatusUnauthorized, "Invalid signature")
		}
	}

	return s.processChannelMessages(c, s.deps.WhatsApp.Name(),
		channels.ParseWhatsAppPayload(body), s.deps.WhatsApp.Send)
}

// linqWebhookHandler handles POST /linq.
func (s *Server) linqWebhookHandler(c *echo.Context) error {
	if s.deps.Linq == nil {
		return jsonError(c, http.StatusNotFound, "linq not configured")
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "failed to read request body")
	}

	if secret := s.linqSigningSecret(); secret != "" {
		timestamp := c.Request().Header.Get("X-Webhook-Timestamp")
		sig := c.Request().Header.Get("X-Webhook-Signature")
		if !security.VerifyLinqSignature(secret, timestamp, body, sig) {
			s.logger.Warn("linq signature verification failed")
			return jsonError(c, http.StatusUnauthorized, "Invalid signature")
		}
	}

	return s.processChannelMessages(c, s.deps.Linq.Name(),
		channels.ParseLinqPayload(body), s.deps.Linq.Send)
}

// watiVerifyHandler handles GET /wati: Meta-style challenge echo.
func (s *Server) watiVerifyHandler(c *echo.Context) error {
	if s.deps.Wati == nil {
		return jsonError(c, http.StatusNotFound, "wati not configured")
	}
	challenge := c.QueryParam("hub.challenge")
	if challenge == "" {
		return jsonError(c, http.StatusBadRequest, "Missing hub.challenge")
	}
	return c.String(http.StatusOK, challenge)
}

// watiWebhookHandler handles POST /wati.
func (s *Server) watiWebhookHandler(c *echo.Context) error {
	if s.deps.Wati == nil {
		return jsonError(c, http.StatusNotFound, "wati not configured")
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "failed to read request body")
	}
	return s.processChannelMessages(c, s.deps.Wati.Name(),
		channels.ParseWatiPayload(body), s.deps.Wati.Send)
}

// nextcloudTalkWebhookHandler handles POST /nextcloud-talk.
func (s *Server) nextcloudTalkWebhookHandler(c *echo.Context) error {
	if s.deps.NextcloudTalk == nil {
		return jsonError(c, http.StatusNotFound, "nextcloud-talk not configured")
	}
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "failed to read request body")
	}

	if secret := s.nextcloudWebhookSecret(); secret != "" {
		random := c.Request().Header.Get("X-Nextcloud-Talk-Random")
		sig := c.Request().Header.Get("X-Nextcloud-Talk-Signature")
		if !security.VerifyNextcloudTalkSignature(secret, random, body, sig) {
			s.logger.Warn("nextcloud talk signature verification failed")
			return jsonError(c, http.StatusUnauthorized, "Invalid signature")
		}
	}

	return s.processChannelMessages(c, s.deps.NextcloudTalk.Name(),
		channels.ParseNextcloudTalkPayload(body), s.deps.NextcloudTalk.Send)
}

// processChannelMessages runs each inbound message through the tools chat and
// sends the reply back through the channel. An empty parse still acks 200 —
// status updates and delivery receipts are not errors.
func (s *Server) processChannelMessages(c *echo.Context, channel string, msgs []channels.InboundMessage, send func(context.Context, string, string) error) error {
	for _, msg := range msgs {
		// Nextcloud Talk sends target the conversation token, not the actor;
		// the other channels reply straight to the sender.
		replyTo := msg.From
		if channel == channels.ChannelNextcloudTalk && msg.ThreadID != "" {
			replyTo = msg.ThreadID
		}

		ctx := channels.WithExecutionContext(c.Request().Context(), channels.ExecutionContext{
			Channel:   channel,
			Recipient: replyTo,
			ThreadTS:  msg.ThreadID,
		})

		if s.deps.Memory != nil && s.deps.Config.Memory.AutoSave {
			_ = s.deps.Memory.Store(ctx, memory.Entry{
				Key:       channel + "_msg_" + uuid.NewString(),
				Category:  memory.CategoryConversation,
				SessionID: msg.ThreadID,
				Content:   msg.Text,
			})
		}

		reply, err := s.deps.Dispatcher.ToolsChat(ctx, s.deps.Config, msg.Text)
		if err != nil {
			reply = "Sorry, I couldn't process your message right now."
		}
		if err := send(ctx, replyTo, reply); err != nil {
			s.logger.Error("channel reply send failed",
				"channel", channel, "error", s.deps.Redactor.Sanitize(err.Error()))
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) whatsappAppSecret() string {
	if wa := s.deps.Config.Channels.WhatsApp; wa != nil {
		return wa.AppSecret
	}
	return ""
}

func (s *Server) linqSigningSecret() string {
	if l := s.deps.Config.Channels.Linq; l != nil {
		return l.SigningSecret
	}
	return ""
}

func (s *Server) nextcloudWebhookSecret() string {
	if n := s.deps.Config.Channels.NextcloudTalk; n != nil {
		return n.WebhookSecret
	}
	return ""
}
