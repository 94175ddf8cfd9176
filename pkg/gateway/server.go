package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/nightjar-ai/nightjar/pkg/agent"
	"github.com/nightjar-ai/nightjar/pkg/channels"
	"github.com/nightjar-ai/nightjar/pkg/config"
	"github.com/nightjar-ai/nightjar/pkg/masking"
	"github.com/nightjar-ai/nightjar/pkg/memory"
	"github.com/nightjar-ai/nightjar/pkg/observer"
	"github.com/nightjar-ai/nightjar/pkg/pocketbase"
	"github.com/nightjar-ai/nightjar/pkg/security"
)

const (
	// Core routes accept small JSON bodies with a short deadline; the media
	// group allows large streamed uploads with a generous one.
	maxBodySize      = 64 << 10
	maxMediaBodySize = 1 << 30
	requestDeadline  = 30 * time.Second
	mediaDeadline    = 30 * time.Minute
)

// Deps carries everything the HTTP surface needs. Optional fields (channel
// clients, memory, metrics handler) may be nil.
type Deps struct {
	Config            *config.Config
	Guard             *security.PairingGuard
	Limiters          RateLimiters
	Idempotency       *IdempotencyStore
	WebhookSecretHash string
	Dispatcher        *agent.Dispatcher
	Memory            memory.Memory
	Observer          observer.Observer
	Redactor          *masking.Redactor
	DocStore          *pocketbase.Client
	ChatCollection    string
	WhatsApp          *channels.WhatsAppClient
	Linq              *channels.LinqClient
	NextcloudTalk     *channels.NextcloudTalkClient
	Wati              *channels.WatiClient
	MetricsHandler    http.Handler
	Logger            *slog.Logger
}

// Server is the gateway HTTP front door. One instance owns the admission
// state (guard, limiters, idempotency memory) shared by all handlers.
type Server struct {
	deps   Deps
	echo   *echo.Echo
	logger *slog.Logger

	// cfgMu serializes paired-token persistence; the config file is rewritten
	// whole on every successful pair.
	cfgMu sync.Mutex

	httpServer *http.Server
}

// NewServer wires routes and middleware. It does not listen yet.
func NewServer(deps Deps) *Server {
	if deps.ChatCollection == "" {
		deps.ChatCollection = "chat_messages"
	}
	if deps.Redactor == nil {
		deps.Redactor = masking.NewRedactor()
	}
	s := &Server{
		deps:   deps,
		echo:   echo.New(),
		logger: deps.Logger.With("component", "gateway"),
	}
	s.echo.HTTPErrorHandler = httpErrorHandler
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.Use(securityHeaders())

	core := []echo.MiddlewareFunc{bodyLimit(maxBodySize), requestTimeout(requestDeadline)}
	media := []echo.MiddlewareFunc{bodyLimit(maxMediaBodySize), requestTimeout(mediaDeadline)}

	e.GET("/health", s.healthHandler, core...)
	e.GET("/metrics", s.metricsHandler, core...)
	e.POST("/pair", s.pairHandler, core...)
	e.POST("/pair/new-code", s.pairNewCodeHandler, core...)
	e.POST("/webhook", s.webhookHandler, core...)
	e.GET("/api/chat/messages", s.chatListHandler, core...)
	e.POST("/api/chat/messages", s.chatSendHandler, core...)

	e.POST("/api/media/upload", s.mediaUploadHandler, media...)
	e.POST("/api/journal/text", s.journalTextHandler, media...)
	e.GET("/api/library/items", s.libraryItemsHandler, media...)
	e.GET("/api/library/text", s.libraryTextHandler, media...)
	e.POST("/api/library/save-text", s.librarySaveTextHandler, media...)
	e.GET("/api/media/*", s.mediaStreamHandler, media...)

	// Channel webhooks stay registered even when the integration is off so
	// the URL surface is stable across forks.
	e.GET("/whatsapp", s.whatsappVerifyHandler, core...)
	e.POST("/whatsapp", s.whatsappWebhookHandler, core...)
	e.POST("/linq", s.linqWebhookHandler, core...)
	e.GET("/wati", s.watiVerifyHandler, core...)
	e.POST("/wati", s.watiWebhookHandler, core...)
	e.POST("/nextcloud-talk", s.nextcloudTalkWebhookHandler, core...)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr and blocks until the listener fails or Shutdown runs.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("gateway listening", "addr", addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// requireAuth enforces bearer auth when pairing is on. On failure it writes
// the 401 response and returns false.
func (s *Server) requireAuth(c *echo.Context, scope string) bool {
	if !s.deps.Guard.RequirePairing() {
		return true
	}
	auth := c.Request().Header.Get("Authorization")
	token, ok := trimBearer(auth)
	if ok && s.deps.Guard.IsAuthenticated(token) {
		return true
	}
	s.logger.Warn("request rejected: not paired or invalid bearer token", "scope", scope)
	_ = jsonError(c, http.StatusUnauthorized,
		"Unauthorized — pair first via POST /pair, then send Authorization: Bearer <token>")
	return false
}

func trimBearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", false
	}
	return header[len(prefix):], true
}

// persistTokens rewrites the config file with the guard's current token set.
func (s *Server) persistTokens() error {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.deps.Config.Gateway.PairedTokens = s.deps.Guard.Tokens()
	return s.deps.Config.Save()
}

// CheckBindSafety refuses a non-loopback listener unless a tunnel provider is
// active or the config explicitly opts in. Runs before the listener is
// created; a failure here must exit the process.
func CheckBindSafety(cfg *config.Config) error {
	if !security.IsPublicBind(cfg.Gateway.Host) {
		return nil
	}
	if cfg.Gateway.AllowPublicBind {
		return nil
	}
	if cfg.Tunnel.Provider != "" && cfg.Tunnel.Provider != "none" {
		return nil
	}
	return fmt.Errorf(
		"refusing to bind gateway to public interface %q without a tunnel provider; "+
			"set gateway.allow_public_bind = true to override", cfg.Gateway.Host)
}
