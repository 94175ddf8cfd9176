// nightjar gateway — the HTTP front door for a locally running personal
// assistant. It supervises the DocStore and agent daemons, bridges the
// DocStore chat collection to the agent, and exposes the pairing, webhook,
// chat, media, and journal surfaces.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nightjar-ai/nightjar/pkg/agent"
	"github.com/nightjar-ai/nightjar/pkg/bridge"
	"github.com/nightjar-ai/nightjar/pkg/channels"
	"github.com/nightjar-ai/nightjar/pkg/config"
	"github.com/nightjar-ai/nightjar/pkg/cron"
	"github.com/nightjar-ai/nightjar/pkg/gateway"
	"github.com/nightjar-ai/nightjar/pkg/masking"
	"github.com/nightjar-ai/nightjar/pkg/memory"
	"github.com/nightjar-ai/nightjar/pkg/observer"
	"github.com/nightjar-ai/nightjar/pkg/pocketbase"
	"github.com/nightjar-ai/nightjar/pkg/security"
	"github.com/nightjar-ai/nightjar/pkg/sidecar"
	"github.com/nightjar-ai/nightjar/pkg/version"
)

func defaultConfigDir() string {
	if dir := config.Getenv("NIGHTJAR_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nightjar"
	}
	return filepath.Join(home, ".nightjar")
}

func main() {
	configDir := flag.String("config-dir", defaultConfigDir(),
		"Path to the nightjar configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Load .env from the config directory; absence is fine.
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err == nil {
		logger.Info("loaded environment", "path", envPath)
	}

	logger.Info("starting nightjar", "version", version.Full(), "config_dir", *configDir)

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Load(*configDir)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Bind safety: refuse a public listener without an explicit opt-in.
	if err := gateway.CheckBindSafety(cfg); err != nil {
		logger.Error("unsafe gateway bind", "error", err)
		os.Exit(1)
	}

	// 3. Sidecar supervisor: workspace scaffolding, DocStore, agent daemon.
	sup := sidecar.New(sidecar.Options{
		ConfigDir:          *configDir,
		WorkspaceDir:       cfg.WorkspaceDir,
		DocStoreBin:        config.Getenv("NIGHTJAR_POCKETBASE_BIN"),
		DocStoreAddr:       docStoreAddr(),
		DocStoreMigrations: config.Getenv("NIGHTJAR_POCKETBASE_MIGRATIONS_DIR"),
		AgentBin:           config.Getenv("NIGHTJAR_AGENT_BIN"),
		Logger:             logger,
	})
	if err := sup.EnsureWorkspaceReady(); err != nil {
		logger.Error("workspace scaffolding failed", "error", err)
		os.Exit(1)
	}

	docStoreDisabled := config.EnvFlag("NIGHTJAR_POCKETBASE_DISABLE")
	if !docStoreDisabled {
		if err := sup.StartDocStore(); err != nil {
			logger.Error("failed to start DocStore daemon", "error", err)
			os.Exit(1)
		}
	}
	if err := sup.StartAgent(); err != nil {
		logger.Error("failed to start agent daemon", "error", err)
		os.Exit(1)
	}

	// 4. DocStore client
	var docStore *pocketbase.Client
	if !docStoreDisabled {
		url := config.Getenv("NIGHTJAR_POCKETBASE_URL", "POCKETBASE_URL")
		if url == "" {
			url = sup.DocStoreURL()
		}
		docStore = pocketbase.New(url, config.Getenv("NIGHTJAR_POCKETBASE_TOKEN", "POCKETBASE_TOKEN"))
	}

	// 5. Observability
	redactor := masking.NewRedactor()
	var obs observer.Observer
	var metricsHandler http.Handler
	if cfg.Observability.Backend == "prometheus" {
		prom := observer.NewPrometheus()
		metricsHandler = prom.Handler()
		obs = &observer.Logging{Next: prom, Logger: logger}
	} else {
		obs = &observer.Logging{Next: observer.Noop{}, Logger: logger}
	}

	// 6. Conversation memory (sqlite), relative paths rooted at the workspace
	var mem memory.Memory
	if cfg.Memory.AutoSave {
		path := cfg.Memory.Path
		if path == "" {
			path = filepath.Join("memory", "conversations.db")
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.WorkspaceDir, path)
		}
		sqliteMem, err := memory.OpenSQLite(path)
		if err != nil {
			logger.Error("failed to open conversation memory", "path", path, "error", err)
			os.Exit(1)
		}
		defer sqliteMem.Close()
		mem = sqliteMem
	}

	// 7. Reminder scheduler, announcing through the DocStore chat channel
	scheduler, err := cron.NewScheduler(filepath.Join(cfg.WorkspaceDir, "cron"), logger)
	if err != nil {
		logger.Error("failed to initialize scheduler", "error", err)
		os.Exit(1)
	}
	chatCollection := config.Getenv("NIGHTJAR_POCKETBASE_CHAT_COLLECTION")
	if chatCollection == "" {
		chatCollection = bridge.DefaultCollection
	}
	if docStore != nil {
		pbChannel := channels.NewPocketBaseChannel(docStore, chatCollection)
		scheduler.SetDeliveryFunc(func(delivery *cron.DeliveryConfig, jobName, output string) error {
			if delivery == nil || delivery.Mode != "announce" || delivery.Channel != channels.ChannelPocketBase {
				return nil
			}
			err := pbChannel.Send(context.Background(), delivery.To, output)
			if err != nil && delivery.BestEffort {
				logger.Warn("best-effort job announcement failed", "job", jobName, "error", err)
				return nil
			}
			return err
		})
	}
	scheduler.Start()

	// 8. Agent dispatcher: the supervised daemon serves both chat doors
	daemonURL := config.Getenv("NIGHTJAR_AGENT_URL")
	if daemonURL == "" {
		daemonURL = "http://127.0.0.1:8091"
	}
	daemon := agent.NewDaemonClient(daemonURL)
	dispatcher := &agent.Dispatcher{
		Provider: daemon,
		Agent:    daemon,
		Observer: obs,
		Redactor: redactor,
		Logger:   logger,
	}

	// 9. Admission state
	guard := security.NewPairingGuard(cfg.Gateway.RequirePairing, cfg.Gateway.PairedTokens)
	limiters := gateway.RateLimiters{
		Pair:    gateway.NewSlidingWindow(cfg.Gateway.PairRateLimitPerMinute, time.Minute, cfg.Gateway.RateLimitMaxKeys),
		Webhook: gateway.NewSlidingWindow(cfg.Gateway.WebhookRateLimitPerMinute, time.Minute, cfg.Gateway.RateLimitMaxKeys),
	}
	idempotency := gateway.NewIdempotencyStore(
		time.Duration(cfg.Gateway.IdempotencyTTLSecs)*time.Second, cfg.Gateway.IdempotencyMaxKeys)

	var webhookSecretHash string
	if cfg.Channels.Webhook != nil && strings.TrimSpace(cfg.Channels.Webhook.Secret) != "" {
		webhookSecretHash = security.HashWebhookSecret(strings.TrimSpace(cfg.Channels.Webhook.Secret))
	}

	// 10. HTTP server
	server := gateway.NewServer(gateway.Deps{
		Config:            cfg,
		Guard:             guard,
		Limiters:          limiters,
		Idempotency:       idempotency,
		WebhookSecretHash: webhookSecretHash,
		Dispatcher:        dispatcher,
		Memory:            mem,
		Observer:          obs,
		Redactor:          redactor,
		DocStore:          docStore,
		ChatCollection:    chatCollection,
		WhatsApp:          whatsappClient(cfg),
		Linq:              linqClient(cfg),
		NextcloudTalk:     nextcloudTalkClient(cfg),
		Wati:              watiClient(cfg),
		MetricsHandler:    metricsHandler,
		Logger:            logger,
	})

	// 11. DocStore chat bridge worker
	var worker *bridge.Worker
	if docStore != nil && !config.EnvFlag("NIGHTJAR_POCKETBASE_CHAT_DISABLE") {
		worker = bridge.NewWorker(bridge.WorkerDeps{
			Client:       docStore,
			Collection:   chatCollection,
			Config:       cfg,
			Agent:        daemon,
			Scheduler:    scheduler,
			Memory:       mem,
			Redactor:     redactor,
			Logger:       logger,
			PollInterval: chatPollInterval(),
		})
		worker.Start(ctx)
	}

	// 12. Start HTTP server (non-blocking)
	addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(addr); err != nil {
			errCh <- err
		}
	}()

	// 13. Startup banner. The boxed pairing code is load-bearing: the sidecar
	// bootstrap scrapes it, and so do desktop supervisors watching our output.
	bannerLines := startupBanner(cfg, guard, addr)
	for _, line := range bannerLines {
		fmt.Println(line)
	}

	// 14. Desktop token bootstrap: pair this process's supervisor identity and
	// persist the token to the OS keyring so QR pairing can mint mobile tokens.
	// The scraper watches our own banner first, then the agent daemon's
	// output, which prints its own pairing box when it owns the code.
	if guard.RequirePairing() {
		go func() {
			bootCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			client := sidecar.NewGatewayClient("http://127.0.0.1:" + strconv.Itoa(cfg.Gateway.Port))
			lines := sidecar.MergeLines(bootCtx, bannerLines, sup.Lines())
			token, err := client.BootstrapToken(bootCtx, lines)
			switch {
			case err != nil:
				logger.Warn("desktop token bootstrap failed", "error", err)
			case token == "":
				logger.Info("desktop token bootstrap skipped: no pairing code available")
			default:
				logger.Info("desktop token paired and persisted to keyring")
			}
		}()
	}

	// 15. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server error triggered shutdown", "error", err)
	}

	// 16. Graceful shutdown: drain HTTP, stop the worker, then tear down the
	// daemons agent-first so the agent never loses its store mid-request.
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	if worker != nil {
		worker.Stop()
	}
	scheduler.Stop()
	sup.Shutdown(shutdownCtx)
	logger.Info("shutdown complete")
}

// docStoreAddr resolves the DocStore loopback address from the env overrides.
func docStoreAddr() string {
	host := config.Getenv("NIGHTJAR_POCKETBASE_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := config.Getenv("NIGHTJAR_POCKETBASE_PORT")
	if port == "" {
		port = "8090"
	}
	return host + ":" + port
}

// chatPollInterval reads NIGHTJAR_POCKETBASE_CHAT_POLL_MS; the worker applies
// its own floor.
func chatPollInterval() time.Duration {
	if v := config.Getenv("NIGHTJAR_POCKETBASE_CHAT_POLL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return 0
}

func whatsappClient(cfg *config.Config) *channels.WhatsAppClient {
	if wa := cfg.Channels.WhatsApp; wa != nil && wa.IsCloudConfig() {
		return channels.NewWhatsAppClient(wa)
	}
	return nil
}

func linqClient(cfg *config.Config) *channels.LinqClient {
	if l := cfg.Channels.Linq; l != nil && strings.TrimSpace(l.APIToken) != "" {
		return channels.NewLinqClient(l)
	}
	return nil
}

func nextcloudTalkClient(cfg *config.Config) *channels.NextcloudTalkClient {
	if n := cfg.Channels.NextcloudTalk; n != nil && strings.TrimSpace(n.BaseURL) != "" {
		return channels.NewNextcloudTalkClient(n)
	}
	return nil
}

func watiClient(cfg *config.Config) *channels.WatiClient {
	if w := cfg.Channels.Wati; w != nil && strings.TrimSpace(w.APIToken) != "" {
		return channels.NewWatiClient(w)
	}
	return nil
}

// startupBanner renders the endpoint summary and, when a one-time code is
// pending, the pairing box. The box uses │ edges; supervisors scan for a
// six-digit run between them.
func startupBanner(cfg *config.Config, guard *security.PairingGuard, addr string) []string {
	lines := []string{
		fmt.Sprintf("%s %s listening on http://%s", version.AppName, version.Full(), addr),
		"  GET  /health           POST /pair          POST /pair/new-code",
		"  POST /webhook          GET  /metrics",
		"  GET  /api/chat/messages                    POST /api/chat/messages",
		"  POST /api/media/upload POST /api/journal/text",
		"  GET  /api/library/items GET /api/library/text POST /api/library/save-text",
	}
	if code := guard.PairingCode(); code != "" {
		lines = append(lines,
			"┌──────────────────────────────────┐",
			fmt.Sprintf("│   One-time pairing code: %s  │", code),
			"└──────────────────────────────────┘",
			"X-Pairing-Code: "+code,
		)
	}
	return lines
}
