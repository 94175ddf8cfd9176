package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nightjar-ai/nightjar/pkg/agent"
	"github.com/nightjar-ai/nightjar/pkg/channels"
	"github.com/nightjar-ai/nightjar/pkg/config"
	"github.com/nightjar-ai/nightjar/pkg/cron"
	"github.com/nightjar-ai/nightjar/pkg/masking"
	"github.com/nightjar-ai/nightjar/pkg/memory"
	"github.com/nightjar-ai/nightjar/pkg/pocketbase"
)

const (
	// DefaultPollInterval between ticks; MinPollInterval is the floor that
	// keeps a misconfigured interval from busy-looping.
	DefaultPollInterval = 1500 * time.Millisecond
	MinPollInterval     = 250 * time.Millisecond

	// DefaultCollection is the DocStore chat collection name.
	DefaultCollection = "chat_messages"

	maxPagesPerTick   = 5
	pageSize          = 30
	maxRecordsPerTick = 8
	maxErrorLen       = 2000

	sourceAgent    = "nightjar"
	sourceReminder = "nightjar-reminder"
)

// WorkerDeps carries everything a Worker needs. Memory and Scheduler may be
// nil; the corresponding features are skipped.
type WorkerDeps struct {
	Client       *pocketbase.Client
	Collection   string
	Config       *config.Config
	Agent        agent.Agent
	Scheduler    *cron.Scheduler
	Memory       memory.Memory
	Redactor     *masking.Redactor
	Logger       *slog.Logger
	PollInterval time.Duration
}

// Worker polls the chat collection, claims pending user records, and answers
// them through the reminder scheduler or the agent. The processing claim
// (PATCH to status=processing) is advisory and only safe under a single
// gateway process.
type Worker struct {
	deps     WorkerDeps
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker validates deps and applies interval defaults.
func NewWorker(deps WorkerDeps) *Worker {
	if deps.Collection == "" {
		deps.Collection = DefaultCollection
	}
	interval := deps.PollInterval
	if interval == 0 {
		interval = DefaultPollInterval
	}
	if interval < MinPollInterval {
		interval = MinPollInterval
	}
	if deps.Redactor == nil {
		deps.Redactor = masking.NewRedactor()
	}
	return &Worker{
		deps:     deps,
		interval: interval,
		logger:   deps.Logger.With("component", "chat_worker"),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the poll loop.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
	w.logger.Info("chat worker started",
		"collection", w.deps.Collection, "poll_interval", w.interval)
}

// Stop halts the loop and waits for the in-flight tick.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A failed tick is a warning, never an exit.
			w.tick(ctx)
		}
	}
}

// tick fetches pending user records and processes up to maxRecordsPerTick of
// them, oldest first.
func (w *Worker) tick(ctx context.Context) {
	pending, err := w.fetchPending(ctx)
	if err != nil {
		w.logger.Warn("chat poll failed", "error", w.deps.Redactor.Sanitize(err.Error()))
		return
	}

	for _, rec := range pending {
		if !w.processRecord(ctx, rec) {
			// Claim failed; the DocStore is likely down. Retry next tick.
			return
		}
	}
}

func (w *Worker) fetchPending(ctx context.Context) ([]pocketbase.Record, error) {
	var pending []pocketbase.Record
	for page := 1; page <= maxPagesPerTick; page++ {
		items, err := w.deps.Client.ListRecords(ctx, w.deps.Collection, page, pageSize)
		if err != nil {
			return nil, err
		}
		for _, rec := range items {
			if rec.GetString("role") == "user" && rec.GetString("status") == "pending" {
				pending = append(pending, rec)
			}
		}
		if len(items) < pageSize {
			break
		}
	}

	// The DocStore lists newest first; process oldest first.
	for i, j := 0, len(pending)-1; i < j; i, j = i+1, j-1 {
		pending[i], pending[j] = pending[j], pending[i]
	}
	if len(pending) > maxRecordsPerTick {
		pending = pending[:maxRecordsPerTick]
	}
	return pending, nil
}

// processRecord handles one claimed record. Returns false only when the claim
// PATCH itself failed, which aborts the tick.
func (w *Worker) processRecord(ctx context.Context, rec pocketbase.Record) bool {
	id := rec.ID()

	if _, err := w.deps.Client.PatchRecord(ctx, w.deps.Collection, id, map[string]any{
		"status": "processing",
		"error":  "",
	}); err != nil {
		w.logger.Warn("claim failed, aborting tick",
			"record_id", id, "error", w.deps.Redactor.Sanitize(err.Error()))
		return false
	}

	threadID := strings.TrimSpace(rec.GetString("threadId"))
	if threadID == "" {
		threadID = "default"
	}
	content := strings.TrimSpace(rec.GetString("content"))
	if content == "" {
		w.patchTerminal(ctx, id, "error", "empty message content")
		return true
	}

	w.autoSave(ctx, threadID, content)

	if intent := ParseReminder(content); intent != nil {
		w.handleReminder(ctx, id, threadID, intent)
		return true
	}
	w.handleAgent(ctx, id, threadID, content)
	return true
}

// autoSave stores the user message in memory. Failures are dropped; memory is
// an enhancement, not a dependency.
func (w *Worker) autoSave(ctx context.Context, threadID, content string) {
	if w.deps.Memory == nil || !w.deps.Config.Memory.AutoSave {
		return
	}
	_ = w.deps.Memory.Store(ctx, memory.Entry{
		Key:       "pb_chat_user_" + uuid.NewString(),
		Category:  memory.CategoryConversation,
		SessionID: threadID,
		Content:   content,
	})
}

func (w *Worker) handleReminder(ctx context.Context, recordID, threadID string, intent *ReminderIntent) {
	if w.deps.Scheduler == nil {
		w.writeFailure(ctx, recordID, threadID, sourceReminder, "reminder scheduler is not available")
		return
	}

	runAt := w.now().Add(intent.Delay)
	command := "echo " + shellSingleQuote(intent.Message)

	job, err := w.deps.Scheduler.AddOnceAt(runAt, command)
	if err != nil {
		w.writeFailure(ctx, recordID, threadID, sourceReminder, err.Error())
		return
	}

	name := "PB chat reminder: " + truncateRunes(intent.Message, 48)
	execCtx := channels.WithExecutionContext(ctx, channels.ExecutionContext{
		Channel:   channels.ChannelPocketBase,
		Recipient: threadID,
		ThreadTS:  threadID,
	})
	if _, err := w.deps.Scheduler.Update(job.ID, cron.JobPatch{
		Name:     &name,
		Delivery: channels.DefaultCronDelivery(execCtx),
	}); err != nil {
		w.writeFailure(ctx, recordID, threadID, sourceReminder, err.Error())
		return
	}

	confirmation := fmt.Sprintf(
		"Scheduled reminder %q in %s (job %s, runs at %s). Reminders fire from the scheduler daemon.",
		intent.Message, intent.DelayHuman, job.ID, runAt.Format(time.RFC3339))

	if err := w.writeAssistant(ctx, recordID, threadID, confirmation, "done", sourceReminder, ""); err != nil {
		w.writeFailure(ctx, recordID, threadID, sourceReminder, err.Error())
		return
	}
	w.patchTerminal(ctx, recordID, "done", "")
}

func (w *Worker) handleAgent(ctx context.Context, recordID, threadID, content string) {
	execCtx := channels.WithExecutionContext(ctx, channels.ExecutionContext{
		Channel:   channels.ChannelPocketBase,
		Recipient: threadID,
		ThreadTS:  threadID,
	})

	reply, err := w.deps.Agent.Process(execCtx, w.deps.Config, content)
	if err != nil {
		w.writeFailure(ctx, recordID, threadID, sourceAgent, err.Error())
		return
	}

	if strings.TrimSpace(reply) == "" {
		reply = "(empty response)"
	}
	if err := w.writeAssistant(ctx, recordID, threadID, reply, "done", sourceAgent, ""); err != nil {
		w.writeFailure(ctx, recordID, threadID, sourceAgent, err.Error())
		return
	}
	w.patchTerminal(ctx, recordID, "done", "")
}

// writeFailure records the sanitized, truncated error as an assistant record
// and marks the source record failed.
func (w *Worker) writeFailure(ctx context.Context, recordID, threadID, source, errMsg string) {
	msg := truncateRunes(w.deps.Redactor.Sanitize(errMsg), maxErrorLen)
	if err := w.writeAssistant(ctx, recordID, threadID, msg, "error", source, msg); err != nil {
		w.logger.Warn("error record write failed",
			"record_id", recordID, "error", w.deps.Redactor.Sanitize(err.Error()))
	}
	w.patchTerminal(ctx, recordID, "error", msg)
}

func (w *Worker) writeAssistant(ctx context.Context, replyTo, threadID, content, status, source, errMsg string) error {
	fields := map[string]any{
		"threadId":        threadID,
		"role":            "assistant",
		"content":         content,
		"status":          status,
		"source":          source,
		"replyToId":       replyTo,
		"createdAtClient": w.now().UTC().Format(time.RFC3339Nano),
	}
	if errMsg != "" {
		fields["error"] = errMsg
	}
	_, err := w.deps.Client.CreateRecord(ctx, w.deps.Collection, fields)
	return err
}

func (w *Worker) patchTerminal(ctx context.Context, recordID, status, errMsg string) {
	fields := map[string]any{
		"status":      status,
		"processedAt": w.now().UTC().Format(time.RFC3339Nano),
	}
	if errMsg != "" {
		fields["error"] = errMsg
	}
	if _, err := w.deps.Client.PatchRecord(ctx, w.deps.Collection, recordID, fields); err != nil {
		w.logger.Warn("terminal patch failed",
			"record_id", recordID, "status", status,
			"error", w.deps.Redactor.Sanitize(err.Error()))
	}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
