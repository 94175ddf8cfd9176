// Package channels defines the chat channel abstraction: the capability
// interface, the DocStore-backed channel, the per-turn execution context, and
// the payload parsers for third-party webhook bodies.
package channels

import (
	"context"

	"github.com/nightjar-ai/nightjar/pkg/cron"
)

// ChannelPocketBase is the channel name of the DocStore chat bridge.
const ChannelPocketBase = "pocketbase"

// ExecutionContext identifies the chat turn a piece of work belongs to, so
// side effects spawned during the turn (scheduled reminders) can route their
// output back to the originating thread.
type ExecutionContext struct {
	Channel   string
	Recipient string
	ThreadTS  string
}

type ctxKey struct{}

// WithExecutionContext returns a context carrying ec. The worker enters this
// scope before invoking the agent for a record.
func WithExecutionContext(ctx context.Context, ec ExecutionContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, ec)
}

// ExecutionContextFrom extracts the current execution context, if any.
func ExecutionContextFrom(ctx context.Context) (ExecutionContext, bool) {
	ec, ok := ctx.Value(ctxKey{}).(ExecutionContext)
	return ec, ok
}

// DefaultCronDelivery returns the delivery config a scheduler job created
// inside this turn should inherit. Only the DocStore channel announces back;
// other channels return nil and the job runs silently.
func DefaultCronDelivery(ctx context.Context) *cron.DeliveryConfig {
	ec, ok := ExecutionContextFrom(ctx)
	if !ok || ec.Channel != ChannelPocketBase {
		return nil
	}
	return &cron.DeliveryConfig{
		Mode:       "announce",
		Channel:    ChannelPocketBase,
		To:         ec.Recipient,
		BestEffort: true,
	}
}
