package channels

import (
	"context"
	"strings"
	"time"

	"github.com/nightjar-ai/nightjar/pkg/pocketbase"
)

// PocketBaseChannel posts assistant messages into the DocStore chat
// collection. The inbound side (claiming pending user records) belongs to the
// bridge worker, so Listen is a no-op.
type PocketBaseChannel struct {
	client     *pocketbase.Client
	collection string
}

// NewPocketBaseChannel wires the channel to a DocStore client.
func NewPocketBaseChannel(client *pocketbase.Client, collection string) *PocketBaseChannel {
	return &PocketBaseChannel{client: client, collection: collection}
}

func (p *PocketBaseChannel) Name() string { return ChannelPocketBase }

// Send writes a done assistant record into the recipient thread.
func (p *PocketBaseChannel) Send(ctx context.Context, recipient, message string) error {
	threadID := strings.TrimSpace(recipient)
	if threadID == "" {
		threadID = "default"
	}
	_, err := p.client.CreateRecord(ctx, p.collection, map[string]any{
		"threadId":        threadID,
		"role":            "assistant",
		"content":         message,
		"status":          "done",
		"source":          "nightjar-channel",
		"createdAtClient": time.Now().UTC().Format(time.RFC3339Nano),
	})
	return err
}

func (p *PocketBaseChannel) Listen(ctx context.Context) error { return nil }

func (p *PocketBaseChannel) HealthCheck(ctx context.Context) error {
	return p.client.Health(ctx)
}
