package channels

import "context"

// Channel is the capability set every chat channel provides. Disabled
// channels are simply absent; handlers answer 404 without one.
type Channel interface {
	// Name is the stable channel identifier ("pocketbase", "whatsapp", ...).
	Name() string
	// Send delivers a message to a recipient (thread, phone number, room).
	Send(ctx context.Context, recipient, message string) error
	// Listen starts the channel's inbound stream, blocking until ctx ends.
	// Channels whose inbound side is handled elsewhere return immediately.
	Listen(ctx context.Context) error
	// HealthCheck probes the channel's upstream.
	HealthCheck(ctx context.Context) error
}
