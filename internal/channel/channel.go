package channel

import "context"

// Handler processes one delivered payload. An error is logged and the
// subscription continues.
type Handler func(ctx context.Context, payload string) error

// Channel is a named message destination with a single subscriber.
type Channel interface {
	// Send hands payload to the channel. It does not wait for the subscriber.
	Send(ctx context.Context, payload string) error
	// OnMessage delivers payloads to handler until ctx is done.
	OnMessage(ctx context.Context, handler Handler) error
}
