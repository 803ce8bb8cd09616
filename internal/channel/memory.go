package channel

import (
	"context"
	"log/slog"
)

// Memory is an in-process channel backed by a buffered Go channel.
type Memory struct {
	messages chan string
	logger   *slog.Logger
}

func NewMemory(buffer int, logger *slog.Logger) *Memory {
	return &Memory{
		messages: make(chan string, buffer),
		logger:   logger,
	}
}

// Send blocks only while the buffer is full.
func (m *Memory) Send(ctx context.Context, payload string) error {
	select {
	case m.messages <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) OnMessage(ctx context.Context, handler Handler) error {
	for {
		select {
		case payload := <-m.messages:
			m.deliver(ctx, handler, payload)
		case <-ctx.Done():
			m.drain(handler)
			return nil
		}
	}
}

func (m *Memory) deliver(ctx context.Context, handler Handler, payload string) {
	if err := handler(ctx, payload); err != nil {
		m.logger.Error("Message handler failed",
			slog.String("payload", payload),
			slog.Any("error", err))
	}
}

func (m *Memory) drain(handler Handler) {
	ctx := context.Background()
	for {
		select {
		case payload := <-m.messages:
			m.deliver(ctx, handler, payload)
		default:
			return
		}
	}
}
