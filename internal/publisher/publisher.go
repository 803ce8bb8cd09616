package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/angeloszaimis/reservations/internal/channel"
	"github.com/angeloszaimis/reservations/internal/store"
)

const sendTimeout = 5 * time.Second

var (
	ErrQueueFull = errors.New("publish queue is full")
	ErrStopped   = errors.New("publisher stopped")
)

// Publisher hands reservation names to a channel without making the caller
// wait for delivery.
type Publisher struct {
	queue   chan string
	channel channel.Channel
	logger  *slog.Logger
	stopped chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewPublisher(ch channel.Channel, bufferSize int, logger *slog.Logger) *Publisher {
	return &Publisher{
		queue:   make(chan string, bufferSize),
		channel: ch,
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Publish validates the reservation and queues its name. It never blocks.
// Once shutdown has begun it returns ErrStopped.
func (p *Publisher) Publish(reservation store.Reservation) error {
	if err := reservation.Validate(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrStopped
	}

	select {
	case p.queue <- reservation.Name:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Publisher) Start(ctx context.Context) {
	go p.run(ctx)
}

// Stopped is closed once the delivery loop has drained and exited.
func (p *Publisher) Stopped() <-chan struct{} {
	return p.stopped
}

func (p *Publisher) run(ctx context.Context) {
	p.logger.Info("Publisher started")
	defer p.logger.Info("Publisher stopped")
	defer close(p.stopped)

	for {
		select {
		case name := <-p.queue:
			p.send(name)
		case <-ctx.Done():
			p.mu.Lock()
			p.closed = true
			p.mu.Unlock()

			// Nothing can be queued past this point.
			p.drain()
			return
		}
	}
}

func (p *Publisher) send(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := p.channel.Send(ctx, name); err != nil {
		p.logger.Error("Failed to send reservation",
			slog.String("name", name),
			slog.Any("error", err))
		return
	}

	p.logger.Debug("Reservation sent", slog.String("name", name))
}

func (p *Publisher) drain() {
	for {
		select {
		case name := <-p.queue:
			p.send(name)
		default:
			return
		}
	}
}
