package publisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/angeloszaimis/reservations/internal/channel"
	"github.com/angeloszaimis/reservations/internal/store"
)

// Receiver stores every reservation name arriving on a channel.
type Receiver struct {
	repo   store.ReservationRepository
	logger *slog.Logger
}

func NewReceiver(repo store.ReservationRepository, logger *slog.Logger) *Receiver {
	return &Receiver{repo: repo, logger: logger}
}

// Listen blocks until ctx is done.
func (r *Receiver) Listen(ctx context.Context, ch channel.Channel) error {
	return ch.OnMessage(ctx, r.Handle)
}

func (r *Receiver) Handle(ctx context.Context, payload string) error {
	saved, err := r.repo.Save(ctx, store.Reservation{Name: payload})
	if err != nil {
		return fmt.Errorf("saving reservation %q: %w", payload, err)
	}

	r.logger.Info("Reservation received",
		slog.Int64("id", *saved.ID),
		slog.String("name", saved.Name))
	return nil
}
