package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	popTimeout   = time.Second
	retryBackoff = 200 * time.Millisecond
)

// Redis is a channel backed by a Redis list: RPUSH to send, BLPOP to receive.
type Redis struct {
	client      *redis.Client
	destination string
	logger      *slog.Logger
}

func NewRedis(client *redis.Client, destination string, logger *slog.Logger) *Redis {
	return &Redis{
		client:      client,
		destination: destination,
		logger:      logger,
	}
}

func (r *Redis) Send(ctx context.Context, payload string) error {
	if err := r.client.RPush(ctx, r.destination, payload).Err(); err != nil {
		return fmt.Errorf("pushing to %s: %w", r.destination, err)
	}
	return nil
}

func (r *Redis) OnMessage(ctx context.Context, handler Handler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		res, err := r.client.BLPop(ctx, popTimeout, r.destination).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !errors.Is(err, redis.Nil) {
				r.logger.Error("Consuming from queue failed",
					slog.String("destination", r.destination),
					slog.Any("error", err))
				r.wait(ctx)
			}
			continue
		}

		// BLPOP answers [key, value]
		payload := res[1]
		if err := handler(ctx, payload); err != nil {
			r.logger.Error("Message handler failed",
				slog.String("payload", payload),
				slog.Any("error", err))
		}
	}
}

func (r *Redis) wait(ctx context.Context) {
	timer := time.NewTimer(retryBackoff)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
