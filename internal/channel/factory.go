package channel

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/angeloszaimis/reservations/config"
)

var ErrNoRedisClient = errors.New("redis channel requires a redis client")

// New builds the channel selected by cfg.Type. client is only used for the
// redis channel.
func New(cfg config.ChannelConfig, client *redis.Client, logger *slog.Logger) (Channel, error) {
	switch cfg.Type {
	case config.ChannelMemory:
		return NewMemory(cfg.Buffer, logger), nil
	case config.ChannelRedis:
		if client == nil {
			return nil, ErrNoRedisClient
		}
		return NewRedis(client, cfg.Destination, logger), nil
	default:
		return nil, fmt.Errorf("unknown channel type %q", cfg.Type)
	}
}
