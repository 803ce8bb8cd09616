package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angeloszaimis/reservations/config"
)

const (
	reservationSeqKey = "reservations:seq"
	reservationIDsKey = "reservations:ids"
	reservationSeeded = "reservations:seeded"
)

// NewRedisClient connects to Redis and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Address,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        100,
		MinIdleConns:    10,
		DialTimeout:     3 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Address, err)
	}

	logger.Info("Connected to Redis", slog.String("address", cfg.Address))
	return rdb, nil
}

// RedisReservations keeps one hash per reservation, an ordered id list and a
// set of ids per name.
type RedisReservations struct {
	client *redis.Client
}

func NewRedisReservations(client *redis.Client) *RedisReservations {
	return &RedisReservations{client: client}
}

func reservationKey(id int64) string {
	return "reservation:" + strconv.FormatInt(id, 10)
}

func reservationNameKey(name string) string {
	return "reservations:name:" + name
}

func (s *RedisReservations) Save(ctx context.Context, r Reservation) (Reservation, error) {
	if err := r.Validate(); err != nil {
		return Reservation{}, err
	}

	previous := ""
	if r.ID == nil {
		id, err := s.client.Incr(ctx, reservationSeqKey).Result()
		if err != nil {
			return Reservation{}, fmt.Errorf("allocating reservation id: %w", err)
		}
		r.ID = &id
	} else {
		name, err := s.client.HGet(ctx, reservationKey(*r.ID), "name").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return Reservation{}, fmt.Errorf("loading reservation %d: %w", *r.ID, err)
		}
		previous = name
	}

	id := *r.ID
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, reservationKey(id), "id", id, "name", r.Name)
		switch {
		case previous == "":
			pipe.RPush(ctx, reservationIDsKey, id)
		case previous != r.Name:
			pipe.SRem(ctx, reservationNameKey(previous), id)
		}
		pipe.SAdd(ctx, reservationNameKey(r.Name), id)
		return nil
	})
	if err != nil {
		return Reservation{}, fmt.Errorf("saving reservation %d: %w", id, err)
	}

	return r, nil
}

// ClaimSeed sets the seed marker and reports whether this caller set it on a
// store that holds no reservations yet. Processes sharing the server race on
// the marker, so exactly one of them seeds.
func (s *RedisReservations) ClaimSeed(ctx context.Context) (bool, error) {
	claimed, err := s.client.SetNX(ctx, reservationSeeded, 1, 0).Result()
	if err != nil {
		return false, fmt.Errorf("claiming seed marker: %w", err)
	}
	if !claimed {
		return false, nil
	}

	n, err := s.client.LLen(ctx, reservationIDsKey).Result()
	if err != nil {
		return false, fmt.Errorf("counting reservations: %w", err)
	}
	return n == 0, nil
}

func (s *RedisReservations) FindAll(ctx context.Context) ([]Reservation, error) {
	raw, err := s.client.LRange(ctx, reservationIDsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing reservations: %w", err)
	}

	ids, err := parseIDs(raw)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, ids)
}

func (s *RedisReservations) FindByID(ctx context.Context, id int64) (Reservation, error) {
	found, err := s.load(ctx, []int64{id})
	if err != nil {
		return Reservation{}, err
	}
	if len(found) == 0 {
		return Reservation{}, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	return found[0], nil
}

func (s *RedisReservations) FindByName(ctx context.Context, name string) ([]Reservation, error) {
	raw, err := s.client.SMembers(ctx, reservationNameKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("searching reservations by name: %w", err)
	}

	ids, err := parseIDs(raw)
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return s.load(ctx, ids)
}

// load fetches the hashes for ids in order, skipping ids without a hash.
func (s *RedisReservations) load(ctx context.Context, ids []int64) ([]Reservation, error) {
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, reservationKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading reservations: %w", err)
	}

	reservations := make([]Reservation, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}

		id := ids[i]
		reservations = append(reservations, Reservation{ID: &id, Name: fields["name"]})
	}
	return reservations, nil
}

func parseIDs(raw []string) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	for _, value := range raw {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed reservation id %q: %w", value, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
