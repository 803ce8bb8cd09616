package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angeloszaimis/reservations/config"
	"github.com/angeloszaimis/reservations/internal/channel"
	"github.com/angeloszaimis/reservations/internal/handler"
	"github.com/angeloszaimis/reservations/internal/httpserver"
	"github.com/angeloszaimis/reservations/internal/publisher"
	"github.com/angeloszaimis/reservations/internal/registry"
	"github.com/angeloszaimis/reservations/internal/store"
	"github.com/angeloszaimis/reservations/pkg/logger"
)

const (
	serviceName         = "reservation-service"
	withdrawTimeout     = 2 * time.Second
	configClientTimeout = 5 * time.Second
)

func main() {
	loader := config.NewLoader(serviceName)
	cfg, err := loader.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment, cfg.Server.Name)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, loader, cfg, log); err != nil {
		log.Error("Reservation service stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, loader *config.Loader, cfg *config.Config, log *slog.Logger) error {
	configClient := &http.Client{Timeout: configClientTimeout}
	cfg = fetchRemoteConfig(ctx, loader, configClient, cfg, log)

	var client *redis.Client
	if cfg.UsesRedis() {
		var err error
		client, err = store.NewRedisClient(ctx, cfg.Redis, log)
		if err != nil {
			return err
		}
		defer client.Close()
	}

	reservations := openReservations(cfg, client)
	accounts := store.NewMemoryAccounts()
	bookmarks := store.NewMemoryBookmarks()

	if err := seed(ctx, cfg, reservations, accounts, bookmarks); err != nil {
		return err
	}

	reservationHandler := handler.NewReservationHandler(log, reservations, cfg.Message)
	bookmarkHandler := handler.NewBookmarkHandler(log, accounts, bookmarks)

	loader.Watch(func(c *config.Config) {
		reservationHandler.SetMessage(c.Message)
		log.Info("Message updated", slog.String("message", c.Message))
	})

	ch, err := channel.New(cfg.Channel, client, log)
	if err != nil {
		return err
	}

	receiver := publisher.NewReceiver(reservations, log)
	go func() {
		if err := receiver.Listen(ctx, ch); err != nil {
			log.Error("Receiver stopped", slog.Any("err", err))
		}
	}()

	if len(cfg.Registry.EtcdEndpoints) > 0 {
		withdraw, err := announce(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer withdraw()
	}

	var refresh http.HandlerFunc
	if cfg.ConfigServer.URL != "" {
		refresh = refreshHandler(loader, configClient, cfg.ConfigServer, reservationHandler, log)
	}

	mux := setupRouter(reservationHandler, bookmarkHandler, refresh)
	srv, err := httpserver.New(cfg.Server.Address, handler.Logging(log, mux), log)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}

func openReservations(cfg *config.Config, client *redis.Client) store.ReservationRepository {
	if cfg.Store.Type == config.StoreRedis && client != nil {
		return store.NewRedisReservations(client)
	}
	return store.NewMemoryReservations()
}

func seed(ctx context.Context, cfg *config.Config, reservations store.ReservationRepository,
	accounts store.AccountRepository, bookmarks store.BookmarkRepository) error {
	if err := store.SeedReservations(ctx, reservations, cfg.Seed.Reservations); err != nil {
		return fmt.Errorf("seed reservations: %w", err)
	}
	if err := store.SeedAccounts(ctx, accounts, bookmarks, cfg.Seed.Accounts); err != nil {
		return fmt.Errorf("seed accounts: %w", err)
	}
	return nil
}

// announce registers this process in etcd and returns a func that withdraws it.
func announce(ctx context.Context, cfg *config.Config, log *slog.Logger) (func(), error) {
	instance, err := advertisedInstance(cfg)
	if err != nil {
		return nil, err
	}

	etcdSync, err := registry.NewEtcdSync(cfg.Registry.EtcdEndpoints, nil, log)
	if err != nil {
		return nil, err
	}

	if err := etcdSync.Announce(ctx, instance, cfg.Registry.LeaseTTL); err != nil {
		_ = etcdSync.Close()
		return nil, err
	}

	return func() {
		withdrawCtx, cancel := context.WithTimeout(context.Background(), withdrawTimeout)
		defer cancel()

		if err := etcdSync.Withdraw(withdrawCtx, instance); err != nil {
			log.Warn("Failed to withdraw instance", slog.Any("err", err))
		}
		_ = etcdSync.Close()
	}, nil
}

// advertisedInstance uses registry.advertise when set, and otherwise
// localhost with the port of server.address.
func advertisedInstance(cfg *config.Config) (registry.ServiceInstance, error) {
	addr := cfg.Registry.Advertise
	if addr == "" {
		_, port, err := net.SplitHostPort(cfg.Server.Address)
		if err != nil {
			return registry.ServiceInstance{}, fmt.Errorf("server address %q: %w", cfg.Server.Address, err)
		}
		addr = net.JoinHostPort("localhost", port)
	}

	host, rawPort, err := net.SplitHostPort(addr)
	if err != nil {
		return registry.ServiceInstance{}, fmt.Errorf("advertise address %q: %w", addr, err)
	}

	port, err := strconv.Atoi(rawPort)
	if err != nil {
		return registry.ServiceInstance{}, fmt.Errorf("advertise port %q: %w", rawPort, err)
	}

	instance := registry.ServiceInstance{ServiceName: serviceName, Host: host, Port: port}
	if err := instance.Validate(); err != nil {
		return registry.ServiceInstance{}, err
	}
	return instance, nil
}
