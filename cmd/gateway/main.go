package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angeloszaimis/reservations/config"
	"github.com/angeloszaimis/reservations/internal/channel"
	"github.com/angeloszaimis/reservations/internal/circuitbreaker"
	"github.com/angeloszaimis/reservations/internal/handler"
	"github.com/angeloszaimis/reservations/internal/healthcheck"
	"github.com/angeloszaimis/reservations/internal/httpserver"
	"github.com/angeloszaimis/reservations/internal/loadbalancer"
	"github.com/angeloszaimis/reservations/internal/metrics"
	"github.com/angeloszaimis/reservations/internal/publisher"
	"github.com/angeloszaimis/reservations/internal/registry"
	"github.com/angeloszaimis/reservations/internal/router"
	"github.com/angeloszaimis/reservations/internal/store"
	"github.com/angeloszaimis/reservations/internal/strategy"
	"github.com/angeloszaimis/reservations/pkg/logger"
)

const (
	reservationService = "reservation-service"
	metricsBuffer      = 1000
	drainTimeout       = 10 * time.Second

	configClientTimeout = 5 * time.Second
)

func main() {
	loader := config.NewLoader("gateway")
	cfg, err := loader.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment, cfg.Server.Name)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg = fetchRemoteConfig(ctx, loader, &http.Client{Timeout: configClientTimeout}, cfg, log)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Gateway stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	reg := registry.New()
	if err := initializeRegistry(ctx, cfg, reg, log); err != nil {
		return err
	}

	collector := metrics.NewCollector(metricsBuffer, log)
	collector.Start(ctx)

	checker := healthcheck.NewChecker(reg, cfg.Registry.HealthIntervalDuration(), log, collector)
	go checker.Run(ctx)

	lb := loadbalancer.NewLoadBalancer(reg, createStrategy(log, cfg.Strategy.Type))
	breakers := circuitbreaker.NewRegistry(breakerSettings(cfg.Breaker), log)

	rt := router.NewRouter(lb, breakers, &http.Client{}, collector, log)
	rt.RegisterFallback(reservationService, emptyReservations)

	ch, closeChannel, err := initializeChannel(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeChannel()

	pub := publisher.NewPublisher(ch, cfg.Channel.Buffer, log)
	pub.Start(ctx)

	gateway := handler.NewGatewayHandler(log, rt, pub, reservationService)
	mux := setupRouter(gateway, collector, breakers, cfg.Strategy.Type, log)

	srv, err := httpserver.New(cfg.Server.Address,
		handler.Logging(log, handler.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst, log, mux)), log)
	if err != nil {
		return err
	}

	if err := srv.Run(ctx); err != nil {
		return err
	}

	log.Info("Shutting down gracefully...")
	select {
	case <-pub.Stopped():
	case <-time.After(drainTimeout):
		log.Warn("Publisher did not drain in time")
	}
	return nil
}

// fetchRemoteConfig layers the config server's properties over cfg and falls
// back to cfg when the server cannot be reached.
func fetchRemoteConfig(ctx context.Context, loader *config.Loader, client *http.Client, cfg *config.Config, log *slog.Logger) *config.Config {
	if cfg.ConfigServer.URL == "" {
		return cfg
	}

	remote, err := loader.Fetch(ctx, client, cfg.ConfigServer.URL, cfg.ConfigServer.Profile)
	if err != nil {
		log.Warn("Config server unavailable, using local configuration",
			slog.String("url", cfg.ConfigServer.URL),
			slog.Any("err", err))
		return cfg
	}
	return remote
}

// initializeRegistry mirrors the reservation service from etcd when endpoints
// are configured, and registers the static instances otherwise.
func initializeRegistry(ctx context.Context, cfg *config.Config, reg *registry.Registry, log *slog.Logger) error {
	if len(cfg.Registry.EtcdEndpoints) > 0 {
		etcdSync, err := registry.NewEtcdSync(cfg.Registry.EtcdEndpoints, reg, log)
		if err != nil {
			return err
		}

		go func() {
			defer etcdSync.Close()
			if err := etcdSync.Sync(ctx, reservationService); err != nil && ctx.Err() == nil {
				log.Error("Registry sync stopped", slog.Any("err", err))
			}
		}()
		return nil
	}

	for _, inst := range cfg.Registry.Instances {
		err := reg.Register(registry.ServiceInstance{
			ServiceName: inst.Service,
			Host:        inst.Host,
			Port:        inst.Port,
			Healthy:     true,
		})
		if err != nil {
			log.Error("Skipping invalid instance",
				slog.String("service", inst.Service),
				slog.String("host", inst.Host),
				slog.Any("err", err))
		}
	}

	if len(reg.Services()) == 0 {
		log.Warn("No service instances configured")
	}
	return nil
}

// initializeChannel opens the outbound reservation channel. The reservation
// service runs in another process, so only the redis channel reaches it.
func initializeChannel(ctx context.Context, cfg *config.Config, log *slog.Logger) (channel.Channel, func(), error) {
	if cfg.Channel.Type != config.ChannelRedis {
		log.Warn("In-memory channel has no subscriber in the gateway process, published reservations are not delivered",
			slog.String("channel", cfg.Channel.Type))
		ch, err := channel.New(cfg.Channel, nil, log)
		return ch, func() {}, err
	}

	client, err := store.NewRedisClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, nil, err
	}

	ch, err := channel.New(cfg.Channel, client, log)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	return ch, func() { _ = client.Close() }, nil
}

func createStrategy(logger *slog.Logger, strategyType string) strategy.Factory {
	switch strategyType {
	case "round-robin":
		return strategy.NewRoundRobinStrategy
	case "random":
		return strategy.NewRandomStrategy
	default:
		logger.Warn("Unknown strategy, defaulting to round-robin", slog.String("requested", strategyType))
		return strategy.NewRoundRobinStrategy
	}
}

func breakerSettings(cfg config.BreakerConfig) circuitbreaker.Settings {
	return circuitbreaker.Settings{
		FailureThreshold: cfg.FailureThreshold,
		FailureWindow:    cfg.FailureWindowDuration(),
		Cooldown:         cfg.CooldownDuration(),
		CallTimeout:      cfg.CallTimeoutDuration(),
	}
}

// emptyReservations stands in for the reservation listing while the
// reservation service is failing.
func emptyReservations(ctx context.Context, cause error) (*router.Response, error) {
	return &router.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte("[]"),
	}, nil
}
