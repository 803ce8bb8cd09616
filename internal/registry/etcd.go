package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/services/"

// EtcdSync connects a Registry to etcd. Services announce themselves with a
// TTL lease; the gateway mirrors a service prefix into its local registry.
type EtcdSync struct {
	client   *clientv3.Client
	registry *Registry
	logger   *slog.Logger
}

// NewEtcdSync dials the given etcd endpoints. registry may be nil for
// processes that only announce themselves.
func NewEtcdSync(endpoints []string, registry *Registry, logger *slog.Logger) (*EtcdSync, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("connect etcd: %w", err)
	}

	return &EtcdSync{client: client, registry: registry, logger: logger}, nil
}

func (s *EtcdSync) Close() error {
	return s.client.Close()
}

// Announce publishes the instance under a lease of ttl seconds and keeps the
// lease alive until ctx is cancelled, after which the entry expires.
func (s *EtcdSync) Announce(ctx context.Context, instance ServiceInstance, ttl int64) error {
	if err := instance.Validate(); err != nil {
		return err
	}

	lease, err := s.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}

	instance.Healthy = true
	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	if _, err := s.client.Put(ctx, instanceKey(instance), string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("put instance: %w", err)
	}

	ch, err := s.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("keep lease alive: %w", err)
	}

	go func() {
		for range ch {
		}
		s.logger.Info("Lease keep-alive stopped", slog.String("instance", instance.Addr()))
	}()

	s.logger.Info("Announced instance",
		slog.String("service", instance.ServiceName),
		slog.String("instance", instance.Addr()),
		slog.Int64("ttl", ttl))

	return nil
}

// Withdraw deletes the instance key ahead of lease expiry.
func (s *EtcdSync) Withdraw(ctx context.Context, instance ServiceInstance) error {
	if _, err := s.client.Delete(ctx, instanceKey(instance)); err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	return nil
}

// Sync loads the current instances of serviceName into the registry and then
// re-lists the prefix on every watch event. It blocks until ctx is done.
func (s *EtcdSync) Sync(ctx context.Context, serviceName string) error {
	if s.registry == nil {
		return fmt.Errorf("sync %s: no registry attached", serviceName)
	}

	if err := s.resync(ctx, serviceName); err != nil {
		return err
	}

	watchCh := s.client.Watch(ctx, servicePrefix(serviceName), clientv3.WithPrefix())
	for resp := range watchCh {
		if err := resp.Err(); err != nil {
			s.logger.Warn("etcd watch error", slog.String("service", serviceName), slog.Any("err", err))
			continue
		}
		if err := s.resync(ctx, serviceName); err != nil {
			s.logger.Warn("etcd resync failed", slog.String("service", serviceName), slog.Any("err", err))
		}
	}

	return ctx.Err()
}

func (s *EtcdSync) resync(ctx context.Context, serviceName string) error {
	resp, err := s.client.Get(ctx, servicePrefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return fmt.Errorf("list %s: %w", serviceName, err)
	}

	values := make([][]byte, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		values = append(values, kv.Value)
	}

	instances := decodeInstances(serviceName, values, s.logger)
	if err := s.registry.Replace(serviceName, instances); err != nil {
		return err
	}

	s.logger.Debug("Registry synced from etcd",
		slog.String("service", serviceName),
		slog.Int("instances", len(instances)))

	return nil
}

func servicePrefix(serviceName string) string {
	return keyPrefix + serviceName + "/"
}

func instanceKey(instance ServiceInstance) string {
	return servicePrefix(instance.ServiceName) + instance.Addr()
}

// decodeInstances parses announced values, skipping malformed entries and
// entries that belong to another service.
func decodeInstances(serviceName string, values [][]byte, logger *slog.Logger) []ServiceInstance {
	instances := make([]ServiceInstance, 0, len(values))

	for _, raw := range values {
		var inst ServiceInstance
		if err := json.Unmarshal(raw, &inst); err != nil {
			logger.Warn("Skipping malformed instance", slog.String("service", serviceName), slog.Any("err", err))
			continue
		}
		if inst.ServiceName != serviceName {
			continue
		}
		if err := inst.Validate(); err != nil {
			logger.Warn("Skipping invalid instance", slog.String("service", serviceName), slog.Any("err", err))
			continue
		}
		instances = append(instances, inst)
	}

	return instances
}
