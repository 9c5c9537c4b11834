package main

import (
	"fmt"

	"github.com/Jayphen/habisnooze/internal/habitica"
	"github.com/Jayphen/habisnooze/internal/logging"
	"github.com/Jayphen/habisnooze/internal/metrics"
	"github.com/Jayphen/habisnooze/internal/redis"
	"github.com/Jayphen/habisnooze/internal/scheduler"
	"github.com/Jayphen/habisnooze/internal/service"
)

// newService validates the config and builds the snooze service on top of
// a Habitica client.
func newService(log *logging.Logger, m *metrics.Metrics) (*service.TaskService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	client, err := habitica.NewClient(cfg.HabiticaClientConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Habitica client: %w", err)
	}

	return service.New(client, policy,
		service.WithLogger(log),
		service.WithMetrics(m),
	), nil
}

// openRedis connects to the configured Redis server. It returns nil when
// Redis is disabled or unreachable; callers run without it.
func openRedis(log *logging.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		log.Debug("redis disabled")
		return nil
	}

	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("failed to connect to Redis, continuing without run status")
		return nil
	}
	return client
}

// newRunner wires the scheduler around svc, with the run lock and summary
// store when Redis is available.
func newRunner(svc *service.TaskService, rdb *redis.Client, log *logging.Logger, extra ...scheduler.Option) *scheduler.Runner {
	opts := []scheduler.Option{
		scheduler.WithInterval(cfg.Schedule.Interval),
		scheduler.WithRunTimeout(cfg.Schedule.RunTimeout),
		scheduler.WithRunOnStart(cfg.Schedule.RunOnStart),
		scheduler.WithLogger(log),
	}
	if rdb != nil {
		opts = append(opts, scheduler.WithLocker(rdb), scheduler.WithStore(rdb))
	}
	return scheduler.New(svc, append(opts, extra...)...)
}
