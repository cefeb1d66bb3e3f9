package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/target/caption-pipeline/config"
	redisadapter "github.com/target/caption-pipeline/internal/adapters/redis"
	"github.com/target/caption-pipeline/internal/adapters/reaper"
	"github.com/target/caption-pipeline/internal/adapters/workerhttp"
	"github.com/target/caption-pipeline/internal/core"
	"github.com/target/caption-pipeline/internal/observability/statsd"
	"github.com/target/caption-pipeline/internal/service"
	"github.com/target/caption-pipeline/internal/service/registry"
)

var errRedisRequired = errors.New("redis client is required")

// NewJobRegistry selects the job registry backend.
//
//nolint:ireturn // callers only need the port; the backend is a config choice.
func NewJobRegistry(cfg config.CaptionConfig, client redis.UniversalClient) (core.JobRegistry, error) {
	switch cfg.RegistryBackend {
	case config.RegistryBackendRedis:
		if client == nil {
			return nil, fmt.Errorf("redis job registry: %w", errRedisRequired)
		}
		return redisadapter.NewJobRegistry(redisadapter.JobRegistryOptions{
			Client: client,
			Prefix: cfg.RegistryKeyPrefix,
			TTL:    cfg.RegistryTTL,
		})
	default:
		return registry.NewMemory(registry.MemoryConfig{
			Capacity: cfg.RegistryCapacity,
			TTL:      cfg.RegistryTTL,
		}), nil
	}
}

// NewCaptionQueue selects how jobs reach the worker.
//
//nolint:ireturn // see NewJobRegistry.
func NewCaptionQueue(cfg config.CaptionConfig, client redis.UniversalClient) (core.CaptionQueue, error) {
	switch cfg.QueueBackend {
	case config.QueueBackendHTTP:
		return workerhttp.NewCaptionQueue(workerhttp.Config{
			BaseURL: cfg.WorkerBaseURL,
			Timeout: cfg.EnqueueTimeout,
			Client:  &http.Client{Timeout: cfg.EnqueueTimeout},
		})
	default:
		if client == nil {
			return nil, fmt.Errorf("redis caption queue: %w", errRedisRequired)
		}
		return redisadapter.NewCaptionQueue(client, cfg.QueueName), nil
	}
}

// ReaperConfig contains configuration for the reaper background service.
type ReaperConfig struct {
	Ports    service.CaptionPorts
	Config   config.ReaperConfig
	Logger   *slog.Logger
	Metrics  statsd.Sink
	Notifier service.FailureNotifier
}

// RunReaper starts the reaper and blocks until ctx is cancelled.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		Posts:    cfg.Ports.Posts,
		Registry: cfg.Ports.Registry,
		Config:   cfg.Config,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
		Notifier: cfg.Notifier,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}
	return runner.Run(ctx)
}
