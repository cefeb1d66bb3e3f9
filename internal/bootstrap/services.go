package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/caption-pipeline/config"
	"github.com/target/caption-pipeline/internal/core"
	"github.com/target/caption-pipeline/internal/data"
	"github.com/target/caption-pipeline/internal/service"
)

const shutdownWaitTimeout = 15 * time.Second

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Captions      *service.CaptionService
	Callbacks     *service.CaptionCallbackService
	Ports         service.CaptionPorts
	Health        map[string]core.HealthChecker
	Observability ObservabilityContainer
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires the caption ports and services from config.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil || deps.DB == nil {
		return ServiceContainer{}, errors.New("config and database are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	posts := data.NewPostRepo(deps.DB, data.PostRepoConfig{Dialect: cfg.DB.Driver, Logger: logger})
	reg, err := NewJobRegistry(cfg.Caption, deps.RedisClient)
	if err != nil {
		return ServiceContainer{}, err
	}
	queue, err := NewCaptionQueue(cfg.Caption, deps.RedisClient)
	if err != nil {
		return ServiceContainer{}, err
	}
	ports := service.CaptionPorts{Posts: posts, Registry: reg, Queue: queue}

	obs := buildObservability(logger, cfg.Observability)

	captions, err := service.NewCaptionService(service.CaptionServiceOptions{
		Ports:    ports,
		Config:   cfg.Caption,
		Logger:   logger,
		Metrics:  obs.Metrics,
		Notifier: obs.FailureNotifier,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("caption service: %w", err)
	}
	callbacks, err := service.NewCaptionCallbackService(service.CaptionCallbackServiceOptions{
		Ports:    ports,
		Secret:   cfg.Caption.CallbackSecret,
		Logger:   logger,
		Metrics:  obs.Metrics,
		Notifier: obs.FailureNotifier,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("caption callback service: %w", err)
	}
	if cfg.Caption.CallbackSecret == "" {
		logger.Warn("BACKEND_CALLBACK_SECRET is empty; all worker callbacks will be rejected")
	}

	return ServiceContainer{
		Captions:      captions,
		Callbacks:     callbacks,
		Ports:         ports,
		Health:        healthChecks(posts, reg, queue),
		Observability: obs,
	}, nil
}

// healthChecks collects every port that can report connectivity.
func healthChecks(posts core.PostRepository, reg core.JobRegistry, queue core.CaptionQueue) map[string]core.HealthChecker {
	checks := map[string]core.HealthChecker{}
	if hc, ok := posts.(core.HealthChecker); ok {
		checks["database"] = hc
	}
	if hc, ok := reg.(core.HealthChecker); ok {
		checks["registry"] = hc
	}
	if hc, ok := queue.(core.HealthChecker); ok {
		checks["queue"] = hc
	}
	return checks
}

// ServiceOrchestrationConfig contains dependencies for RunServicesWithShutdown.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
	// Signals overrides SIGINT/SIGTERM; tests close it to trigger shutdown.
	Signals <-chan os.Signal
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

type backgroundServiceHandle struct {
	name string
	done <-chan struct{}
}

func launchBackground(
	ctx context.Context,
	logger *slog.Logger,
	svc backgroundService,
	errCh chan<- error,
) backgroundServiceHandle {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := svc.start(ctx); err != nil {
			select {
			case errCh <- fmt.Errorf("%s failed: %w", svc.name, err):
			default:
				logger.WarnContext(ctx, "dropping background service error", "service", svc.name, "error", err)
			}
		}
	}()
	logger.InfoContext(ctx, "background service started", "service", svc.name, "mode", svc.mode)
	return backgroundServiceHandle{name: svc.name, done: done}
}

func buildBackgroundServices(cfg *ServiceOrchestrationConfig, logger *slog.Logger) []backgroundService {
	return []backgroundService{
		{
			mode: config.ServiceModeReaper,
			name: "reaper",
			start: func(ctx context.Context) error {
				return RunReaper(ctx, ReaperConfig{
					Ports:    cfg.Services.Ports,
					Config:   cfg.Config.Reaper,
					Logger:   logger,
					Metrics:  cfg.Services.Observability.Metrics,
					Notifier: cfg.Services.Observability.FailureNotifier,
				})
			},
		},
	}
}

// RunServicesWithShutdown starts all enabled services and blocks until a shutdown
// signal arrives or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, len(enabled)+1)

	var server *http.Server
	if enabled[config.ServiceModeHTTP] {
		server = StartHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			Logger:   logger,
			ErrCh:    errCh,
		})
	}

	var handles []backgroundServiceHandle
	for _, svc := range buildBackgroundServices(cfg, logger) {
		if enabled[svc.mode] {
			handles = append(handles, launchBackground(serviceCtx, logger, svc, errCh))
		}
	}

	return waitForShutdown(shutdownConfig{
		signals:     cfg.Signals,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  server,
		httpTimeout: cfg.Config.HTTP.ShutdownTimeout,
		logger:      logger,
		backgrounds: handles,
		closeObs:    cfg.Services.Observability.Close,
	})
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	signals     <-chan os.Signal
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	httpTimeout time.Duration
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
	closeObs    func() error
}

func waitForShutdown(cfg shutdownConfig) error {
	quit := cfg.signals
	if quit == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		quit = ch
	}

	select {
	case <-quit:
		cfg.logger.Info("shutting down services")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

func gracefulStop(cfg shutdownConfig) error {
	var errs []error
	if cfg.httpServer != nil {
		timeout := cfg.httpTimeout
		if timeout <= 0 {
			timeout = shutdownWaitTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := ShutdownHTTPServer(ctx, cfg.httpServer, cfg.logger); err != nil {
			errs = append(errs, err)
		}
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	if cfg.closeObs != nil {
		if err := cfg.closeObs(); err != nil {
			errs = append(errs, fmt.Errorf("close observability: %w", err))
		}
	}
	return errors.Join(errs...)
}

func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
