package bootstrap

import (
	"log/slog"

	"github.com/target/caption-pipeline/config"
	"github.com/target/caption-pipeline/internal/observability/notify"
	"github.com/target/caption-pipeline/internal/observability/notify/pagerduty"
	"github.com/target/caption-pipeline/internal/observability/notify/slack"
	"github.com/target/caption-pipeline/internal/observability/statsd"
	"github.com/target/caption-pipeline/internal/service/failurenotifier"
)

const metricsPrefix = "captiond"

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// MetricsClient is nil when metrics are disabled; Metrics is always usable.
	MetricsClient   *statsd.Client
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// Close flushes pending notifications and releases the metrics socket.
func (o ObservabilityContainer) Close() error {
	if o.FailureNotifier != nil {
		o.FailureNotifier.Wait()
	}
	return o.MetricsClient.Close()
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	if logger == nil {
		logger = slog.Default()
	}

	out := ObservabilityContainer{Metrics: statsd.Discard}
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  metricsPrefix,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to initialise statsd client", "error", err)
		} else {
			out.MetricsClient = client
			out.Metrics = client
		}
	}

	out.FailureNotifier = buildFailureNotifier(logger, cfg.Notifications)
	return out
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	opts := failurenotifier.Options{
		Logger:       logger,
		AsyncTimeout: cfg.Timeout,
	}
	if !cfg.Enabled {
		return failurenotifier.NewService(opts)
	}

	for _, st := range cfg.Stages {
		opts.Stages = append(opts.Stages, notify.Stage(st))
	}

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:    cfg.Slack.WebhookURL,
			Channel:       cfg.Slack.Channel,
			Username:      cfg.Slack.Username,
			Timeout:       cfg.Timeout,
			RetryLimit:    cfg.RetryLimit,
			PostURLPrefix: cfg.Slack.PostURLPrefix,
		})
		if err != nil {
			logger.Error("failed to initialise slack notifier", "error", err)
		} else {
			opts.Sinks = append(opts.Sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Endpoint:   cfg.PagerDuty.Endpoint,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			opts.Sinks = append(opts.Sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	return failurenotifier.NewService(opts)
}
