package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// QueueBackend selects how caption jobs reach the worker.
type QueueBackend string

const (
	// QueueBackendRedis pushes job messages onto a Redis list.
	QueueBackendRedis QueueBackend = "redis"
	// QueueBackendHTTP posts job messages to the worker's async endpoint.
	QueueBackendHTTP QueueBackend = "http"
)

// RegistryBackend selects where job status entries are kept.
type RegistryBackend string

const (
	// RegistryBackendMemory keeps entries in a bounded in-process LRU.
	RegistryBackendMemory RegistryBackend = "memory"
	// RegistryBackendRedis keeps entries in Redis so several replicas share them.
	RegistryBackendRedis RegistryBackend = "redis"
)

// CaptionConfig groups caption pipeline settings.
type CaptionConfig struct {
	// CallbackSecret is the shared secret workers present on callbacks.
	// An empty secret rejects every callback.
	CallbackSecret string `env:"BACKEND_CALLBACK_SECRET"`

	// CallbackBaseURL is the externally reachable base the worker calls back to.
	// Defaults to APP_BASE_URL.
	CallbackBaseURL string `env:"CAPTION_CALLBACK_BASE_URL"`
	CallbackPath    string `env:"CAPTION_CALLBACK_PATH"     envDefault:"/api/ai/callback/captions"`

	QueueBackend   QueueBackend  `env:"CAPTION_QUEUE_BACKEND"   envDefault:"redis"`
	QueueName      string        `env:"CAPTION_QUEUE_NAME"      envDefault:"caption-jobs"`
	WorkerBaseURL  string        `env:"CAPTION_WORKER_BASE_URL"`
	EnqueueTimeout time.Duration `env:"CAPTION_ENQUEUE_TIMEOUT" envDefault:"5s"`

	RegistryBackend   RegistryBackend `env:"CAPTION_REGISTRY_BACKEND"    envDefault:"memory"`
	RegistryTTL       time.Duration   `env:"CAPTION_REGISTRY_TTL"        envDefault:"24h"`
	RegistryCapacity  int             `env:"CAPTION_REGISTRY_CAPACITY"   envDefault:"10000"`
	RegistryKeyPrefix string          `env:"CAPTION_REGISTRY_KEY_PREFIX" envDefault:"caption:job:"`
}

// Sanitize normalises caption settings and clamps durations.
func (c *CaptionConfig) Sanitize() {
	c.CallbackBaseURL = strings.TrimRight(strings.TrimSpace(c.CallbackBaseURL), "/")
	c.CallbackPath = strings.TrimSpace(c.CallbackPath)
	if c.CallbackPath == "" {
		c.CallbackPath = "/api/ai/callback/captions"
	}
	if !strings.HasPrefix(c.CallbackPath, "/") {
		c.CallbackPath = "/" + c.CallbackPath
	}
	c.QueueBackend = QueueBackend(strings.ToLower(strings.TrimSpace(string(c.QueueBackend))))
	c.RegistryBackend = RegistryBackend(strings.ToLower(strings.TrimSpace(string(c.RegistryBackend))))
	c.WorkerBaseURL = strings.TrimSpace(c.WorkerBaseURL)
	if c.QueueName = strings.TrimSpace(c.QueueName); c.QueueName == "" {
		c.QueueName = "caption-jobs"
	}

	if c.EnqueueTimeout < 100*time.Millisecond {
		c.EnqueueTimeout = 100 * time.Millisecond
	}
	if c.EnqueueTimeout > time.Minute {
		c.EnqueueTimeout = time.Minute
	}
	if c.RegistryTTL < time.Minute {
		c.RegistryTTL = time.Minute
	}
	if c.RegistryCapacity < 1 {
		c.RegistryCapacity = 1
	}
}

// Validate rejects unknown backends and an HTTP queue without a worker URL.
func (c *CaptionConfig) Validate() error {
	var errs []error
	switch c.QueueBackend {
	case QueueBackendRedis:
	case QueueBackendHTTP:
		if c.WorkerBaseURL == "" {
			errs = append(errs, errors.New("CAPTION_WORKER_BASE_URL is required when CAPTION_QUEUE_BACKEND=http"))
		}
	default:
		errs = append(errs, fmt.Errorf("CAPTION_QUEUE_BACKEND %q is not supported (redis, http)", c.QueueBackend))
	}
	switch c.RegistryBackend {
	case RegistryBackendMemory, RegistryBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("CAPTION_REGISTRY_BACKEND %q is not supported (memory, redis)", c.RegistryBackend))
	}
	return errors.Join(errs...)
}

// CallbackURL is the absolute URL included in every job message.
func (c *CaptionConfig) CallbackURL() string {
	if c.CallbackBaseURL == "" {
		return c.CallbackPath
	}
	u, err := url.JoinPath(c.CallbackBaseURL, c.CallbackPath)
	if err != nil {
		return c.CallbackBaseURL + c.CallbackPath
	}
	return u
}
