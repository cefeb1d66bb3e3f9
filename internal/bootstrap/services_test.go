package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/caption-pipeline/config"
	"github.com/target/caption-pipeline/internal/adapters/workerhttp"
	"github.com/target/caption-pipeline/internal/data/database"
	"github.com/target/caption-pipeline/internal/service/registry"
)

func sqliteConfig(t *testing.T, extra map[string]string) config.AppConfig {
	t.Helper()
	vars := map[string]string{
		"DB_DRIVER":                "sqlite",
		"DB_SQLITE_PATH":           ":memory:",
		"CAPTION_QUEUE_BACKEND":    "http",
		"CAPTION_WORKER_BASE_URL":  "http://worker.internal:8000",
		"BACKEND_CALLBACK_SECRET":  "s3cret",
		"CAPTION_REGISTRY_BACKEND": "memory",
	}
	for k, v := range extra {
		vars[k] = v
	}
	cfg, err := ParseConfig(env.Options{Environment: vars})
	require.NoError(t, err)
	return cfg
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)

	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
	assert.Equal(t, slog.LevelDebug, parseLevel(" DEBUG "))
}

func TestValidateServiceConfig(t *testing.T) {
	require.Error(t, ValidateServiceConfig(nil))

	cfg := sqliteConfig(t, nil)
	require.NoError(t, ValidateServiceConfig(&cfg))

	cfg.Services = "http,bogus"
	require.Error(t, ValidateServiceConfig(&cfg))

	cfg = sqliteConfig(t, map[string]string{"CAPTION_WORKER_BASE_URL": ""})
	err := ValidateServiceConfig(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestGetEnabledServices(t *testing.T) {
	cfg := sqliteConfig(t, map[string]string{"SERVICES": "reaper,http"})
	assert.Equal(t, []string{"http", "reaper"}, GetEnabledServices(&cfg))
	assert.Empty(t, GetEnabledServices(nil))
}

func TestNewJobRegistryAndQueue(t *testing.T) {
	cfg := sqliteConfig(t, nil)

	reg, err := NewJobRegistry(cfg.Caption, nil)
	require.NoError(t, err)
	assert.IsType(t, &registry.Memory{}, reg)

	queue, err := NewCaptionQueue(cfg.Caption, nil)
	require.NoError(t, err)
	assert.IsType(t, &workerhttp.CaptionQueue{}, queue)

	cfg.Caption.RegistryBackend = config.RegistryBackendRedis
	_, err = NewJobRegistry(cfg.Caption, nil)
	require.ErrorIs(t, err, errRedisRequired)

	cfg.Caption.QueueBackend = config.QueueBackendRedis
	_, err = NewCaptionQueue(cfg.Caption, nil)
	require.ErrorIs(t, err, errRedisRequired)
}

func TestRedactAddr(t *testing.T) {
	redacted := redactAddr("redis://user:pw@cache:6379/0")
	assert.NotContains(t, redacted, "pw")
	assert.Contains(t, redacted, "cache:6379")
	assert.Equal(t, "cache:6379", redactAddr("cache:6379"))
	assert.Equal(t, []string{"a:1", "b:2"}, normalizeAddrs([]string{" a:1 ", "", "b:2"}))
}

func TestNewClusterClient_SeedFromURI(t *testing.T) {
	client, desc, err := newClusterClient(config.RedisConfig{UseCluster: true, URI: "redis://cache-0:6379"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	assert.Equal(t, "cluster:cache-0:6379", desc)

	_, _, err = newClusterClient(config.RedisConfig{UseCluster: true})
	require.Error(t, err)

	_, _, err = newSentinelClient(config.RedisConfig{UseSentinel: true, SentinelNodes: []string{" "}})
	require.Error(t, err)
}

func TestNewServices_SQLite(t *testing.T) {
	cfg := sqliteConfig(t, nil)
	logger := slog.New(slog.DiscardHandler)

	db, err := ConnectDB(DatabaseConfig{DBConfig: cfg.DB, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, RunMigrations(context.Background(), db, database.SQLite, logger))

	services, err := NewServices(&ServiceDeps{Config: &cfg, DB: db, Logger: logger})
	require.NoError(t, err)
	require.NotNil(t, services.Captions)
	require.NotNil(t, services.Callbacks)
	assert.Contains(t, services.Health, "database")

	handler := NewHTTPHandler(&cfg, services, logger)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/posts/ai/init",
		strings.NewReader(`{"media_type":"PHOTO","media_url":"https://cdn/p.jpg"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NONE", body["caption_status"])

	require.NoError(t, services.Observability.Close())
}

func TestNewServices_RequiresDeps(t *testing.T) {
	_, err := NewServices(nil)
	require.Error(t, err)
}

func TestRunServicesWithShutdown_Signal(t *testing.T) {
	cfg := sqliteConfig(t, map[string]string{"SERVICES": "reaper"})
	logger := slog.New(slog.DiscardHandler)

	db, err := ConnectDB(DatabaseConfig{DBConfig: cfg.DB})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, RunMigrations(context.Background(), db, database.SQLite, nil))

	services, err := NewServices(&ServiceDeps{Config: &cfg, DB: db, Logger: logger})
	require.NoError(t, err)

	sig := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- RunServicesWithShutdown(&ServiceOrchestrationConfig{
			Config:   &cfg,
			Services: services,
			Logger:   logger,
			Signals:  sig,
		})
	}()

	time.Sleep(50 * time.Millisecond)
	sig <- os.Interrupt

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("services did not shut down")
	}
}
