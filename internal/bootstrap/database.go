package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/target/caption-pipeline/config"
	"github.com/target/caption-pipeline/internal/data"
	"github.com/target/caption-pipeline/internal/data/database"
)

const connectTimeout = 5 * time.Second

// DatabaseConfig contains configuration for database connections.
type DatabaseConfig struct {
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig
	Logger      *slog.Logger
}

// ConnectDB opens the post store for the configured driver and verifies it responds.
func ConnectDB(cfg DatabaseConfig) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	var (
		db  *sql.DB
		err error
	)
	switch cfg.DBConfig.Driver {
	case database.SQLite:
		db, err = data.OpenSQLite(ctx, data.SQLiteOptions{
			Path:        cfg.DBConfig.SQLitePath,
			BusyTimeout: cfg.DBConfig.SQLiteBusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
	default:
		db, err = openPostgres(ctx, cfg.DBConfig)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Logger != nil {
		attrs := []any{"driver", cfg.DBConfig.Driver}
		if cfg.DBConfig.Driver == database.SQLite {
			attrs = append(attrs, "path", cfg.DBConfig.SQLitePath)
		} else {
			attrs = append(attrs,
				"host", cfg.DBConfig.Host,
				"port", cfg.DBConfig.Port,
				"database", cfg.DBConfig.Name,
			)
		}
		cfg.Logger.Info("database connected", attrs...)
	}
	return db, nil
}

func openPostgres(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open(database.Postgres.DriverName(), cfg.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close database connection: %w", closeErr))
		}
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}
	return db, nil
}

// RunMigrations applies the schema for the configured dialect.
func RunMigrations(ctx context.Context, db *sql.DB, dialect database.Dialect, logger *slog.Logger) error {
	if err := data.RunMigrations(ctx, db, dialect); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed", "driver", dialect)
	}
	return nil
}

// ConnectRedis establishes a direct, sentinel or cluster connection to Redis.
//
//nolint:ireturn // returning redis.UniversalClient lets us pick single, sentinel, or cluster clients at runtime.
func ConnectRedis(cfg DatabaseConfig) (redis.UniversalClient, error) {
	client, addrDesc, err := newRedisClient(cfg.RedisConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis: %w", pingErr)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("redis connected", "addr", redactAddr(addrDesc))
	}
	return client, nil
}

//nolint:ireturn // see ConnectRedis.
func newRedisClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	switch {
	case cfg.UseCluster:
		return newClusterClient(cfg)
	case cfg.UseSentinel:
		return newSentinelClient(cfg)
	default:
		return newDirectClient(cfg)
	}
}

//nolint:ireturn // see ConnectRedis.
func newClusterClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	opts := &redis.ClusterOptions{
		Addrs:    normalizeAddrs(cfg.ClusterNodes),
		Password: cfg.Password,
	}

	// A single URI doubles as the cluster seed when no nodes are listed.
	if len(opts.Addrs) == 0 {
		seed, err := parseRedisSeed(cfg.URI)
		if err != nil {
			return nil, "", err
		}
		if seed.addr != "" {
			opts.Addrs = []string{seed.addr}
			opts.Username = seed.username
			opts.TLSConfig = seed.tls
			if seed.password != "" {
				opts.Password = seed.password
			}
		}
	}
	if len(opts.Addrs) == 0 {
		return nil, "", errors.New("redis cluster configuration requires at least one address")
	}

	return redis.NewClusterClient(opts), "cluster:" + strings.Join(opts.Addrs, ","), nil
}

//nolint:ireturn // see ConnectRedis.
func newSentinelClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	nodes := normalizeAddrs(cfg.SentinelNodes)
	if len(nodes) == 0 {
		return nil, "", errors.New("redis sentinel configuration requires at least one sentinel node")
	}
	client := redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:       cfg.SentinelMasterName,
		SentinelAddrs:    nodes,
		Password:         cfg.Password,
		SentinelPassword: cfg.SentinelPassword,
		DB:               cfg.DB,
	})
	return client, "sentinel:" + cfg.SentinelMasterName, nil
}

//nolint:ireturn // see ConnectRedis.
func newDirectClient(cfg config.RedisConfig) (redis.UniversalClient, string, error) {
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, "", errors.New("redis direct configuration requires a URI")
	}

	if isRedisURL(uri) {
		opt, err := redis.ParseURL(uri)
		if err != nil {
			return nil, "", fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), uri, nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     uri,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), uri, nil
}

type redisSeed struct {
	addr     string
	username string
	password string
	tls      *tls.Config
}

func parseRedisSeed(uri string) (redisSeed, error) {
	trimmed := strings.TrimSpace(uri)
	if trimmed == "" || !isRedisURL(trimmed) {
		return redisSeed{addr: trimmed}, nil
	}
	opt, err := redis.ParseURL(trimmed)
	if err != nil {
		return redisSeed{}, fmt.Errorf("parse redis cluster url: %w", err)
	}
	return redisSeed{addr: opt.Addr, username: opt.Username, password: opt.Password, tls: opt.TLSConfig}, nil
}

// redactAddr strips credentials from a redis URL before it is logged.
func redactAddr(addr string) string {
	if u, err := url.Parse(addr); err == nil && u.User != nil {
		u.User = url.User("*")
		return u.Redacted()
	}
	if i := strings.LastIndex(addr, "@"); i > -1 {
		return addr[i+1:]
	}
	return addr
}

func normalizeAddrs(raw []string) []string {
	result := make([]string, 0, len(raw))
	for _, addr := range raw {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func isRedisURL(value string) bool {
	return strings.HasPrefix(value, "redis://") || strings.HasPrefix(value, "rediss://")
}
