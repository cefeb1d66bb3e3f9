package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/target/caption-pipeline/internal/data/database"
)

// DBConfig contains post store configuration.
type DBConfig struct {
	// Driver selects the SQL backend: postgres (default) or sqlite.
	Driver database.Dialect `env:"DRIVER" envDefault:"postgres"`

	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"captions"`
	Password string `env:"PASSWORD" envDefault:"captions"`
	Name     string `env:"NAME"     envDefault:"captions"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production

	MaxOpenConns int `env:"MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns int `env:"MAX_IDLE_CONNS" envDefault:"5"`

	// SQLitePath is a file path or ":memory:" when Driver is sqlite.
	SQLitePath        string        `env:"SQLITE_PATH"         envDefault:"captions.db"`
	SQLiteBusyTimeout time.Duration `env:"SQLITE_BUSY_TIMEOUT" envDefault:"5s"`

	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// Sanitize applies guardrails to database configuration values.
func (d *DBConfig) Sanitize() {
	if d.Driver == "" {
		d.Driver = database.Postgres
	}
	d.SQLitePath = strings.TrimSpace(d.SQLitePath)
	if d.MaxOpenConns < 1 {
		d.MaxOpenConns = 1
	}
	if d.MaxIdleConns < 0 {
		d.MaxIdleConns = 0
	}
	if d.MaxIdleConns > d.MaxOpenConns {
		d.MaxIdleConns = d.MaxOpenConns
	}
	if d.SQLiteBusyTimeout <= 0 {
		d.SQLiteBusyTimeout = 5 * time.Second
	}
}

// Validate checks the selected driver has what it needs.
func (d *DBConfig) Validate() error {
	if !d.Driver.Valid() {
		return fmt.Errorf("DB_DRIVER %q is not supported", d.Driver)
	}
	if d.Driver == database.SQLite && d.SQLitePath == "" {
		return errors.New("DB_SQLITE_PATH is required when DB_DRIVER=sqlite")
	}
	return nil
}

// PostgresDSN builds a pgx connection URL.
func (d *DBConfig) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}
