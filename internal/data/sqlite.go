package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	// Register the pure-Go sqlite driver.
	_ "modernc.org/sqlite"
)

// SQLiteOptions configures OpenSQLite.
type SQLiteOptions struct {
	// Path is a file path or ":memory:".
	Path        string
	BusyTimeout time.Duration
}

// OpenSQLite opens a SQLite database tuned for the post store: WAL journal, busy timeout,
// and timestamps written in a sortable text format.
func OpenSQLite(ctx context.Context, opts SQLiteOptions) (*sql.DB, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	memory := path == ":memory:"
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	if !memory {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	q.Set("_time_format", "sqlite")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if memory {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if pingErr := db.PingContext(pingCtx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close sqlite: %w", closeErr))
		}
		return nil, fmt.Errorf("ping sqlite: %w", pingErr)
	}
	return db, nil
}
