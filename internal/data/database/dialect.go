// Package database holds the SQL dialect helpers shared by the PostgreSQL and SQLite stores.
package database

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect names the SQL flavour a *sql.DB speaks.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type Dialect string

const (
	// Postgres is served through the pgx stdlib driver.
	Postgres Dialect = "postgres"
	// SQLite is served through the pure-Go modernc driver.
	SQLite Dialect = "sqlite"
)

// reDollarParam matches $N placeholders; $10 must not be read as $1 followed by 0.
var reDollarParam = regexp.MustCompile(`\$(\d+)`)

// UnmarshalText implements encoding.TextUnmarshaler for env parsing.
func (d *Dialect) UnmarshalText(text []byte) error {
	v := Dialect(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case "postgresql", "pgx":
		v = Postgres
	case "sqlite3":
		v = SQLite
	}
	if !v.Valid() {
		return fmt.Errorf("invalid database driver: %q (expected postgres or sqlite)", string(text))
	}
	*d = v
	return nil
}

// Valid returns true for supported dialects.
func (d Dialect) Valid() bool {
	return d == Postgres || d == SQLite
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == SQLite {
		return "sqlite"
	}
	return "pgx"
}

// Rebind rewrites $N placeholders for the dialect. Queries are written PostgreSQL-style;
// SQLite receives ?N so numbered parameters can repeat and appear out of order.
func (d Dialect) Rebind(query string) string {
	if d != SQLite {
		return query
	}
	return reDollarParam.ReplaceAllString(query, "?$1")
}

// Placeholders returns "$start, $start+1, ..." for n parameters.
func Placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range n {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}
