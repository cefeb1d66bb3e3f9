package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect_Rebind(t *testing.T) {
	q := `UPDATE posts SET caption_status = $3 WHERE id = $1 AND current_job_id = $2 AND updated_at < $10`

	assert.Equal(t, q, Postgres.Rebind(q))
	assert.Equal(t,
		`UPDATE posts SET caption_status = ?3 WHERE id = ?1 AND current_job_id = ?2 AND updated_at < ?10`,
		SQLite.Rebind(q),
	)
}

func TestDialect_UnmarshalText(t *testing.T) {
	tests := []struct {
		in   string
		want Dialect
	}{
		{"postgres", Postgres},
		{" PostgreSQL ", Postgres},
		{"pgx", Postgres},
		{"sqlite", SQLite},
		{"sqlite3", SQLite},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var d Dialect
			require.NoError(t, d.UnmarshalText([]byte(tt.in)))
			assert.Equal(t, tt.want, d)
		})
	}

	var d Dialect
	assert.Error(t, d.UnmarshalText([]byte("mysql")))
}

func TestDialect_DriverName(t *testing.T) {
	assert.Equal(t, "pgx", Postgres.DriverName())
	assert.Equal(t, "sqlite", SQLite.DriverName())
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", Placeholders(1, 3))
	assert.Equal(t, "$4", Placeholders(4, 1))
	assert.Equal(t, "", Placeholders(1, 0))
}
