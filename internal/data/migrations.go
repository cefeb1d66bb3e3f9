package data

import (
	"context"
	"database/sql"

	"github.com/target/caption-pipeline/internal/data/database"
	"github.com/target/caption-pipeline/internal/migrate"
)

// RunMigrations executes the schema migrations for the dialect by delegating to the migrate package.
func RunMigrations(ctx context.Context, db *sql.DB, dialect database.Dialect) error {
	return migrate.Run(ctx, db, dialect)
}
