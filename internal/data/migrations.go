package data

import (
	"context"
	"database/sql"

	"github.com/target/mmk-items-api/internal/migrate"
)

// RunMigrations applies the embedded schema by delegating to the migrate package.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate.Run(ctx, db)
}

// MigrationStatus lists embedded migrations and whether each has been applied.
func MigrationStatus(ctx context.Context, db *sql.DB) ([]migrate.Status, error) {
	return migrate.List(ctx, db)
}
