package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/guttosm/flexpulse/db"
)

const migrationsDir = "migrations"

// Migrate applies the embedded goose migrations to db.
//
// Behavior:
//   - Uses the postgres dialect.
//   - Applies every pending migration in version order.
//   - Is safe to call on an up-to-date schema.
func Migrate(ctx context.Context, conn *sql.DB) error {
	goose.SetBaseFS(db.Migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, conn, migrationsDir); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
