// Package db embeds the SQL migrations applied by storage.Migrate.
package db

import "embed"

// Migrations holds the goose migration files under "migrations".
//
//go:embed migrations/*.sql
var Migrations embed.FS
