// Package migrations holds the schema migrations applied by bun/migrate.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the ordered set registered by the numbered files in this package.
var Migrations = migrate.NewMigrations()
