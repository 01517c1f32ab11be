package migration

import "embed"

const migrationsDir = "migrations"

// Up-only migrations, applied in lexical order at startup.
//
//go:embed migrations/*.up.sql
var embeddedMigrations embed.FS
