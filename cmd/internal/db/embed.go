// Package db holds the embedded SQL migrations for the sole schema.
package db

import "embed"

// MigrationFS contains the versioned SQL migration files.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
