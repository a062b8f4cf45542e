// Package migrations embeds the blog service schema.
package migrations

import "embed"

// FS holds the .up.sql files applied by database.RunMigrations.
//
//go:embed *.sql
var FS embed.FS
