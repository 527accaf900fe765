// Package migrations embeds the schema files applied at startup.
package migrations

import "embed"

// Files holds the SQL migrations, named with a numeric prefix
// (001_init.sql, 002_...) so the runner applies them in order.
//
//go:embed *.sql
var Files embed.FS
