// Package migrations embeds the SQLite schema migrations so the binary can migrate
// without a migrations directory on disk.
package migrations

import "embed"

// FS holds the NNN_name.sql migration files
//
//go:embed *.sql
var FS embed.FS
