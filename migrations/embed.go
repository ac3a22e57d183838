// Package migrations embeds the SQL schema migrations applied on startup.
package migrations

import "embed"

// FS holds the *.up.sql files, applied in filename order.
//
//go:embed *.sql
var FS embed.FS
