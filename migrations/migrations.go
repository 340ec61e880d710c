// Package migrations embeds the SQL schema used by the postgres document
// store backend.
package migrations

import "embed"

// FS holds every NNN_name.sql migration file.
//
//go:embed *.sql
var FS embed.FS
