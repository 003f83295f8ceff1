package migrations

import "embed"

// FS contains embedded SQLite migrations for party overview storage.
//
//go:embed *.sql
var FS embed.FS
