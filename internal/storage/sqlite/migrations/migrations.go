// Package migrations embeds the SQLite schema migrations. The files are
// applied in lexical order by sqlite.MigrateUp, which expects them at the
// root of the FS.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
