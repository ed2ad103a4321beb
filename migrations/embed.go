// Package migrations embeds the SQL schema migrations applied by
// database.RunMigrations and cmd/migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
