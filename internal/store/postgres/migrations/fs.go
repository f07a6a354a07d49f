// Package migrations embeds the goose SQL migration set for the
// accounts/characters/realms schema, the same embed.FS-over-sql-files
// shape the teacher's internal/db/migrations package uses.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
