package migrations

import "embed"

// Migrations holds the embedded SQL migration files, applied in order by
// golang-migrate at startup.
//
//go:embed *.sql
var Migrations embed.FS
