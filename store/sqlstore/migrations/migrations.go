// Package migrations embeds the SQL schema for the sqlstore backend.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
