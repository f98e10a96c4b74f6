// Package migrations embeds the goose migration files applied to the
// task store at startup.
package migrations

import "embed"

//go:embed migrations/*.sql
var FS embed.FS
