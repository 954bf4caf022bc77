// Package migrations embeds the engine schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
