// Package migrations embeds the portal schema migrations.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
