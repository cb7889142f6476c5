// Package db embeds the SQL schema migrations and seed data.
package db

import "embed"

//go:embed migrations seeds
var FS embed.FS
