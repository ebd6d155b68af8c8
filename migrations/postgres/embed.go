// Package migrations embeds the PostgreSQL schema for grantd.
package migrations

import "embed"

// FS contains the *_up.sql migrations, applied in lexical order.
//
//go:embed sql/*.sql
var FS embed.FS

// Dir is the directory within FS where migrations live.
const Dir = "sql"
