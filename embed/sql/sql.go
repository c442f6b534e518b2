package sql

import _ "embed"

// Schema is the full database schema applied by db.Init.
//
//go:embed schema.sql
var Schema string
