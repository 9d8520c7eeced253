package db

import _ "embed"

// Schema creates the match tables, the outbox and its notify trigger. Every
// statement is idempotent.
//
//go:embed schema.sql
var Schema string
