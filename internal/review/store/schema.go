package store

import _ "embed"

// SchemaDDL is the ledger's PostgreSQL schema.
//
//go:embed schema.sql
var SchemaDDL string
