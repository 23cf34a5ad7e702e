// Package db embeds the schema migrations and the sample catalog.
package db

import "embed"

// Migrations holds the SQL files under migrations/, applied in name order.
// Every file is idempotent.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// SeedCatalog is the sample price list and discount set loaded by seed-db
// when no seed file is given.
//
//go:embed seed/catalog.json
var SeedCatalog []byte
