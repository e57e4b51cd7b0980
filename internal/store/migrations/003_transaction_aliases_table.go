package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateTransactionAliasesTable creates the transaction_aliases table for
// stores created before transaction listings learned aliases. Mirrors the
// project_aliases shape plus the originating transaction name.
func MigrateTransactionAliasesTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transaction_aliases (
			alias TEXT PRIMARY KEY,
			org_slug TEXT NOT NULL DEFAULT '',
			project_slug TEXT NOT NULL DEFAULT '',
			transaction_name TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create transaction_aliases: %w", err)
	}
	return nil
}
