// Package migrations holds one-shot schema migrations for the spyglass
// store. Each migration probes before it alters, so the whole chain is
// idempotent and safe to re-run on every open.
package migrations

import (
	"database/sql"
	"fmt"
)

type migration struct {
	name string
	run  func(db *sql.DB) error
}

// Old stores predate some columns and tables; keep the chain append-only.
var all = []migration{
	{"002_auth_manual_column", MigrateAuthManualColumn},
	{"003_transaction_aliases_table", MigrateTransactionAliasesTable},
}

// Run executes every migration in order. Probe-first migrations make this a
// no-op on a current database.
func Run(db *sql.DB) error {
	for _, m := range all {
		if err := m.run(db); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	return nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) > 0 FROM pragma_table_info('%s') WHERE name = ?`, table)
	var exists bool
	if err := db.QueryRow(q, column).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s.%s: %w", table, column, err)
	}
	return exists, nil
}
