package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateAuthManualColumn adds the manual column to the auth table. The
// column marks tokens pasted by the user, which must not be auto-refreshed.
// Legacy rows default to 0 (OAuth-issued).
func MigrateAuthManualColumn(db *sql.DB) error {
	exists, err := columnExists(db, "auth", "manual")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = db.Exec(`ALTER TABLE auth ADD COLUMN manual INTEGER NOT NULL DEFAULT 0`)
	if err != nil {
		return fmt.Errorf("failed to add manual column: %w", err)
	}
	return nil
}
