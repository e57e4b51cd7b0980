package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const (
	projectAliasFingerprintKey     = "project_aliases_fingerprint"
	transactionAliasFingerprintKey = "transaction_aliases_fingerprint"
)

// AliasEntry maps a short alias to one project. Aliases are stored lowercase
// and looked up case-insensitively.
type AliasEntry struct {
	Alias       string
	OrgSlug     string
	ProjectSlug string
}

// TransactionAliasEntry is the transaction-listing counterpart of AliasEntry.
type TransactionAliasEntry struct {
	Alias           string
	OrgSlug         string
	ProjectSlug     string
	TransactionName string
}

// SetProjectAliases atomically replaces the whole alias table. Prior aliases
// are never merged in. fingerprint records the detection state that produced
// the aliases; pass "" for resolutions with no detection fingerprint.
func (s *Store) SetProjectAliases(ctx context.Context, entries []AliasEntry, fingerprint string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM project_aliases`); err != nil {
			return fmt.Errorf("failed to clear project aliases: %w", err)
		}
		for _, e := range entries {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO project_aliases (alias, org_slug, project_slug) VALUES (?, ?, ?)`,
				strings.ToLower(e.Alias), e.OrgSlug, e.ProjectSlug)
			if err != nil {
				return fmt.Errorf("failed to insert alias %q: %w", e.Alias, err)
			}
		}
		return setFingerprintTx(ctx, tx, projectAliasFingerprintKey, fingerprint)
	})
}

// ClearProjectAliases drops the alias table and its fingerprint. Used when a
// run resolves a single target.
func (s *Store) ClearProjectAliases(ctx context.Context) error {
	return s.SetProjectAliases(ctx, nil, "")
}

// GetProjectAlias resolves an alias case-insensitively. When the caller
// supplies a fingerprint and the stored one differs, the alias is rejected:
// the detection state that produced it no longer holds. Stored tables
// without a fingerprint (legacy rows) pass any caller fingerprint.
func (s *Store) GetProjectAlias(ctx context.Context, alias, fingerprint string) (*AliasEntry, error) {
	if fingerprint != "" {
		stored, ok, err := s.GetMetadata(ctx, projectAliasFingerprintKey)
		if err != nil {
			return nil, err
		}
		if ok && stored != fingerprint {
			return nil, nil
		}
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT alias, org_slug, project_slug FROM project_aliases WHERE alias = ?`,
		strings.ToLower(alias))
	var e AliasEntry
	err := row.Scan(&e.Alias, &e.OrgSlug, &e.ProjectSlug)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up alias %q: %w", alias, err)
	}
	return &e, nil
}

// ListProjectAliases returns the alias table ordered by alias.
func (s *Store) ListProjectAliases(ctx context.Context) ([]AliasEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT alias, org_slug, project_slug FROM project_aliases ORDER BY alias`)
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []AliasEntry
	for rows.Next() {
		var e AliasEntry
		if err := rows.Scan(&e.Alias, &e.OrgSlug, &e.ProjectSlug); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetTransactionAliases atomically replaces the transaction alias table,
// mirroring SetProjectAliases.
func (s *Store) SetTransactionAliases(ctx context.Context, entries []TransactionAliasEntry, fingerprint string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transaction_aliases`); err != nil {
			return fmt.Errorf("failed to clear transaction aliases: %w", err)
		}
		for _, e := range entries {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO transaction_aliases (alias, org_slug, project_slug, transaction_name) VALUES (?, ?, ?, ?)`,
				strings.ToLower(e.Alias), e.OrgSlug, e.ProjectSlug, e.TransactionName)
			if err != nil {
				return fmt.Errorf("failed to insert transaction alias %q: %w", e.Alias, err)
			}
		}
		return setFingerprintTx(ctx, tx, transactionAliasFingerprintKey, fingerprint)
	})
}

// GetTransactionAlias resolves a transaction alias with the same fingerprint
// gating as GetProjectAlias.
func (s *Store) GetTransactionAlias(ctx context.Context, alias, fingerprint string) (*TransactionAliasEntry, error) {
	if fingerprint != "" {
		stored, ok, err := s.GetMetadata(ctx, transactionAliasFingerprintKey)
		if err != nil {
			return nil, err
		}
		if ok && stored != fingerprint {
			return nil, nil
		}
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT alias, org_slug, project_slug, transaction_name FROM transaction_aliases WHERE alias = ?`,
		strings.ToLower(alias))
	var e TransactionAliasEntry
	err := row.Scan(&e.Alias, &e.OrgSlug, &e.ProjectSlug, &e.TransactionName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up transaction alias %q: %w", alias, err)
	}
	return &e, nil
}

func setFingerprintTx(ctx context.Context, tx *sql.Tx, key, fingerprint string) error {
	if fingerprint == "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key); err != nil {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, fingerprint)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}
