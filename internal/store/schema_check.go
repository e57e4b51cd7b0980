package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SchemaIssueKind distinguishes the two repairable defect classes.
type SchemaIssueKind int

const (
	// MissingTable means a required table does not exist.
	MissingTable SchemaIssueKind = iota
	// MissingColumn means a required column is absent from an existing table.
	MissingColumn
)

// SchemaIssue is one defect found by SchemaIssues.
type SchemaIssue struct {
	Kind   SchemaIssueKind
	Table  string
	Column string // empty for MissingTable
}

func (i SchemaIssue) String() string {
	if i.Kind == MissingTable {
		return "missing table " + i.Table
	}
	return "missing column " + i.Table + "." + i.Column
}

// RepairReport records what RepairSchema changed and what it could not.
type RepairReport struct {
	Fixed  []string
	Failed []string
}

// columnSpec declares a required column and the default used when ALTER-adding
// it to a legacy table. Adding a column with a default is non-destructive:
// prior rows keep their data and read the default for the new column.
type columnSpec struct {
	name string
	ddl  string // type + default clause
}

// tableColumns is the declarative schema catalog used by SchemaIssues and
// RepairSchema. It must stay in sync with the CREATE statements in schema.go.
var tableColumns = map[string][]columnSpec{
	"schema_version": {
		{"version", "INTEGER NOT NULL DEFAULT 0"},
	},
	"auth": {
		{"key", "TEXT NOT NULL DEFAULT 'default'"},
		{"access_token", "TEXT NOT NULL DEFAULT ''"},
		{"refresh_token", "TEXT NOT NULL DEFAULT ''"},
		{"token_type", "TEXT NOT NULL DEFAULT 'bearer'"},
		{"expires_at", "TEXT NOT NULL DEFAULT ''"},
		{"manual", "INTEGER NOT NULL DEFAULT 0"},
	},
	"defaults": {
		{"key", "TEXT NOT NULL DEFAULT ''"},
		{"value", "TEXT NOT NULL DEFAULT ''"},
	},
	"project_cache": {
		{"org_id", "TEXT NOT NULL DEFAULT ''"},
		{"project_id", "TEXT NOT NULL DEFAULT ''"},
		{"org_slug", "TEXT NOT NULL DEFAULT ''"},
		{"project_slug", "TEXT NOT NULL DEFAULT ''"},
		{"org_name", "TEXT NOT NULL DEFAULT ''"},
		{"project_name", "TEXT NOT NULL DEFAULT ''"},
		{"cached_at", "TEXT NOT NULL DEFAULT ''"},
	},
	"dsn_cache": {
		{"public_key", "TEXT NOT NULL DEFAULT ''"},
		{"org_slug", "TEXT NOT NULL DEFAULT ''"},
		{"project_slug", "TEXT NOT NULL DEFAULT ''"},
		{"org_name", "TEXT NOT NULL DEFAULT ''"},
		{"project_name", "TEXT NOT NULL DEFAULT ''"},
		{"cached_at", "TEXT NOT NULL DEFAULT ''"},
	},
	"project_aliases": {
		{"alias", "TEXT NOT NULL DEFAULT ''"},
		{"org_slug", "TEXT NOT NULL DEFAULT ''"},
		{"project_slug", "TEXT NOT NULL DEFAULT ''"},
	},
	"transaction_aliases": {
		{"alias", "TEXT NOT NULL DEFAULT ''"},
		{"org_slug", "TEXT NOT NULL DEFAULT ''"},
		{"project_slug", "TEXT NOT NULL DEFAULT ''"},
		{"transaction_name", "TEXT NOT NULL DEFAULT ''"},
	},
	"metadata": {
		{"key", "TEXT NOT NULL DEFAULT ''"},
		{"value", "TEXT NOT NULL DEFAULT ''"},
	},
	"org_regions": {
		{"org_slug", "TEXT NOT NULL DEFAULT ''"},
		{"region_url", "TEXT NOT NULL DEFAULT ''"},
	},
	"user_info": {
		{"key", "TEXT NOT NULL DEFAULT ''"},
		{"value", "TEXT NOT NULL DEFAULT ''"},
	},
	"instance_info": {
		{"key", "TEXT NOT NULL DEFAULT ''"},
		{"value", "TEXT NOT NULL DEFAULT ''"},
	},
	"project_root_cache": {
		{"root", "TEXT NOT NULL DEFAULT ''"},
		{"identifiers", "TEXT NOT NULL DEFAULT '[]'"},
		{"dir_mtime", "TEXT NOT NULL DEFAULT ''"},
		{"cached_at", "TEXT NOT NULL DEFAULT ''"},
	},
}

// tableOrder keeps repair output deterministic.
var tableOrder = []string{
	"schema_version", "auth", "defaults", "project_cache", "dsn_cache",
	"project_aliases", "metadata", "org_regions", "user_info",
	"instance_info", "project_root_cache", "transaction_aliases",
}

func (s *Store) tableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to probe table %s: %w", table, err)
	}
	return n > 0, nil
}

func (s *Store) columnExists(ctx context.Context, table, column string) (bool, error) {
	// pragma_table_info does not accept bind parameters for the table name.
	q := fmt.Sprintf(`SELECT COUNT(*) FROM pragma_table_info('%s') WHERE name = ?`, table)
	var n int
	if err := s.db.QueryRowContext(ctx, q, column).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to probe column %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}

// SchemaIssues inspects the live database against the schema catalog and
// returns every missing table and column. An empty result means the store is
// structurally current.
func (s *Store) SchemaIssues(ctx context.Context) ([]SchemaIssue, error) {
	var issues []SchemaIssue
	for _, table := range tableOrder {
		exists, err := s.tableExists(ctx, table)
		if err != nil {
			return nil, err
		}
		if !exists {
			issues = append(issues, SchemaIssue{Kind: MissingTable, Table: table})
			continue
		}
		for _, col := range tableColumns[table] {
			has, err := s.columnExists(ctx, table, col.name)
			if err != nil {
				return nil, err
			}
			if !has {
				issues = append(issues, SchemaIssue{Kind: MissingColumn, Table: table, Column: col.name})
			}
		}
	}
	return issues, nil
}

// RepairSchema creates missing tables, ALTER-adds missing columns with their
// declared defaults, and bumps schema_version to the current build. Repair
// never drops anything; columns that cannot be added (type conflicts and the
// like) land in Failed and subsequent reads treat them as absent.
func (s *Store) RepairSchema(ctx context.Context) (*RepairReport, error) {
	issues, err := s.SchemaIssues(ctx)
	if err != nil {
		return nil, err
	}
	report := &RepairReport{}
	for _, issue := range issues {
		switch issue.Kind {
		case MissingTable:
			if err := s.createTable(ctx, issue.Table); err != nil {
				report.Failed = append(report.Failed, fmt.Sprintf("%s: %v", issue, err))
				continue
			}
			report.Fixed = append(report.Fixed, issue.String())
		case MissingColumn:
			spec, ok := lookupColumn(issue.Table, issue.Column)
			if !ok {
				report.Failed = append(report.Failed, issue.String()+": no column spec")
				continue
			}
			ddl := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, issue.Table, spec.name, spec.ddl)
			if _, err := s.db.ExecContext(ctx, ddl); err != nil {
				report.Failed = append(report.Failed, fmt.Sprintf("%s: %v", issue, err))
				continue
			}
			report.Fixed = append(report.Fixed, issue.String())
		}
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE schema_version SET version = ?`, SchemaVersion); err != nil {
		report.Failed = append(report.Failed, fmt.Sprintf("schema_version update: %v", err))
	}
	if err := s.recordRepairReport(ctx, report); err != nil {
		// The report is advisory; losing it does not fail the repair.
		report.Failed = append(report.Failed, fmt.Sprintf("repair report: %v", err))
	}
	return report, nil
}

// createTable re-runs the relevant CREATE TABLE from the base schema. The
// statements are all IF NOT EXISTS, so running the whole block is safe, but
// extracting one keeps repair output attributable.
func (s *Store) createTable(ctx context.Context, table string) error {
	marker := "CREATE TABLE IF NOT EXISTS " + table + " ("
	start := strings.Index(schema, marker)
	if start < 0 {
		return fmt.Errorf("no schema definition for table %s", table)
	}
	end := strings.Index(schema[start:], ";")
	if end < 0 {
		return fmt.Errorf("unterminated schema definition for table %s", table)
	}
	_, err := s.db.ExecContext(ctx, schema[start:start+end+1])
	return err
}

func lookupColumn(table, column string) (columnSpec, bool) {
	for _, spec := range tableColumns[table] {
		if spec.name == column {
			return spec, true
		}
	}
	return columnSpec{}, false
}

func (s *Store) recordRepairReport(ctx context.Context, report *RepairReport) error {
	value := fmt.Sprintf("fixed=%d failed=%d at=%s", len(report.Fixed), len(report.Failed), nowUTC())
	return s.SetMetadata(ctx, "last_schema_repair", value)
}

// queryRowString scans a single TEXT value, mapping sql.ErrNoRows to ("", false).
func (s *Store) queryRowString(ctx context.Context, query string, args ...any) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
