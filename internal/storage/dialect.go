package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/comparisonsync/internal/models"
)

// dialect isolates the engine-specific SQL of the sink.
type dialect interface {
	name() string
	init(ctx context.Context, db *sql.DB) error
	ensureNamespace(ctx context.Context, tx *sql.Tx, namespace string) error
	qualify(namespace, table string) string
	quote(ident string) string
	columnType(kind models.ColumnKind) string
	insert(ctx context.Context, tx *sql.Tx, namespace, table string, cols []string, rows [][]any) error
}

// postgresDialect maps namespaces to schemas and bulk-loads with COPY.
type postgresDialect struct{}

func (postgresDialect) name() string { return "postgres" }

func (postgresDialect) init(context.Context, *sql.DB) error { return nil }

func (d postgresDialect) ensureNamespace(ctx context.Context, tx *sql.Tx, namespace string) error {
	_, err := tx.ExecContext(ctx, d.createSchema(namespace))
	return err
}

func (d postgresDialect) createSchema(namespace string) string {
	return `CREATE SCHEMA IF NOT EXISTS ` + d.quote(namespace)
}

func (postgresDialect) copyStatement(namespace, table string, cols []string) string {
	return pq.CopyInSchema(namespace, table, cols...)
}

func (d postgresDialect) qualify(namespace, table string) string {
	return d.quote(namespace) + "." + d.quote(table)
}

func (postgresDialect) quote(ident string) string { return pq.QuoteIdentifier(ident) }

func (postgresDialect) columnType(kind models.ColumnKind) string {
	switch kind {
	case models.KindFloat:
		return "DOUBLE PRECISION"
	case models.KindBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func (d postgresDialect) insert(ctx context.Context, tx *sql.Tx, namespace, table string, cols []string, rows [][]any) error {
	stmt, err := tx.PrepareContext(ctx, d.copyStatement(namespace, table, cols))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if err := checkRow(i, row, len(cols)); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("failed to copy row %d: %w", i, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	return nil
}

// sqliteDialect has no schemas: namespaces are recorded in a registry table
// and prefix the physical table name.
type sqliteDialect struct {
	path string
}

const namespaceRegistry = "namespaces"

func (sqliteDialect) name() string { return "sqlite" }

func (d sqliteDialect) init(ctx context.Context, db *sql.DB) error {
	if d.path == "" {
		return nil
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout=5000`); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return nil
}

func (d sqliteDialect) ensureNamespace(ctx context.Context, tx *sql.Tx, namespace string) error {
	registry := d.quote(namespaceRegistry)
	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+registry+` (name TEXT PRIMARY KEY)`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO `+registry+` (name) VALUES (?)`, namespace)
	return err
}

func (d sqliteDialect) qualify(namespace, table string) string {
	return d.quote(namespace + "__" + table)
}

func (sqliteDialect) quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (sqliteDialect) columnType(kind models.ColumnKind) string {
	switch kind {
	case models.KindFloat:
		return "REAL"
	case models.KindBool:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func (d sqliteDialect) insert(ctx context.Context, tx *sql.Tx, namespace, table string, cols []string, rows [][]any) error {
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.quote(c)
		marks[i] = "?"
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		d.qualify(namespace, table), strings.Join(quoted, ", "), strings.Join(marks, ", "))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if err := checkRow(i, row, len(cols)); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}
	return nil
}
