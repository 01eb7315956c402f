// Package storage writes reconciled tables to a relational store with
// all-or-nothing replace semantics.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rewired-gh/comparisonsync/internal/logger"
	"github.com/rewired-gh/comparisonsync/internal/models"
)

// SinkError reports a failed write. The transaction was rolled back before it was returned.
type SinkError struct {
	Op  string
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink error (%s): %v", e.Op, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// Sink is a handle on the destination database. It is opened once per run and
// closed by the caller.
type Sink struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the database identified by dsn and verifies it is reachable.
// postgres:// and postgresql:// (optionally with a +driver suffix) select
// Postgres; sqlite://, file: and :memory: select SQLite.
func Open(ctx context.Context, dsn string) (*Sink, error) {
	driverName, source, d, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}

	if sqlitePath, ok := d.(sqliteDialect); ok && sqlitePath.path != "" {
		if err := os.MkdirAll(filepath.Dir(sqlitePath.path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, ok := d.(sqliteDialect); ok {
		db.SetMaxOpenConns(1) // single writer; also keeps :memory: on one connection
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := d.init(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize %s: %w", d.name(), err)
	}

	return &Sink{db: db, dialect: d}, nil
}

// Close closes the underlying database handle.
func (s *Sink) Close() error {
	return s.db.Close()
}

// Dialect names the backing engine ("postgres" or "sqlite").
func (s *Sink) Dialect() string {
	return s.dialect.name()
}

// ReplaceTable replaces namespace.name with table inside one transaction on a
// dedicated connection: the namespace is created if absent, the old table is
// dropped and recreated, and every row is inserted before commit. On any
// failure the transaction is rolled back and a *SinkError is returned, leaving
// the previous table (or its absence) untouched.
func (s *Sink) ReplaceTable(ctx context.Context, namespace, name string, table models.Table) error {
	if namespace == "" || name == "" {
		return &SinkError{Op: "validate", Err: errors.New("namespace and table name are required")}
	}
	if len(table.Columns) == 0 {
		return &SinkError{Op: "validate", Err: errors.New("table has no columns")}
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return &SinkError{Op: "connect", Err: err}
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return &SinkError{Op: "begin", Err: err}
	}

	if op, err := s.replace(ctx, tx, namespace, name, table); err != nil {
		rollback(tx, namespace, name)
		logger.Error("Replacing %s.%s failed during %s, rolled back: %v", namespace, name, op, err)
		return &SinkError{Op: op, Err: err}
	}

	if err := tx.Commit(); err != nil {
		logger.Error("Commit of %s.%s failed: %v", namespace, name, err)
		return &SinkError{Op: "commit", Err: err}
	}
	logger.Debug("Replaced %s.%s with %d rows", namespace, name, len(table.Rows))
	return nil
}

// rollback aborts tx. A transaction already rolled back by a cancelled context
// reports sql.ErrTxDone, which is not a failure.
func rollback(tx *sql.Tx, namespace, name string) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Error("Rollback of %s.%s failed: %v", namespace, name, err)
	}
}

func (s *Sink) replace(ctx context.Context, tx *sql.Tx, namespace, name string, table models.Table) (string, error) {
	d := s.dialect

	if err := d.ensureNamespace(ctx, tx, namespace); err != nil {
		return "create namespace", err
	}

	qualified := d.qualify(namespace, name)
	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+qualified); err != nil {
		return "drop table", err
	}

	defs := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		defs[i] = d.quote(c.Name) + " " + d.columnType(c.Kind)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %s (%s)`, qualified, strings.Join(defs, ", "))); err != nil {
		return "create table", err
	}

	if err := d.insert(ctx, tx, namespace, name, table.ColumnNames(), table.Rows); err != nil {
		return "insert", err
	}
	return "", nil
}

func checkRow(i int, row []any, width int) error {
	if len(row) != width {
		return fmt.Errorf("row %d has %d values, want %d", i, len(row), width)
	}
	return nil
}

func parseDSN(dsn string) (driverName, source string, d dialect, err error) {
	switch {
	case dsn == "":
		return "", "", nil, errors.New("empty database connection string")
	case dsn == ":memory:", strings.HasPrefix(dsn, "file:"):
		return "sqlite", dsn, sqliteDialect{}, nil
	case strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname="):
		// libpq key/value form
		return "postgres", dsn, postgresDialect{}, nil
	}

	i := strings.Index(dsn, "://")
	if i < 0 {
		return "", "", nil, fmt.Errorf("unsupported database connection string %q", redact(dsn))
	}
	scheme, _, _ := strings.Cut(dsn[:i], "+")
	rest := dsn[i+len("://"):]

	switch scheme {
	case "postgres", "postgresql":
		return "postgres", "postgres://" + rest, postgresDialect{}, nil
	case "sqlite":
		if rest == "" || rest == "/:memory:" {
			return "sqlite", ":memory:", sqliteDialect{}, nil
		}
		path := strings.TrimPrefix(rest, "/")
		return "sqlite", path, sqliteDialect{path: path}, nil
	default:
		return "", "", nil, fmt.Errorf("unsupported database scheme %q", scheme)
	}
}

// redact hides everything after the scheme, which may carry credentials.
func redact(dsn string) string {
	if len(dsn) > 12 {
		return dsn[:12] + "..."
	}
	return dsn
}
