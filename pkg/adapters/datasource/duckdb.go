package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
	"go.uber.org/zap"
)

// DuckDBAdapter implements Adapter for an embedded DuckDB database. Handy
// for local analytics files and for running the full pipeline without a
// server.
type DuckDBAdapter struct {
	db         *sql.DB
	schemaName string
	logger     *zap.Logger
}

// NewDuckDBAdapter opens a DuckDB database file. An empty path opens an
// in-memory database. schemaName defaults to "main". If logger is nil, a
// no-op logger is used.
func NewDuckDBAdapter(path, schemaName string, logger *zap.Logger) (*DuckDBAdapter, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb database: %w", err)
	}
	return newDuckDBAdapter(db, schemaName, logger), nil
}

func newDuckDBAdapter(db *sql.DB, schemaName string, logger *zap.Logger) *DuckDBAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schemaName == "" {
		schemaName = "main"
	}
	return &DuckDBAdapter{
		db:         db,
		schemaName: schemaName,
		logger:     logger.Named("duckdb"),
	}
}

func (a *DuckDBAdapter) Ping(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping duckdb: %w", err)
	}
	return nil
}

// ListTables returns base tables in the configured schema with estimated
// row counts from the catalog.
func (a *DuckDBAdapter) ListTables(ctx context.Context) ([]Table, error) {
	const query = `
		SELECT schema_name, table_name, estimated_size
		FROM duckdb_tables()
		WHERE schema_name = ?
		ORDER BY table_name
	`

	rows, err := a.db.QueryContext(ctx, query, a.schemaName)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Schema, &t.Name, &t.RowCount); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	return tables, nil
}

// ListColumns returns columns for a table in ordinal order. DuckDB does
// not expose primary keys through information_schema, so IsPrimary is
// always false here.
func (a *DuckDBAdapter) ListColumns(ctx context.Context, table string) ([]Column, error) {
	const query = `
		SELECT column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`

	rows, err := a.db.QueryContext(ctx, query, a.schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return columns, nil
}

// SampleRows returns up to limit rows.
func (a *DuckDBAdapter) SampleRows(ctx context.Context, table string, limit int) (*QueryResult, error) {
	if limit <= 0 {
		limit = 5
	}
	tableRef := quoteDouble(a.schemaName) + "." + quoteDouble(table)
	return a.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", tableRef, limit))
}

// Query runs a SELECT statement and collects the full result set.
func (a *DuckDBAdapter) Query(ctx context.Context, sqlQuery string) (*QueryResult, error) {
	rows, err := a.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	return collectRows(rows)
}

func (a *DuckDBAdapter) Close() error {
	return a.db.Close()
}

// quoteDouble quotes an identifier with double quotes, doubling any
// embedded quotes.
func quoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var _ Adapter = (*DuckDBAdapter)(nil)
