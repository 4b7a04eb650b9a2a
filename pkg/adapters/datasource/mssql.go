package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"
)

// MSSQLAdapter implements Adapter for SQL Server via database/sql.
type MSSQLAdapter struct {
	db         *sql.DB
	schemaName string
	logger     *zap.Logger
}

// NewMSSQLAdapter connects to SQL Server. schemaName scopes
// introspection; empty means "dbo". If logger is nil, a no-op logger is
// used.
func NewMSSQLAdapter(connString, schemaName string, logger *zap.Logger) (*MSSQLAdapter, error) {
	db, err := sql.Open("sqlserver", connString)
	if err != nil {
		return nil, fmt.Errorf("open sqlserver connection: %w", err)
	}
	return newMSSQLAdapter(db, schemaName, logger), nil
}

func newMSSQLAdapter(db *sql.DB, schemaName string, logger *zap.Logger) *MSSQLAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schemaName == "" {
		schemaName = "dbo"
	}
	return &MSSQLAdapter{
		db:         db,
		schemaName: schemaName,
		logger:     logger.Named("mssql"),
	}
}

func (a *MSSQLAdapter) Ping(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlserver: %w", err)
	}
	return nil
}

// ListTables returns user tables in the configured schema with row counts
// from partition metadata.
func (a *MSSQLAdapter) ListTables(ctx context.Context) ([]Table, error) {
	const query = `
		SELECT
			SCHEMA_NAME(t.schema_id) AS table_schema,
			t.name AS table_name,
			SUM(p.rows) AS row_count
		FROM sys.tables t
		INNER JOIN sys.partitions p ON t.object_id = p.object_id
		WHERE p.index_id IN (0, 1)
		  AND t.is_ms_shipped = 0
		  AND SCHEMA_NAME(t.schema_id) = @schema
		GROUP BY t.schema_id, t.name
		ORDER BY table_name
	`

	rows, err := a.db.QueryContext(ctx, query, sql.Named("schema", a.schemaName))
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

// ListColumns returns columns for a table in ordinal order.
func (a *MSSQLAdapter) ListColumns(ctx context.Context, table string) ([]Column, error) {
	const query = `
		SELECT
			c.name AS column_name,
			tp.name AS data_type,
			c.is_nullable,
			CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_primary
		FROM sys.columns c
		INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
		LEFT JOIN (
			SELECT ic.object_id, ic.column_id
			FROM sys.index_columns ic
			INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
			WHERE i.is_primary_key = 1
		) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
		WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
		ORDER BY c.column_id
	`

	rows, err := a.db.QueryContext(ctx, query,
		sql.Named("schema", a.schemaName),
		sql.Named("table", table),
	)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable, &c.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return columns, nil
}

// SampleRows returns up to limit rows using TOP.
func (a *MSSQLAdapter) SampleRows(ctx context.Context, table string, limit int) (*QueryResult, error) {
	if limit <= 0 {
		limit = 5
	}
	tableRef := quoteBracket(a.schemaName) + "." + quoteBracket(table)
	return a.Query(ctx, fmt.Sprintf("SELECT TOP (%d) * FROM %s", limit, tableRef))
}

// Query runs a SELECT statement and collects the full result set.
func (a *MSSQLAdapter) Query(ctx context.Context, sqlQuery string) (*QueryResult, error) {
	rows, err := a.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	return collectRows(rows)
}

func (a *MSSQLAdapter) Close() error {
	return a.db.Close()
}

// quoteBracket quotes an identifier SQL Server style, doubling any
// closing brackets in the name.
func quoteBracket(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

var _ Adapter = (*MSSQLAdapter)(nil)
