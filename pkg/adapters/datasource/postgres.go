package datasource

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresAdapter implements Adapter over a pgx connection pool.
type PostgresAdapter struct {
	pool       *pgxpool.Pool
	schemaName string
	logger     *zap.Logger
}

// NewPostgresAdapter connects to PostgreSQL. schemaName scopes
// introspection; empty means "public". If logger is nil, a no-op logger
// is used.
func NewPostgresAdapter(ctx context.Context, connString, schemaName string, logger *zap.Logger) (*PostgresAdapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schemaName == "" {
		schemaName = "public"
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &PostgresAdapter{
		pool:       pool,
		schemaName: schemaName,
		logger:     logger.Named("postgres"),
	}, nil
}

func (a *PostgresAdapter) Ping(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// ListTables returns base tables in the configured schema. Row counts
// come from planner statistics (pg_class.reltuples), which is close
// enough for prompt context and avoids a COUNT(*) per table.
func (a *PostgresAdapter) ListTables(ctx context.Context) ([]Table, error) {
	const query = `
		SELECT
			t.table_schema,
			t.table_name,
			COALESCE(c.reltuples::bigint, 0) AS row_count
		FROM information_schema.tables t
		LEFT JOIN pg_class c ON c.relname = t.table_name
		LEFT JOIN pg_namespace n ON n.oid = c.relnamespace AND n.nspname = t.table_schema
		WHERE t.table_type = 'BASE TABLE'
		  AND t.table_schema = $1
		ORDER BY t.table_name
	`

	rows, err := a.pool.Query(ctx, query, a.schemaName)
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
func (a *PostgresAdapter) ListColumns(ctx context.Context, table string) ([]Column, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' AS is_nullable,
			COALESCE(pk.is_pk, false) AS is_primary
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT kcu.column_name, true AS is_pk
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
			  AND tc.table_schema = $1
			  AND tc.table_name = $2
		) pk ON c.column_name = pk.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := a.pool.Query(ctx, query, a.schemaName, table)
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

// SampleRows returns up to limit rows. The table name is identifier
// quoted; the limit is interpolated as an integer, never as user text.
func (a *PostgresAdapter) SampleRows(ctx context.Context, table string, limit int) (*QueryResult, error) {
	if limit <= 0 {
		limit = 5
	}
	tableRef := pgx.Identifier{a.schemaName, table}.Sanitize()
	return a.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", tableRef, limit))
}

// Query runs a SELECT statement and collects the full result set.
func (a *PostgresAdapter) Query(ctx context.Context, sqlQuery string) (*QueryResult, error) {
	rows, err := a.pool.Query(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return &QueryResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

func (a *PostgresAdapter) Close() error {
	a.pool.Close()
	return nil
}

var _ Adapter = (*PostgresAdapter)(nil)
