// Package datasource provides read-only adapters for the relational
// sources queries run against. Adapters expose schema introspection for
// allowlist derivation and bounded execution of validated SQL.
package datasource

import "context"

// Table describes a discovered table.
type Table struct {
	Schema   string `json:"schema"`
	Name     string `json:"name"`
	RowCount int64  `json:"row_count"`
}

// Column describes a discovered column.
type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
	IsPrimary  bool   `json:"is_primary"`
}

// QueryResult contains the results of a SQL query execution.
type QueryResult struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// Introspector extracts schema information from a data source.
type Introspector interface {
	// ListTables returns all user tables, excluding system schemas.
	ListTables(ctx context.Context) ([]Table, error)

	// ListColumns returns columns for a specific table in ordinal order.
	ListColumns(ctx context.Context, table string) ([]Column, error)

	// SampleRows returns up to limit rows from a table, for prompt context.
	SampleRows(ctx context.Context, table string, limit int) (*QueryResult, error)
}

// Adapter is a full data source connection. Each implementation owns its
// connection and must be closed when done.
type Adapter interface {
	Introspector

	// Ping verifies the source is reachable with valid credentials.
	Ping(ctx context.Context) error

	// Query runs a validated SELECT statement and returns results. The
	// statement must already carry its row limit; adapters do not rewrite.
	Query(ctx context.Context, sqlQuery string) (*QueryResult, error)

	// Close releases the connection.
	Close() error
}
