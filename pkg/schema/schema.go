// Package schema discovers the structure of a data source and caches it
// with a TTL. The cached snapshot feeds two consumers: prompt context for
// SQL generation and the allowlist policy the validator enforces. The TTL
// bounds how stale the allowlist can get relative to the live schema.
package schema

import (
	"fmt"
	"time"
)

// ColumnSchema describes one column of a discovered table.
type ColumnSchema struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
	IsPrimary  bool   `json:"is_primary"`
}

// TableSchema describes one discovered table with optional sample rows.
type TableSchema struct {
	Name       string           `json:"name"`
	Schema     string           `json:"schema"`
	RowCount   int64            `json:"row_count"`
	Columns    []ColumnSchema   `json:"columns"`
	SampleRows []map[string]any `json:"sample_rows,omitempty"`
}

// Snapshot is one immutable discovery result. Callers must not mutate it;
// the service hands the same snapshot to concurrent readers.
type Snapshot struct {
	Tables       []TableSchema `json:"tables"`
	DiscoveredAt time.Time     `json:"discovered_at"`
	// Truncated is set when discovery found more tables than the
	// configured maximum and the excess was dropped.
	Truncated bool `json:"truncated"`
}

// Table returns the named table from the snapshot, case-sensitive on the
// discovered name.
func (s *Snapshot) Table(name string) (*TableSchema, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// DiscoveryError wraps a failure during schema discovery with the stage
// it happened in.
type DiscoveryError struct {
	Stage string
	Err   error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("schema discovery failed during %s: %v", e.Stage, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}
