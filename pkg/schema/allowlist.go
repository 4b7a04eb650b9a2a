package schema

import (
	"github.com/askdb-inc/askdb-engine/pkg/config"
	"github.com/askdb-inc/askdb-engine/pkg/policy"
)

// BuildPolicy derives an allowlist policy from a discovered snapshot:
// every table in the snapshot is queryable and only its discovered
// columns are referenceable. Limits come from validator configuration;
// keywords and functions use the package defaults.
func BuildPolicy(snapshot *Snapshot, cfg config.ValidatorConfig) *policy.Policy {
	def := policy.Definition{
		AllowedTables:  make([]string, 0, len(snapshot.Tables)),
		AllowedColumns: make(map[string][]string, len(snapshot.Tables)),
		Limits: policy.Limits{
			MaxRowLimit:     cfg.MaxRowLimit,
			RequireLimit:    cfg.RequireLimit,
			AllowJoins:      cfg.AllowJoins,
			AllowSubqueries: cfg.AllowSubqueries,
		},
	}

	for _, t := range snapshot.Tables {
		def.AllowedTables = append(def.AllowedTables, t.Name)
		columns := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			columns = append(columns, c.Name)
		}
		def.AllowedColumns[t.Name] = columns
	}

	return policy.New(def)
}
