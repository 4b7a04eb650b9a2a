// Package policy defines the allowlist a candidate SQL statement must
// satisfy: tables, per-table columns, blocked keywords, functions, and
// structural limits. A Policy is immutable once built; validation treats
// it as read-only, so one Policy can serve any number of concurrent calls.
package policy

import (
	"sort"
	"strings"
)

// DefaultBlockedKeywords are the statement keywords rejected regardless of
// position in the query.
var DefaultBlockedKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "TRUNCATE", "ALTER",
	"CREATE", "GRANT", "REVOKE", "EXEC", "EXECUTE",
}

// DefaultAllowedFunctions are aggregate and scalar functions permitted in
// SELECT lists. An identifier matching one of these is not treated as a
// column during allowlist checks.
var DefaultAllowedFunctions = []string{
	"COUNT", "SUM", "AVG", "MIN", "MAX",
	"UPPER", "LOWER", "ROUND", "COALESCE", "ABS", "DATE_TRUNC", "EXTRACT",
}

// Limits holds the structural constraints of a policy.
type Limits struct {
	MaxRowLimit     int  `yaml:"max_row_limit"`
	RequireLimit    bool `yaml:"require_limit"`
	AllowJoins      bool `yaml:"allow_joins"`
	AllowSubqueries bool `yaml:"allow_subqueries"`
}

// Definition is the YAML-loadable form of a policy, mirroring the
// allowlist config file layout.
type Definition struct {
	AllowedTables    []string            `yaml:"allowed_tables"`
	AllowedColumns   map[string][]string `yaml:"allowed_columns"`
	BlockedKeywords  []string            `yaml:"blocked_keywords"`
	AllowedFunctions []string            `yaml:"allowed_functions"`
	Limits           Limits              `yaml:"query_limits"`
}

// Policy is the compiled, case-normalized allowlist. Table, column,
// keyword, and function comparisons are case-insensitive; an empty table
// allowlist denies all.
type Policy struct {
	tables    map[string]bool
	columns   map[string]map[string]bool
	colOrder  map[string][]string
	keywords  []string
	functions map[string]bool

	MaxRowLimit     int
	RequireLimit    bool
	AllowJoins      bool
	AllowSubqueries bool
}

// New compiles a Definition into a Policy. Names are normalized to
// uppercase. Zero or negative MaxRowLimit falls back to 10000; empty
// keyword and function lists fall back to the defaults.
func New(def Definition) *Policy {
	p := &Policy{
		tables:          make(map[string]bool, len(def.AllowedTables)),
		columns:         make(map[string]map[string]bool, len(def.AllowedColumns)),
		colOrder:        make(map[string][]string, len(def.AllowedColumns)),
		functions:       make(map[string]bool),
		MaxRowLimit:     def.Limits.MaxRowLimit,
		RequireLimit:    def.Limits.RequireLimit,
		AllowJoins:      def.Limits.AllowJoins,
		AllowSubqueries: def.Limits.AllowSubqueries,
	}

	if p.MaxRowLimit <= 0 {
		p.MaxRowLimit = 10000
	}

	for _, t := range def.AllowedTables {
		p.tables[strings.ToUpper(t)] = true
	}

	for table, cols := range def.AllowedColumns {
		key := strings.ToUpper(table)
		set := make(map[string]bool, len(cols))
		order := make([]string, 0, len(cols))
		for _, c := range cols {
			upper := strings.ToUpper(c)
			if !set[upper] {
				set[upper] = true
				order = append(order, upper)
			}
		}
		p.columns[key] = set
		p.colOrder[key] = order
	}

	keywords := def.BlockedKeywords
	if len(keywords) == 0 {
		keywords = DefaultBlockedKeywords
	}
	for _, k := range keywords {
		p.keywords = append(p.keywords, strings.ToUpper(k))
	}

	functions := def.AllowedFunctions
	if len(functions) == 0 {
		functions = DefaultAllowedFunctions
	}
	for _, f := range functions {
		p.functions[strings.ToUpper(f)] = true
	}

	return p
}

// TableAllowed reports whether a table is in the allowlist.
func (p *Policy) TableAllowed(name string) bool {
	return p.tables[strings.ToUpper(name)]
}

// Tables returns the allowed table names, sorted.
func (p *Policy) Tables() []string {
	out := make([]string, 0, len(p.tables))
	for t := range p.tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ColumnsFor returns the ordered column allowlist for a table and whether
// the table has an explicit column list at all. Tables without a column
// list accept any column.
func (p *Policy) ColumnsFor(table string) ([]string, bool) {
	order, ok := p.colOrder[strings.ToUpper(table)]
	return order, ok
}

// ColumnAllowed reports whether a column is allowed for a table. Tables
// without an explicit column list allow every column.
func (p *Policy) ColumnAllowed(table, column string) bool {
	set, ok := p.columns[strings.ToUpper(table)]
	if !ok {
		return true
	}
	return set[strings.ToUpper(column)]
}

// BlockedKeywords returns the uppercase blocked keyword list.
func (p *Policy) BlockedKeywords() []string {
	return p.keywords
}

// FunctionAllowed reports whether an identifier is a known allowed
// function name.
func (p *Policy) FunctionAllowed(name string) bool {
	return p.functions[strings.ToUpper(name)]
}
