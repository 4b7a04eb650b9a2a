package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/askdb-inc/askdb-engine/pkg/policy"
	"github.com/askdb-inc/askdb-engine/pkg/schema"
)

func testSnapshot() *schema.Snapshot {
	return &schema.Snapshot{
		Tables: []schema.TableSchema{
			{
				Name:     "orders",
				RowCount: 1200,
				Columns: []schema.ColumnSchema{
					{Name: "id", DataType: "bigint", IsPrimary: true},
					{Name: "amount", DataType: "numeric", IsNullable: true},
				},
				SampleRows: []map[string]any{
					{"id": int64(1), "amount": 9.5},
				},
			},
		},
	}
}

func TestBuildSchemaContext(t *testing.T) {
	out := BuildSchemaContext(testSnapshot())

	assert.Contains(t, out, "### orders (~1200 rows)")
	assert.Contains(t, out, "- id bigint (not null) [PK]")
	assert.Contains(t, out, "- amount numeric (nullable)")
	assert.Contains(t, out, "amount=9.5, id=1")
}

func TestBuildGenerationPrompt(t *testing.T) {
	pol := policy.New(policy.Definition{
		AllowedTables: []string{"orders"},
		Limits:        policy.Limits{MaxRowLimit: 100},
	})

	out := BuildGenerationPrompt(testSnapshot(), pol, "what is the total order amount?")

	assert.Contains(t, out, "Maximum rows: 100")
	assert.Contains(t, out, "JOINs are not allowed")
	assert.Contains(t, out, "Subqueries are not allowed")
	assert.Contains(t, out, "what is the total order amount?")
}

func TestBuildGenerationPrompt_JoinsAllowedOmitsConstraint(t *testing.T) {
	pol := policy.New(policy.Definition{
		AllowedTables: []string{"orders"},
		Limits:        policy.Limits{MaxRowLimit: 100, AllowJoins: true},
	})

	out := BuildGenerationPrompt(testSnapshot(), pol, "q")
	assert.NotContains(t, out, "JOINs are not allowed")
}

func TestBuildRetryPrompt(t *testing.T) {
	out := BuildRetryPrompt("BASE", "SELECT * FROM invoices", []string{
		"Table not in allowlist: INVOICES",
	})

	assert.Contains(t, out, "BASE")
	assert.Contains(t, out, "SELECT * FROM invoices")
	assert.Contains(t, out, "Table not in allowlist: INVOICES")
}
