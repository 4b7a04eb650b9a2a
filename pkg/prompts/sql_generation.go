// Package prompts builds the prompt text sent to the LLM for SQL
// generation.
package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/askdb-inc/askdb-engine/pkg/policy"
	"github.com/askdb-inc/askdb-engine/pkg/schema"
)

// SQLGenerationSystemPrompt instructs the model to emit exactly one
// read-only statement as JSON, so the response parser has a stable shape
// to work with.
const SQLGenerationSystemPrompt = `You are a SQL generation assistant for a read-only analytics interface.

Rules:
- Generate exactly ONE SELECT statement answering the user's question.
- Use only the tables and columns listed in the schema.
- Never generate INSERT, UPDATE, DELETE, DDL, or multiple statements.
- Prefer explicit column lists over SELECT *.
- Always include a LIMIT clause.

Respond with a JSON object:
{"sql": "<the SELECT statement>", "explanation": "<one sentence>", "confidence": <0.0-1.0>}`

// BuildSchemaContext renders a discovered snapshot into prompt text:
// each table with its columns, types, and a few sample rows when
// available.
func BuildSchemaContext(snapshot *schema.Snapshot) string {
	var b strings.Builder

	b.WriteString("## Database Schema\n\n")
	for _, table := range snapshot.Tables {
		fmt.Fprintf(&b, "### %s", table.Name)
		if table.RowCount > 0 {
			fmt.Fprintf(&b, " (~%d rows)", table.RowCount)
		}
		b.WriteString("\n")

		for _, col := range table.Columns {
			flags := ""
			if col.IsPrimary {
				flags = " [PK]"
			}
			nullable := "not null"
			if col.IsNullable {
				nullable = "nullable"
			}
			fmt.Fprintf(&b, "- %s %s (%s)%s\n", col.Name, col.DataType, nullable, flags)
		}

		if len(table.SampleRows) > 0 {
			b.WriteString("Sample rows:\n")
			for _, row := range table.SampleRows {
				b.WriteString("  ")
				b.WriteString(formatRow(row))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

// BuildGenerationPrompt assembles the user prompt: schema context, the
// policy's query limits, and the question.
func BuildGenerationPrompt(snapshot *schema.Snapshot, pol *policy.Policy, question string) string {
	var b strings.Builder

	b.WriteString(BuildSchemaContext(snapshot))

	b.WriteString("## Query Constraints\n\n")
	fmt.Fprintf(&b, "- Maximum rows: %d\n", pol.MaxRowLimit)
	if !pol.AllowJoins {
		b.WriteString("- JOINs are not allowed\n")
	}
	if !pol.AllowSubqueries {
		b.WriteString("- Subqueries are not allowed\n")
	}
	b.WriteString("\n## Question\n\n")
	b.WriteString(question)
	b.WriteString("\n")

	return b.String()
}

// BuildRetryPrompt extends the generation prompt with validation
// feedback from the previous attempt.
func BuildRetryPrompt(base string, previousSQL string, validationErrors []string) string {
	var b strings.Builder

	b.WriteString(base)
	b.WriteString("\n## Previous Attempt\n\n")
	fmt.Fprintf(&b, "The previous query was rejected:\n```sql\n%s\n```\n\nProblems:\n", previousSQL)
	for _, e := range validationErrors {
		fmt.Fprintf(&b, "- %s\n", e)
	}
	b.WriteString("\nGenerate a corrected query that fixes every problem above.\n")

	return b.String()
}

// formatRow renders one sample row with stable key ordering.
func formatRow(row map[string]any) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, row[k]))
	}
	return strings.Join(parts, ", ")
}
