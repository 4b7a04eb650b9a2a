package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb-inc/askdb-engine/pkg/apperrors"
	"github.com/askdb-inc/askdb-engine/pkg/llm"
	"github.com/askdb-inc/askdb-engine/pkg/policy"
	"github.com/askdb-inc/askdb-engine/pkg/schema"
	sqlval "github.com/askdb-inc/askdb-engine/pkg/sql"
)

func generatorPolicy() *policy.Policy {
	return policy.New(policy.Definition{
		AllowedTables: []string{"orders"},
		AllowedColumns: map[string][]string{
			"orders": {"id", "amount", "status"},
		},
		Limits: policy.Limits{MaxRowLimit: 100, RequireLimit: true},
	})
}

func generatorSnapshot() *schema.Snapshot {
	return &schema.Snapshot{
		Tables: []schema.TableSchema{
			{
				Name: "orders",
				Columns: []schema.ColumnSchema{
					{Name: "id", DataType: "bigint"},
					{Name: "amount", DataType: "numeric"},
				},
			},
		},
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantSQL     string
		wantExplain string
		wantConf    float64
	}{
		{
			name:        "bare json",
			raw:         `{"sql": "SELECT id FROM orders LIMIT 10", "explanation": "lists order ids", "confidence": 0.9}`,
			wantSQL:     "SELECT id FROM orders LIMIT 10",
			wantExplain: "lists order ids",
			wantConf:    0.9,
		},
		{
			name:    "fenced json",
			raw:     "```json\n{\"sql\": \"SELECT id FROM orders\"}\n```",
			wantSQL: "SELECT id FROM orders",
		},
		{
			name:    "fenced sql",
			raw:     "```sql\nSELECT id FROM orders LIMIT 5\n```",
			wantSQL: "SELECT id FROM orders LIMIT 5",
		},
		{
			name:    "free text with select",
			raw:     "Here is your query: SELECT id FROM orders LIMIT 5; hope that helps",
			wantSQL: "SELECT id FROM orders LIMIT 5;",
		},
		{
			name:    "no sql at all",
			raw:     "I cannot answer that question.",
			wantSQL: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSQL, gotExplain, gotConf := parseResponse(tt.raw)
			assert.Equal(t, tt.wantSQL, gotSQL)
			assert.Equal(t, tt.wantExplain, gotExplain)
			assert.Equal(t, tt.wantConf, gotConf)
		})
	}
}

func TestGenerate_FirstAttemptValid(t *testing.T) {
	mock := llm.NewMockClient()
	mock.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		return `{"sql": "SELECT id, amount FROM orders", "explanation": "order amounts"}`, nil
	}

	g := NewGeneratorService(mock, sqlval.NewValidator(nil), nil)
	result, err := g.Generate(context.Background(), generatorSnapshot(), generatorPolicy(), "show order amounts")
	require.NoError(t, err)

	assert.Equal(t, "SELECT ID, AMOUNT FROM ORDERS LIMIT 100", result.SQL)
	assert.Equal(t, "order amounts", result.Explanation)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, mock.GenerateResponseCalls)
}

func TestGenerate_RetriesWithValidationFeedback(t *testing.T) {
	mock := llm.NewMockClient()
	var prompts []string
	mock.GenerateResponseFunc = func(_ context.Context, prompt, _ string, _ float64) (string, error) {
		prompts = append(prompts, prompt)
		if len(prompts) == 1 {
			return `{"sql": "SELECT secret FROM invoices"}`, nil
		}
		return `{"sql": "SELECT id FROM orders LIMIT 10"}`, nil
	}

	g := NewGeneratorService(mock, sqlval.NewValidator(nil), nil)
	result, err := g.Generate(context.Background(), generatorSnapshot(), generatorPolicy(), "a question")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Attempts)
	require.Len(t, prompts, 2)
	// The second prompt carries the first attempt's rejection.
	assert.Contains(t, prompts[1], "Table not in allowlist: INVOICES")
	assert.Contains(t, prompts[1], "SELECT secret FROM invoices")
}

func TestGenerate_SecurityViolationAborts(t *testing.T) {
	mock := llm.NewMockClient()
	mock.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		return `{"sql": "SELECT * FROM orders; DROP TABLE orders;"}`, nil
	}

	g := NewGeneratorService(mock, sqlval.NewValidator(nil), nil)
	_, err := g.Generate(context.Background(), generatorSnapshot(), generatorPolicy(), "a question")
	require.Error(t, err)

	var violation *sqlval.SecurityViolationError
	assert.True(t, errors.As(err, &violation))
	assert.Equal(t, 1, mock.GenerateResponseCalls, "no retry after a security violation")
}

func TestGenerate_ExhaustsAttempts(t *testing.T) {
	mock := llm.NewMockClient()
	mock.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		return `{"sql": "SELECT secret FROM invoices"}`, nil
	}

	g := NewGeneratorService(mock, sqlval.NewValidator(nil), nil)
	_, err := g.Generate(context.Background(), generatorSnapshot(), generatorPolicy(), "a question")
	require.Error(t, err)

	assert.ErrorIs(t, err, apperrors.ErrGenerationExhausted)
	assert.ErrorContains(t, err, "Table not in allowlist: INVOICES")
	assert.Equal(t, generationMaxAttempts, mock.GenerateResponseCalls)
}

func TestGenerate_NoSQLInResponses(t *testing.T) {
	mock := llm.NewMockClient()
	mock.GenerateResponseFunc = func(context.Context, string, string, float64) (string, error) {
		return "I cannot answer that.", nil
	}

	g := NewGeneratorService(mock, sqlval.NewValidator(nil), nil)
	_, err := g.Generate(context.Background(), generatorSnapshot(), generatorPolicy(), "a question")
	assert.ErrorIs(t, err, apperrors.ErrNoSQLGenerated)
}
