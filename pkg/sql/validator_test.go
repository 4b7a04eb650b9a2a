package sql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb-inc/askdb-engine/pkg/policy"
)

func testPolicy() *policy.Policy {
	return policy.New(policy.Definition{
		AllowedTables: []string{"orders", "customers"},
		AllowedColumns: map[string][]string{
			"orders": {"id", "amount", "status", "created_at"},
		},
		Limits: policy.Limits{
			MaxRowLimit:  100,
			RequireLimit: true,
		},
	})
}

func TestValidate_ValidQueryIsSanitized(t *testing.T) {
	v := NewValidator(nil)

	result, err := v.Validate(testPolicy(), "SELECT id, amount FROM orders")
	require.NoError(t, err)

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "SELECT ID, AMOUNT FROM ORDERS LIMIT 100", result.SanitizedSQL)
	assert.Equal(t, []string{"ORDERS"}, result.TablesUsed)
	assert.Equal(t, []string{"ID", "AMOUNT"}, result.ColumnsUsed)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "No LIMIT clause found")
}

func TestValidate_StackedStatementIsSecurityViolation(t *testing.T) {
	v := NewValidator(nil)

	result, err := v.Validate(testPolicy(), "SELECT * FROM orders; DROP TABLE orders;")
	require.Error(t, err)
	assert.Nil(t, result)

	var violation *SecurityViolationError
	require.True(t, errors.As(err, &violation))
	assert.Contains(t, violation.Signature, "stacked")
}

func TestValidate_RejectsNonSelect(t *testing.T) {
	v := NewValidator(nil)

	result, err := v.Validate(testPolicy(), "UPDATE orders SET amount = 0")
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Empty(t, result.SanitizedSQL)
	assert.Contains(t, result.Errors, "Only SELECT statements are allowed, got: UPDATE")
}

func TestValidate_BlockedKeywords(t *testing.T) {
	v := NewValidator(nil)

	result, err := v.Validate(testPolicy(), "SELECT id FROM orders WHERE EXISTS (GRANT)")
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "Blocked keywords found: GRANT")
}

func TestValidate_BlockedKeywordInsideLiteralIsIgnored(t *testing.T) {
	v := NewValidator(nil)

	result, err := v.Validate(testPolicy(), "SELECT id FROM orders WHERE status = 'dropped' LIMIT 10")
	require.NoError(t, err)

	assert.True(t, result.IsValid, "errors: %v", result.Errors)
}

func TestValidate_TableNotInAllowlist(t *testing.T) {
	v := NewValidator(nil)

	result, err := v.Validate(testPolicy(), "SELECT id FROM invoices LIMIT 10")
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "Table not in allowlist: INVOICES")
}

func TestValidate_ColumnNotInAllowlist(t *testing.T) {
	v := NewValidator(nil)

	result, err := v.Validate(testPolicy(), "SELECT id, secret FROM orders LIMIT 10")
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "Column 'SECRET' not in allowlist for table 'ORDERS'")
}

func TestValidate_NoColumnListAllowsAnyColumn(t *testing.T) {
	v := NewValidator(nil)

	// customers has no explicit column list, so any column passes.
	result, err := v.Validate(testPolicy(), "SELECT name FROM customers LIMIT 10")
	require.NoError(t, err)
	assert.True(t, result.IsValid, "errors: %v", result.Errors)
}

func TestValidate_WildcardAndFunctionsPassColumnCheck(t *testing.T) {
	v := NewValidator(nil)

	result, err := v.Validate(testPolicy(), "SELECT COUNT(*), SUM(amount) FROM orders LIMIT 10")
	require.NoError(t, err)
	assert.True(t, result.IsValid, "errors: %v", result.Errors)
}

func TestValidate_SubqueriesRejectedByDefault(t *testing.T) {
	v := NewValidator(nil)

	result, err := v.Validate(testPolicy(),
		"SELECT id FROM orders WHERE id IN (SELECT id FROM orders) LIMIT 10")
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "Subqueries are not allowed")
}

func TestValidate_SelectInsideLiteralIsNotASubquery(t *testing.T) {
	v := NewValidator(nil)

	result, err := v.Validate(testPolicy(),
		"SELECT id FROM orders WHERE status = 'you may select again' LIMIT 10")
	require.NoError(t, err)
	assert.True(t, result.IsValid, "errors: %v", result.Errors)
}

func TestValidate_JoinsRejectedByDefault(t *testing.T) {
	v := NewValidator(nil)

	result, err := v.Validate(testPolicy(),
		"SELECT id FROM orders JOIN customers ON orders.cid = customers.id LIMIT 10")
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "JOIN operations are not allowed")
}

func TestValidate_JoinsAllowedWhenEnabled(t *testing.T) {
	pol := policy.New(policy.Definition{
		AllowedTables: []string{"orders", "customers"},
		Limits:        policy.Limits{MaxRowLimit: 100, AllowJoins: true},
	})
	v := NewValidator(nil)

	result, err := v.Validate(pol,
		"SELECT id FROM orders JOIN customers ON orders.cid = customers.id LIMIT 10")
	require.NoError(t, err)
	assert.True(t, result.IsValid, "errors: %v", result.Errors)
	assert.Equal(t, []string{"ORDERS", "CUSTOMERS"}, result.TablesUsed)
}

func TestValidate_OversizedLimitWarnsAndCaps(t *testing.T) {
	v := NewValidator(nil)

	result, err := v.Validate(testPolicy(), "SELECT id FROM orders LIMIT 5000")
	require.NoError(t, err)

	assert.True(t, result.IsValid)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "exceeds maximum 100")
	assert.Equal(t, "SELECT ID FROM ORDERS LIMIT 100", result.SanitizedSQL)
}

func TestValidate_OversizedLimitCappedAfterMultibyteLiteral(t *testing.T) {
	v := NewValidator(nil)

	result, err := v.Validate(testPolicy(),
		"SELECT status FROM orders WHERE status = 'héllo' LIMIT 5000")
	require.NoError(t, err)

	assert.True(t, result.IsValid, "errors: %v", result.Errors)
	assert.Equal(t, "SELECT STATUS FROM ORDERS WHERE STATUS = 'héllo' LIMIT 100", result.SanitizedSQL)

	// Revalidating the sanitized statement yields it unchanged and clean.
	again, err := v.Validate(testPolicy(), result.SanitizedSQL)
	require.NoError(t, err)
	assert.True(t, again.IsValid)
	assert.Empty(t, again.Warnings)
	assert.Equal(t, result.SanitizedSQL, again.SanitizedSQL)
}

func TestValidate_MultipleStatements(t *testing.T) {
	v := NewValidator(nil)

	result, err := v.Validate(testPolicy(), "SELECT 1; SELECT 2")
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "Multiple SQL statements are not allowed")
}

func TestValidate_ParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty input", "   ", "empty input"},
		{"unterminated literal", "SELECT 'oops FROM orders", "unterminated string literal"},
		{"unbalanced parens", "SELECT COUNT( FROM orders", "unbalanced parentheses"},
	}

	v := NewValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.Validate(testPolicy(), tt.input)
			require.NoError(t, err)

			assert.False(t, result.IsValid)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], "Failed to parse SQL statement")
			assert.Contains(t, result.Errors[0], tt.want)
		})
	}
}

func TestValidate_AccumulatesMultipleErrors(t *testing.T) {
	v := NewValidator(nil)

	result, err := v.Validate(testPolicy(),
		"SELECT secret FROM invoices JOIN vendors ON invoices.vid = vendors.id")
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors, "Table not in allowlist: INVOICES")
	assert.Contains(t, result.Errors, "Table not in allowlist: VENDORS")
	assert.Contains(t, result.Errors, "JOIN operations are not allowed")
}

func TestValidate_NoLimitWarningWhenNotRequired(t *testing.T) {
	pol := policy.New(policy.Definition{
		AllowedTables: []string{"orders"},
		Limits:        policy.Limits{MaxRowLimit: 100, RequireLimit: false},
	})
	v := NewValidator(nil)

	result, err := v.Validate(pol, "SELECT id FROM orders")
	require.NoError(t, err)

	assert.True(t, result.IsValid)
	assert.Empty(t, result.Warnings)
	// The limit is still appended on sanitization regardless of the
	// warning setting.
	assert.Equal(t, "SELECT ID FROM ORDERS LIMIT 100", result.SanitizedSQL)
}

func TestSanitize_FixedPoint(t *testing.T) {
	inputs := []string{
		"select   id,\n  amount from orders",
		"SELECT id FROM orders LIMIT 5000",
		"SELECT id FROM orders WHERE status = 'Mixed Case Stays' LIMIT 10",
		"SELECT id FROM orders WHERE status = 'héllo' LIMIT 5000",
	}

	for _, input := range inputs {
		once := sanitize(input, 100)
		twice := sanitize(once, 100)
		if once != twice {
			t.Errorf("sanitize not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestSanitize_PreservesLiteralCase(t *testing.T) {
	got := sanitize("select id from orders where status = 'Shipped' limit 10", 100)
	assert.Equal(t, "SELECT ID FROM ORDERS WHERE STATUS = 'Shipped' LIMIT 10", got)
}

func TestSanitize_StripsTrailingSemicolonViaValidate(t *testing.T) {
	v := NewValidator(nil)

	result, err := v.Validate(testPolicy(), "SELECT id FROM orders LIMIT 10;")
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, "SELECT ID FROM ORDERS LIMIT 10", result.SanitizedSQL)
}
