package sql

import (
	"testing"
)

func TestScanInjection_Signatures(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"comment termination", "SELECT * FROM users WHERE id = 1; -- drop it"},
		{"stacked drop", "SELECT * FROM orders; DROP TABLE orders"},
		{"stacked delete", "SELECT 1; DELETE FROM orders"},
		{"classic tautology", "SELECT * FROM users WHERE name = '' OR '1'='1'"},
		{"numeric tautology", "SELECT * FROM users WHERE id = 1 OR 1=1"},
		{"union injection", "SELECT id FROM orders UNION SELECT password FROM users"},
		{"union all injection", "SELECT id FROM orders UNION ALL SELECT secret FROM vault"},
		{"exec call", "SELECT 1 WHERE EXEC(@cmd) = 0"},
		{"extended procedure", "SELECT * FROM t; xp_cmdshell 'dir'"},
		{"block comment", "SELECT/**/id/**/FROM/**/orders"},
		{"char encoding", "SELECT CHAR(65) FROM orders"},
		{"hex literal", "SELECT * FROM users WHERE id = 0x1f4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violation := scanInjection(tt.input)
			if violation == nil {
				t.Fatalf("scanInjection(%q) = nil, want violation", tt.input)
			}
			if violation.Signature == "" {
				t.Error("violation has empty signature name")
			}
		})
	}
}

func TestScanInjection_CleanQueries(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"plain select", "SELECT id, amount FROM orders LIMIT 100"},
		{"where with literal", "SELECT id FROM orders WHERE status = 'shipped'"},
		{"aggregate", "SELECT COUNT(*), SUM(amount) FROM orders GROUP BY status"},
		{"name with apostrophe escape", "SELECT id FROM customers WHERE name = 'O''Brien'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if violation := scanInjection(tt.input); violation != nil {
				t.Errorf("scanInjection(%q) = %q, want nil", tt.input, violation.Signature)
			}
		})
	}
}

func TestSecurityViolationError_Message(t *testing.T) {
	err := &SecurityViolationError{Signature: "UNION-based injection"}
	want := "SQL injection pattern detected: UNION-based injection"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
