package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CaseInsensitive(t *testing.T) {
	p := New(Definition{
		AllowedTables: []string{"orders", "Customers"},
		AllowedColumns: map[string][]string{
			"orders": {"id", "amount"},
		},
	})

	assert.True(t, p.TableAllowed("ORDERS"))
	assert.True(t, p.TableAllowed("orders"))
	assert.True(t, p.TableAllowed("Customers"))
	assert.False(t, p.TableAllowed("invoices"))

	assert.True(t, p.ColumnAllowed("Orders", "ID"))
	assert.True(t, p.ColumnAllowed("orders", "amount"))
	assert.False(t, p.ColumnAllowed("orders", "secret"))
}

func TestNew_EmptyAllowlistDeniesAll(t *testing.T) {
	p := New(Definition{})
	assert.False(t, p.TableAllowed("orders"))
	assert.Empty(t, p.Tables())
}

func TestColumnAllowed_NoExplicitListAllowsAny(t *testing.T) {
	p := New(Definition{AllowedTables: []string{"orders"}})

	// No column list registered for the table.
	_, ok := p.ColumnsFor("orders")
	assert.False(t, ok)
	assert.True(t, p.ColumnAllowed("orders", "anything"))
}

func TestNew_Defaults(t *testing.T) {
	p := New(Definition{AllowedTables: []string{"orders"}})

	assert.Equal(t, 10000, p.MaxRowLimit)
	assert.Contains(t, p.BlockedKeywords(), "DROP")
	assert.Contains(t, p.BlockedKeywords(), "EXECUTE")
	assert.True(t, p.FunctionAllowed("count"))
	assert.True(t, p.FunctionAllowed("SUM"))
	assert.False(t, p.FunctionAllowed("LOAD_FILE"))
}

func TestColumnsFor_PreservesOrder(t *testing.T) {
	p := New(Definition{
		AllowedColumns: map[string][]string{
			"orders": {"id", "amount", "created_at", "id"},
		},
	})

	cols, ok := p.ColumnsFor("ORDERS")
	require.True(t, ok)
	assert.Equal(t, []string{"ID", "AMOUNT", "CREATED_AT"}, cols)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "allowlist.yaml")
	content := `
allowed_tables:
  - orders
allowed_columns:
  orders:
    - id
    - amount
query_limits:
  max_row_limit: 100
  require_limit: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	p, err := LoadFile(path)
	require.NoError(t, err)

	assert.True(t, p.TableAllowed("orders"))
	assert.Equal(t, 100, p.MaxRowLimit)
	assert.True(t, p.RequireLimit)
	assert.False(t, p.AllowJoins)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
