package datasource

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMSSQLAdapter_ListTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM sys.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name", "row_count"}).
			AddRow("dbo", "customers", int64(42)).
			AddRow("dbo", "orders", int64(1200)))

	a := newMSSQLAdapter(db, "", nil)
	tables, err := a.ListTables(context.Background())
	require.NoError(t, err)

	require.Len(t, tables, 2)
	assert.Equal(t, Table{Schema: "dbo", Name: "customers", RowCount: 42}, tables[0])
	assert.Equal(t, Table{Schema: "dbo", Name: "orders", RowCount: 1200}, tables[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMSSQLAdapter_ListColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM sys.columns").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "is_primary"}).
			AddRow("id", "bigint", false, true).
			AddRow("amount", "decimal", true, false))

	a := newMSSQLAdapter(db, "dbo", nil)
	columns, err := a.ListColumns(context.Background(), "orders")
	require.NoError(t, err)

	require.Len(t, columns, 2)
	assert.Equal(t, Column{Name: "id", DataType: "bigint", IsNullable: false, IsPrimary: true}, columns[0])
	assert.Equal(t, Column{Name: "amount", DataType: "decimal", IsNullable: true, IsPrimary: false}, columns[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMSSQLAdapter_SampleRowsUsesTop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT TOP \(3\) \* FROM \[dbo\]\.\[orders\]`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	a := newMSSQLAdapter(db, "dbo", nil)
	result, err := a.SampleRows(context.Background(), "orders", 3)
	require.NoError(t, err)

	assert.Equal(t, 1, result.RowCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMSSQLAdapter_QueryConvertsBytes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT ID, STATUS FROM ORDERS").
		WillReturnRows(sqlmock.NewRows([]string{"ID", "STATUS"}).
			AddRow(int64(7), []byte("shipped")))

	a := newMSSQLAdapter(db, "dbo", nil)
	result, err := a.Query(context.Background(), "SELECT ID, STATUS FROM ORDERS LIMIT 10")
	require.NoError(t, err)

	require.Equal(t, 1, result.RowCount)
	assert.Equal(t, []string{"ID", "STATUS"}, result.Columns)
	assert.Equal(t, "shipped", result.Rows[0]["STATUS"])
	assert.Equal(t, int64(7), result.Rows[0]["ID"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMSSQLAdapter_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

	a := newMSSQLAdapter(db, "dbo", nil)
	_, err = a.Query(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.ErrorContains(t, err, "execute query")
}

func TestQuoteBracket(t *testing.T) {
	assert.Equal(t, "[orders]", quoteBracket("orders"))
	assert.Equal(t, "[we]]ird]", quoteBracket("we]ird"))
}
