package duckdb

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/sheetquery/internal/database"
)

func TestDuckDBIntrospectionQueries(t *testing.T) {
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := &database.DB{Pool: mockDb, Handler: duckdbHandler{}}
	defer db.Close()
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables WHERE table_schema = 'main'")).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("students"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns WHERE table_schema = 'main' AND table_name = ?")).
		WithArgs("students").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("id", "BIGINT").
			AddRow("name", "VARCHAR"))

	tables, err := db.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"students"}, tables)

	cols, err := db.ListColumns(ctx, "students")
	require.NoError(t, err)
	assert.Equal(t, "VARCHAR", cols[1].DataType)
	assert.Equal(t, 2, cols[1].Position)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuckDBStatements(t *testing.T) {
	h := duckdbHandler{}
	assert.Equal(t, "DuckDB", h.Name())
	assert.Equal(t, `SELECT * FROM "a""b" LIMIT 3`, h.SampleQuery(`a"b`, 3))
	assert.Equal(t, "?", h.Placeholder(4))
	on, _ := h.ReadOnlySession()
	assert.Empty(t, on)
	assert.Equal(t, "DOUBLE", h.ColumnType(database.KindReal))
	assert.Equal(t, "VARCHAR", h.ColumnType(database.KindText))

	registered, err := database.GetDialectHandler("duckdb")
	require.NoError(t, err)
	assert.Equal(t, "DuckDB", registered.Name())
}
