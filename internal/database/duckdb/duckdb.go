package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/GoogleCloudPlatform/sheetquery/internal/config"
	"github.com/GoogleCloudPlatform/sheetquery/internal/database"
)

type duckdbHandler struct{}

var _ database.DialectHandler = (*duckdbHandler)(nil)

func (h duckdbHandler) Name() string { return "DuckDB" }

func (h duckdbHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	return nil, fmt.Errorf("duckdb has no Cloud SQL variant")
}

// CreateStandardPool opens cfg.DBName as a DuckDB file. An empty name or
// ":memory:" opens an in-memory database.
func (h duckdbHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	path := cfg.DBName
	if path == ":memory:" {
		path = ""
	}
	dbPool, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("sql.Open (duckdb): %w", err)
	}
	return dbPool, nil
}

func (h duckdbHandler) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (h duckdbHandler) ListTables(ctx context.Context, db *database.DB) ([]string, error) {
	query := "SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' AND table_type = 'BASE TABLE' ORDER BY table_name"
	rows, err := db.Pool.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying tables: %w", err)
	}
	defer rows.Close()
	return database.ScanStrings(rows)
}

func (h duckdbHandler) ListColumns(ctx context.Context, db *database.DB, tableName string) ([]database.ColumnInfo, error) {
	query := "SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = 'main' AND table_name = ? ORDER BY ordinal_position"
	rows, err := db.Pool.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", tableName, err)
	}
	defer rows.Close()
	return database.ScanColumns(rows)
}

func (h duckdbHandler) SampleQuery(tableName string, n int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", h.QuoteIdentifier(tableName), n)
}

func (h duckdbHandler) ColumnType(kind database.Kind) string {
	switch kind {
	case database.KindInteger:
		return "BIGINT"
	case database.KindReal:
		return "DOUBLE"
	case database.KindBlob:
		return "BLOB"
	}
	return "VARCHAR"
}

func (h duckdbHandler) Placeholder(int) string { return "?" }

// ReadOnlySession has no session switch here; QueryReadOnly relies on rollback.
func (h duckdbHandler) ReadOnlySession() (string, string) { return "", "" }

func init() {
	database.RegisterDialectHandler("duckdb", duckdbHandler{})
}
