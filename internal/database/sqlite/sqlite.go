/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/GoogleCloudPlatform/sheetquery/internal/config"
	"github.com/GoogleCloudPlatform/sheetquery/internal/database"
)

// sqliteHandler implements database.DialectHandler for a local SQLite file.
type sqliteHandler struct{}

var _ database.DialectHandler = (*sqliteHandler)(nil)

func (h sqliteHandler) Name() string { return "SQLite" }

func (h sqliteHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	return nil, fmt.Errorf("sqlite has no Cloud SQL variant")
}

// CreateStandardPool opens cfg.DBName as a database file, or an in-memory
// database when the name is empty or ":memory:".
func (h sqliteHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	path := cfg.DBName
	if path == "" {
		path = ":memory:"
	}
	dbPool, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sql.Open (sqlite): %w", err)
	}
	// An in-memory database lives and dies with its connection.
	dbPool.SetMaxOpenConns(1)
	return dbPool, nil
}

func (h sqliteHandler) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (h sqliteHandler) ListTables(ctx context.Context, db *database.DB) ([]string, error) {
	query := "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	rows, err := db.Pool.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying tables: %w", err)
	}
	defer rows.Close()
	return database.ScanStrings(rows)
}

func (h sqliteHandler) ListColumns(ctx context.Context, db *database.DB, tableName string) ([]database.ColumnInfo, error) {
	query := "SELECT name, type FROM pragma_table_info(?) ORDER BY cid"
	rows, err := db.Pool.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("error querying columns for table %s: %w", tableName, err)
	}
	defer rows.Close()
	return database.ScanColumns(rows)
}

func (h sqliteHandler) SampleQuery(tableName string, n int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", h.QuoteIdentifier(tableName), n)
}

func (h sqliteHandler) ColumnType(kind database.Kind) string {
	if kind == database.KindNull {
		return "TEXT"
	}
	return kind.String()
}

func (h sqliteHandler) Placeholder(int) string { return "?" }

func (h sqliteHandler) ReadOnlySession() (string, string) {
	return "PRAGMA query_only = ON", "PRAGMA query_only = OFF"
}

func init() {
	database.RegisterDialectHandler("sqlite", sqliteHandler{})
}
