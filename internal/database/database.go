package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/sheetquery/internal/config"
)

// DBAdapter defines the interface for database operations needed by the pipeline.
type DBAdapter interface {
	DialectName() string
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, tableName string) ([]ColumnInfo, error)
	LookupTable(ctx context.Context, tableName string) (string, bool, error)
	SampleRows(ctx context.Context, tableName string, n int) (ResultSet, error)
	Query(ctx context.Context, query string, args ...any) (ResultSet, error)
	QueryReadOnly(ctx context.Context, query string) (ResultSet, error)
	Ping(ctx context.Context) error
	Close() error
}

var _ DBAdapter = (*DB)(nil)

// DB holds the database connection pool and dialect handler.
type DB struct {
	Pool    *sql.DB
	Handler DialectHandler
	Config  config.DatabaseConfig
}

// ColumnInfo holds basic information about a database column.
type ColumnInfo struct {
	Name     string
	DataType string
	Position int
}

// ColumnDef describes a column created by ReplaceTable.
type ColumnDef struct {
	Name string
	Kind Kind
}

// DialectHandler hides the SQL differences between supported stores.
type DialectHandler interface {
	// Name is the human readable dialect name used in prompts.
	Name() string
	CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error)
	CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error)
	QuoteIdentifier(name string) string
	ListTables(ctx context.Context, db *DB) ([]string, error)
	ListColumns(ctx context.Context, db *DB, tableName string) ([]ColumnInfo, error)
	// SampleQuery returns a statement selecting at most n rows of tableName.
	SampleQuery(tableName string, n int) string
	ColumnType(kind Kind) string
	// Placeholder returns the bind marker for the i-th (1-based) argument.
	Placeholder(i int) string
	// ReadOnlySession returns the statements that switch a connection to
	// read-only and back. Empty strings mean the store has no such switch.
	ReadOnlySession() (on, off string)
}

var (
	dialectHandlers = make(map[string]DialectHandler)
	mu              sync.RWMutex
)

func RegisterDialectHandler(dialect string, handler DialectHandler) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := dialectHandlers[dialect]; exists {
		zap.S().Warnf("Dialect handler for '%s' is being overwritten.", dialect)
	}
	dialectHandlers[dialect] = handler
}

func GetDialectHandler(dialect string) (DialectHandler, error) {
	mu.RLock()
	defer mu.RUnlock()
	handler, ok := dialectHandlers[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}
	return handler, nil
}

// New opens and pings a pool for cfg.Dialect.
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	handler, err := GetDialectHandler(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	var pool *sql.DB
	if strings.HasPrefix(cfg.Dialect, "cloudsql") {
		pool, err = handler.CreateCloudSQLPool(cfg)
	} else {
		pool, err = handler.CreateStandardPool(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool for dialect %s: %w", cfg.Dialect, err)
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database (ping failed) for dialect %s: %w", cfg.Dialect, err)
	}

	return &DB{
		Pool:    pool,
		Handler: handler,
		Config:  cfg,
	}, nil
}

func (db *DB) GetConfig() config.DatabaseConfig {
	return db.Config
}

// DialectName returns the handler's display name, e.g. "SQLite".
func (db *DB) DialectName() string {
	if db.Handler == nil {
		return ""
	}
	return db.Handler.Name()
}

func (db *DB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.PingContext(ctx)
}

func (db *DB) Close() error {
	if db.Pool != nil {
		return db.Pool.Close()
	}
	zap.S().Warn("Attempted to close a nil database connection pool.")
	return nil
}

func (db *DB) ListTables(ctx context.Context) ([]string, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListTables(ctx, db)
}

func (db *DB) ListColumns(ctx context.Context, tableName string) ([]ColumnInfo, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	return db.Handler.ListColumns(ctx, db, tableName)
}

// LookupTable returns the store's spelling of tableName, matched
// case-insensitively, and whether it exists.
func (db *DB) LookupTable(ctx context.Context, tableName string) (string, bool, error) {
	tables, err := db.ListTables(ctx)
	if err != nil {
		return "", false, err
	}
	for _, t := range tables {
		if strings.EqualFold(t, tableName) {
			return t, true, nil
		}
	}
	return "", false, nil
}

// SampleRows returns up to n rows of tableName. A table that does not exist
// yields an empty result and no error.
func (db *DB) SampleRows(ctx context.Context, tableName string, n int) (ResultSet, error) {
	if db.Handler == nil {
		return ResultSet{}, fmt.Errorf("dialect handler not initialized")
	}
	name, ok, err := db.LookupTable(ctx, tableName)
	if err != nil {
		return ResultSet{}, err
	}
	if !ok || n <= 0 {
		return ResultSet{}, nil
	}
	return db.Query(ctx, db.Handler.SampleQuery(name, n))
}

// Query runs a read statement and scans every row into tagged values.
func (db *DB) Query(ctx context.Context, query string, args ...any) (ResultSet, error) {
	if db.Pool == nil {
		return ResultSet{}, fmt.Errorf("database connection pool is not initialized")
	}
	rows, err := db.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return ResultSet{}, err
	}
	return scanResultSet(rows)
}

// QueryReadOnly runs query on a connection switched to read-only mode,
// inside a transaction that is always rolled back. Statements that write
// fail where the store enforces read-only mode and are undone elsewhere.
func (db *DB) QueryReadOnly(ctx context.Context, query string) (ResultSet, error) {
	if db.Pool == nil {
		return ResultSet{}, fmt.Errorf("database connection pool is not initialized")
	}
	if db.Handler == nil {
		return ResultSet{}, fmt.Errorf("dialect handler not initialized")
	}
	conn, err := db.Pool.Conn(ctx)
	if err != nil {
		return ResultSet{}, err
	}
	defer conn.Close()

	if on, off := db.Handler.ReadOnlySession(); on != "" {
		if _, err := conn.ExecContext(ctx, on); err != nil {
			return ResultSet{}, fmt.Errorf("failed to enter read-only mode: %w", err)
		}
		defer func() {
			if _, err := conn.ExecContext(context.WithoutCancel(ctx), off); err != nil {
				// a connection left read-only must not go back to the pool
				_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			}
		}()
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return ResultSet{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return ResultSet{}, err
	}
	return scanResultSet(rows)
}

func scanResultSet(rows *sql.Rows) (ResultSet, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return ResultSet{}, fmt.Errorf("failed to read result columns: %w", err)
	}

	result := ResultSet{Columns: cols, Rows: []Row{}}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return ResultSet{}, fmt.Errorf("failed to scan result row: %w", err)
		}
		row := make(Row, len(cols))
		for i, v := range raw {
			row[i] = FromDriver(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, fmt.Errorf("error iterating result rows: %w", err)
	}
	return result, nil
}

// ReplaceTable drops tableName if present, recreates it with columns and
// inserts rows, all inside one transaction.
func (db *DB) ReplaceTable(ctx context.Context, tableName string, columns []ColumnDef, rows []Row) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	if db.Handler == nil {
		return fmt.Errorf("dialect handler not initialized")
	}
	if len(columns) == 0 {
		return fmt.Errorf("table %s has no columns", tableName)
	}

	h := db.Handler
	quotedTable := h.QuoteIdentifier(tableName)
	defs := make([]string, len(columns))
	names := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		names[i] = h.QuoteIdentifier(c.Name)
		defs[i] = names[i] + " " + h.ColumnType(c.Kind)
		marks[i] = h.Placeholder(i + 1)
	}

	tx, err := db.Pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quotedTable)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", tableName, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quotedTable, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quotedTable, strings.Join(names, ", "), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert for %s: %w", tableName, err)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for n, row := range rows {
		for i := range columns {
			if i < len(row) {
				args[i] = row[i].Interface()
			} else {
				args[i] = nil
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed inserting row %d into %s: %w", n+1, tableName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ExecuteSQLStatements runs statements in order inside one transaction.
func (db *DB) ExecuteSQLStatements(ctx context.Context, sqlStatements []string) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	if len(sqlStatements) == 0 {
		zap.S().Debug("No SQL statements provided to ExecuteSQLStatements.")
		return nil
	}

	tx, err := db.Pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range sqlStatements {
		trimmedStmt := strings.TrimSpace(stmt)
		if trimmedStmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, trimmedStmt); err != nil {
			zap.S().Errorf("Failed executing statement #%d: %s: %v", i+1, trimmedStmt, err)
			return fmt.Errorf("failed executing statement #%d: %w", i+1, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ScanColumns collects (name, type) rows in order, numbering them from 1.
func ScanColumns(rows *sql.Rows) ([]ColumnInfo, error) {
	var columns []ColumnInfo
	for rows.Next() {
		var colInfo ColumnInfo
		if err := rows.Scan(&colInfo.Name, &colInfo.DataType); err != nil {
			return nil, fmt.Errorf("error scanning column name and data type: %w", err)
		}
		colInfo.Position = len(columns) + 1
		columns = append(columns, colInfo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}
	return columns, nil
}

// ScanStrings collects a single string column.
func ScanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("error scanning table name: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table rows: %w", err)
	}
	return out, nil
}
