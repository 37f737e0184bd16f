package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/GoogleCloudPlatform/sheetquery/internal/database"
)

// TableMetadata is one user table and its columns in ordinal order.
type TableMetadata struct {
	Name    string
	Columns []database.ColumnInfo
}

// ReadSchema reads every user table and its columns from the store.
func (s *Service) ReadSchema(ctx context.Context) ([]TableMetadata, error) {
	return withRetry(ctx, s.opts.Retry, s.logger, func(ctx context.Context) ([]TableMetadata, error) {
		tables, err := s.db.ListTables(ctx)
		if err != nil {
			return nil, &IntrospectionError{Msg: "failed to list tables", Err: err}
		}
		schema := make([]TableMetadata, 0, len(tables))
		for _, table := range tables {
			cols, err := s.db.ListColumns(ctx, table)
			if err != nil {
				return nil, &IntrospectionError{Msg: fmt.Sprintf("failed to list columns of %s", table), Err: err}
			}
			schema = append(schema, TableMetadata{Name: table, Columns: cols})
		}
		s.logger.Debugf("Read schema with %d table(s)", len(schema))
		return schema, nil
	})
}

// FormatSchema renders tables as "Table: t" / "Columns: c (TYPE), ..." blocks
// separated by blank lines.
func FormatSchema(tables []TableMetadata) string {
	blocks := make([]string, 0, len(tables))
	for _, t := range tables {
		blocks = append(blocks, fmt.Sprintf("Table: %s\nColumns: %s\n", t.Name, describeColumns(t.Columns)))
	}
	return strings.Join(blocks, "\n")
}

func describeColumns(cols []database.ColumnInfo) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s (%s)", c.Name, c.DataType)
	}
	return strings.Join(parts, ", ")
}
