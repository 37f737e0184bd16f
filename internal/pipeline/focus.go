package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/GoogleCloudPlatform/sheetquery/internal/database"
)

// FocusBlock is the slice of one table shown to the SQL synthesizer.
type FocusBlock struct {
	Table    string
	Columns  []database.ColumnInfo
	Filtered bool
	Samples  database.ResultSet
}

// FocusedSchema is the per-question subset of the schema, with samples.
type FocusedSchema struct {
	Reasoning string
	Blocks    []FocusBlock
}

// String renders the focused schema as prompt text.
func (f FocusedSchema) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reasoning: %s\n", f.Reasoning)
	if len(f.Blocks) == 0 {
		b.WriteString("\nNo specific tables were selected; use the full schema.\n")
		return b.String()
	}
	for _, block := range f.Blocks {
		b.WriteString("\n")
		block.render(&b)
	}
	return b.String()
}

func (fb FocusBlock) render(b *strings.Builder) {
	fmt.Fprintf(b, "Table: %s\nColumns: %s\n", fb.Table, describeColumns(fb.Columns))
	if len(fb.Samples.Rows) == 0 {
		b.WriteString("Sample rows: (none)\n")
		return
	}
	b.WriteString("Sample rows:\n")
	for _, row := range fb.Samples.Rows {
		if !fb.Filtered {
			vals := make([]string, len(row))
			for i, v := range row {
				vals[i] = v.Literal()
			}
			fmt.Fprintf(b, "  (%s)\n", strings.Join(vals, ", "))
			continue
		}
		pairs := make([]string, 0, len(fb.Columns))
		for _, col := range fb.Columns {
			idx := fb.Samples.ColumnIndex(col.Name)
			if idx < 0 || idx >= len(row) {
				continue
			}
			pairs = append(pairs, fmt.Sprintf("%s=%s", col.Name, row[idx].Literal()))
		}
		fmt.Fprintf(b, "  %s\n", strings.Join(pairs, ", "))
	}
}

// BuildFocusedSchema fetches columns and sample rows for each selected table.
// Tables that do not exist in the store are skipped.
func (s *Service) BuildFocusedSchema(ctx context.Context, sel SchemaSelection) (FocusedSchema, error) {
	focused := FocusedSchema{Reasoning: sel.Reasoning}
	for _, requested := range sel.Tables {
		table, ok, err := s.db.LookupTable(ctx, requested)
		if err != nil {
			return FocusedSchema{}, &IntrospectionError{Msg: fmt.Sprintf("failed to look up table %s", requested), Err: err}
		}
		if !ok {
			s.logger.Debugf("Skipping selected table %q: not in the store", requested)
			continue
		}

		cols, err := s.db.ListColumns(ctx, table)
		if err != nil {
			return FocusedSchema{}, &IntrospectionError{Msg: fmt.Sprintf("failed to list columns of %s", table), Err: err}
		}
		block := FocusBlock{Table: table, Columns: cols}
		if wanted := sel.ColumnsFor(requested); len(wanted) > 0 {
			if filtered := filterColumns(cols, wanted); len(filtered) > 0 {
				block.Columns = filtered
				block.Filtered = true
			} else {
				s.logger.Debugf("None of the selected columns %v exist in %s; using all columns", wanted, table)
			}
		}

		samples, err := s.db.SampleRows(ctx, table, s.opts.SampleRows)
		if err != nil {
			return FocusedSchema{}, &IntrospectionError{Msg: fmt.Sprintf("failed to sample %s", table), Err: err}
		}
		block.Samples = samples
		focused.Blocks = append(focused.Blocks, block)
	}
	return focused, nil
}

// filterColumns keeps the columns named in wanted, matched case-insensitively,
// in store order.
func filterColumns(cols []database.ColumnInfo, wanted []string) []database.ColumnInfo {
	allowed := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		allowed[strings.ToLower(w)] = true
	}
	var kept []database.ColumnInfo
	for _, c := range cols {
		if allowed[strings.ToLower(c.Name)] {
			kept = append(kept, c)
		}
	}
	return kept
}
