package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/GoogleCloudPlatform/sheetquery/internal/database"
)

// normalizeHeader trims header cells, names blank ones column_N (1-based)
// and suffixes case-insensitive duplicates with _2, _3, ...
func normalizeHeader(header []string, width int) []string {
	names := make([]string, width)
	used := make(map[string]bool, width)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		candidate := name
		for n := 2; used[strings.ToLower(candidate)]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		used[strings.ToLower(candidate)] = true
		names[i] = candidate
	}
	return names
}

// inferKind picks INTEGER when every non-empty cell parses as int64, REAL
// when every one parses as float64, and TEXT otherwise.
func inferKind(cells []string) database.Kind {
	kind := database.KindInteger
	nonEmpty := false
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		nonEmpty = true
		if kind == database.KindInteger {
			if _, err := strconv.ParseInt(c, 10, 64); err == nil {
				continue
			}
			kind = database.KindReal
		}
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			return database.KindText
		}
	}
	if !nonEmpty {
		return database.KindText
	}
	return kind
}

func convertCell(cell string, kind database.Kind) database.Value {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return database.Null()
	}
	switch kind {
	case database.KindInteger:
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return database.Int(n)
		}
	case database.KindReal:
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return database.Real(f)
		}
	}
	return database.Text(cell)
}

// buildTable turns a grid into column definitions and typed rows. Rows
// that are empty in every cell are dropped.
func buildTable(g grid) ([]database.ColumnDef, []database.Row) {
	width := len(g.header)
	var data [][]string
	for _, r := range g.rows {
		if len(r) > width {
			width = len(r)
		}
		blank := true
		for _, c := range r {
			if strings.TrimSpace(c) != "" {
				blank = false
				break
			}
		}
		if !blank {
			data = append(data, r)
		}
	}

	names := normalizeHeader(g.header, width)
	cols := make([]database.ColumnDef, width)
	for i := range cols {
		column := make([]string, len(data))
		for j, r := range data {
			if i < len(r) {
				column[j] = r[i]
			}
		}
		cols[i] = database.ColumnDef{Name: names[i], Kind: inferKind(column)}
	}

	rows := make([]database.Row, len(data))
	for j, r := range data {
		row := make(database.Row, width)
		for i := range row {
			cell := ""
			if i < len(r) {
				cell = r[i]
			}
			row[i] = convertCell(cell, cols[i].Kind)
		}
		rows[j] = row
	}
	return cols, rows
}
