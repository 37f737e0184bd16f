package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/GoogleCloudPlatform/sheetquery/internal/genai"
)

// SchemaSelection names the tables and columns judged relevant to a question.
// Tables is an ordered set. A table with no entry in Columns uses all its columns.
type SchemaSelection struct {
	Tables    []string
	Columns   map[string][]string
	Reasoning string
}

const (
	reasonParseFailed = "parse failed"
	reasonUnavailable = "selection unavailable"
)

// EmptySelection is the sentinel used when no usable selection exists.
func EmptySelection(reason string) SchemaSelection {
	return SchemaSelection{Tables: []string{}, Columns: map[string][]string{}, Reasoning: reason}
}

func (s SchemaSelection) IsEmpty() bool { return len(s.Tables) == 0 }

// ColumnsFor returns the selected columns for table, matched case-insensitively.
func (s SchemaSelection) ColumnsFor(table string) []string {
	if cols, ok := s.Columns[table]; ok {
		return cols
	}
	for t, cols := range s.Columns {
		if strings.EqualFold(t, table) {
			return cols
		}
	}
	return nil
}

// PinnedSelection builds a selection from a table filter such as the one
// produced by utils.ParseTablesFlag. Tables are sorted by name.
func PinnedSelection(filters map[string][]string) SchemaSelection {
	sel := EmptySelection("tables pinned by the caller")
	for table := range filters {
		sel.Tables = append(sel.Tables, table)
	}
	sort.Strings(sel.Tables)
	for _, table := range sel.Tables {
		if len(filters[table]) > 0 {
			sel.Columns[table] = filters[table]
		}
	}
	return sel
}

type selectionReply struct {
	Tables    []string            `json:"tables"`
	Columns   map[string][]string `json:"columns"`
	Reasoning string              `json:"reasoning"`
}

// ParseSelection decodes the selector's reply. It accepts a JSON object,
// optionally wrapped in a code fence or surrounded by prose.
func ParseSelection(raw string) (SchemaSelection, error) {
	text := genai.StripCodeFences(raw)
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return SchemaSelection{}, &SelectionParseError{Msg: "no JSON object in reply"}
	}

	var reply selectionReply
	if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err != nil {
		return SchemaSelection{}, &SelectionParseError{Msg: "invalid selection object", Err: err}
	}

	sel := EmptySelection(strings.TrimSpace(reply.Reasoning))
	seen := make(map[string]bool)
	for _, t := range reply.Tables {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		sel.Tables = append(sel.Tables, t)
	}
	for table, cols := range reply.Columns {
		if !seen[strings.ToLower(strings.TrimSpace(table))] {
			continue
		}
		var kept []string
		for _, c := range cols {
			if c = strings.TrimSpace(c); c != "" {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			sel.Columns[strings.TrimSpace(table)] = kept
		}
	}
	return sel, nil
}

const selectSystemPrompt = `You pick the parts of a database schema needed to answer a question.
Reply with a single JSON object and nothing else:
{"tables": ["table", ...], "columns": {"table": ["column", ...]}, "reasoning": "one sentence"}
Only use table and column names that appear in the schema. Omit a table from "columns" to select all of its columns.`

// SelectSchema asks the completion service which tables and columns matter
// for question. It never fails: malformed replies and completion failures
// degrade to an empty selection.
func (s *Service) SelectSchema(ctx context.Context, schema []TableMetadata, question string) SchemaSelection {
	user := fmt.Sprintf("Schema:\n%s\nQuestion: %s", FormatSchema(schema), question)
	raw, err := s.complete(ctx, CallSiteSelect, s.opts.Select, selectSystemPrompt, user, true)
	if err != nil {
		s.logger.Warnf("Schema selection failed, continuing with the full schema: %v", err)
		return EmptySelection(reasonUnavailable)
	}

	sel, err := ParseSelection(raw)
	if err != nil {
		s.logger.Warnf("Could not parse schema selection, continuing with the full schema: %v. Response: %q", err, raw)
		return EmptySelection(reasonParseFailed)
	}
	s.logger.Debugf("Selected tables %v: %s", sel.Tables, sel.Reasoning)
	return sel
}
