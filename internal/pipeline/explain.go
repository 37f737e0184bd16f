package pipeline

import (
	"context"
	"fmt"
	"strings"
)

const explainSystemPrompt = `You explain database query results to a non-technical user.
Answer the question in a few sentences, quoting the concrete figures from the rows.
If there are no rows, say that nothing matched.`

// ExplainResult summarizes a successful result in prose. Only the first
// ExplainRows rows are sent; the total row count is always included.
func (s *Service) ExplainResult(ctx context.Context, question string, result QueryResult) (string, error) {
	if result.Failed() {
		return "", &ExplanationError{Msg: "cannot explain a failed query", Err: result.Err}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %q\n", question)
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(result.Columns, ", "))
	limit := s.opts.ExplainRows
	if limit <= 0 || limit > len(result.Rows) {
		limit = len(result.Rows)
	}
	fmt.Fprintf(&b, "Rows (showing %d of %d):\n", limit, len(result.Rows))
	for _, row := range result.Rows[:limit] {
		vals := make([]string, len(row))
		for i, v := range row {
			vals[i] = v.Literal()
		}
		fmt.Fprintf(&b, "(%s)\n", strings.Join(vals, ", "))
	}

	text, err := s.complete(ctx, CallSiteExplain, s.opts.Explain, explainSystemPrompt, b.String(), false)
	if err != nil {
		return "", &ExplanationError{Msg: "completion failed", Err: err}
	}
	return strings.TrimSpace(text), nil
}
