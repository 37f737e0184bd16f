package pipeline

import (
	"context"
	"fmt"

	"github.com/GoogleCloudPlatform/sheetquery/internal/genai"
)

const synthesizeSystemPrompt = `You are a helpful assistant that writes SQL queries for %s databases.
Write exactly one %s statement that answers the question.
Use only the tables and columns listed in the focused schema; fall back to the full schema only when the focused schema has no tables.
Handle NULL values explicitly and use JOINs where the answer needs more than one table.
Only return the SQL query, and nothing else.`

// SynthesizeSQL asks the completion service for one statement answering
// question. The statement is not validated; it is only stripped of code fences.
func (s *Service) SynthesizeSQL(ctx context.Context, fullSchema, question string, focused FocusedSchema) (string, error) {
	dialect := s.db.DialectName()
	system := fmt.Sprintf(synthesizeSystemPrompt, dialect, dialect)
	user := fmt.Sprintf("Full schema:\n%s\nFocused schema:\n%s\nQuestion: %q", fullSchema, focused.String(), question)

	raw, err := s.complete(ctx, CallSiteSynthesize, s.opts.Synthesize, system, user, false)
	if err != nil {
		return "", &SynthesisError{Msg: "completion failed", Err: err}
	}
	stmt := genai.StripCodeFences(raw)
	if stmt == "" {
		return "", &SynthesisError{Msg: "completion returned an empty statement"}
	}
	return stmt, nil
}
