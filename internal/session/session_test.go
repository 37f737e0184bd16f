package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/sheetquery/internal/database"
	"github.com/GoogleCloudPlatform/sheetquery/internal/pipeline"
)

type fakeAsker struct {
	answers map[string]*pipeline.Answer
	asked   []string
}

func (f *fakeAsker) SchemaText() string {
	return "Table: students\nColumns: name (TEXT), grade (INTEGER)\n"
}

func (f *fakeAsker) Ask(ctx context.Context, question string) *pipeline.Answer {
	f.asked = append(f.asked, question)
	if ans, ok := f.answers[question]; ok {
		ans.Question = question
		return ans
	}
	return &pipeline.Answer{Question: question, Err: errors.New("unexpected question"), State: pipeline.StateError}
}

var fullTrace = []pipeline.State{
	pipeline.StateAwaitingQuestion, pipeline.StateSelectingSchema, pipeline.StateBuildingFocus,
	pipeline.StateSynthesizingSQL, pipeline.StateExecuting, pipeline.StateExplaining, pipeline.StateDone,
}

func countAnswer() *pipeline.Answer {
	return &pipeline.Answer{
		SQL: "SELECT COUNT(*) AS n FROM students WHERE grade = 5",
		Result: pipeline.QueryResult{ResultSet: database.ResultSet{
			Columns: []string{"n"},
			Rows:    []database.Row{{database.Int(2)}},
		}},
		Explanation: "There are 2 students in grade 5.",
		State:       pipeline.StateDone,
		Trace:       fullTrace,
	}
}

func failedAnswer() *pipeline.Answer {
	return &pipeline.Answer{
		SQL:   "SELECT age FROM students",
		Err:   &pipeline.ExecutionError{Msg: "failed to execute query", Err: errors.New("no such column: age")},
		State: pipeline.StateError,
		Trace: []pipeline.State{
			pipeline.StateAwaitingQuestion, pipeline.StateSelectingSchema, pipeline.StateBuildingFocus,
			pipeline.StateSynthesizingSQL, pipeline.StateExecuting, pipeline.StateError,
		},
	}
}

func TestRun(t *testing.T) {
	asker := &fakeAsker{answers: map[string]*pipeline.Answer{
		"How old are they?":        failedAnswer(),
		"How many are in grade 5?": countAnswer(),
	}}
	in := strings.NewReader("\n   \nHow old are they?\nHow many are in grade 5?\nquit\nnever asked\n")
	var out, transcript bytes.Buffer

	n, err := Run(context.Background(), in, &out, asker, Options{Transcript: &transcript})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"How old are they?", "How many are in grade 5?"}, asker.asked)

	text := out.String()
	assert.Contains(t, text, "Database schema:\nTable: students")
	assert.Equal(t, 5, strings.Count(text, prompt))
	assert.Contains(t, text, "The query failed: no such column: age")
	assert.Contains(t, text, "Generated SQL:\nSELECT COUNT(*) AS n FROM students WHERE grade = 5")
	assert.Contains(t, text, "Focused schema:\nReasoning:")
	assert.Contains(t, text, "There are 2 students in grade 5.")
	assert.Less(t, strings.Index(text, "no such column"), strings.Index(text, "There are 2 students"))

	assert.Contains(t, transcript.String(), "Question: How many are in grade 5?")
	assert.NotContains(t, transcript.String(), "Focused schema")
}

func TestRunEndOfInput(t *testing.T) {
	asker := &fakeAsker{answers: map[string]*pipeline.Answer{"q": countAnswer()}}
	var out bytes.Buffer

	n, err := Run(context.Background(), strings.NewReader("q"), &out, asker, Options{HideSchema: true, HideFocus: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotContains(t, out.String(), "Database schema")
	assert.NotContains(t, out.String(), "Focused schema")
}

func TestRunLongLine(t *testing.T) {
	long := strings.Repeat("how many students ", 4000)
	asker := &fakeAsker{answers: map[string]*pipeline.Answer{"second question": countAnswer()}}
	var out bytes.Buffer

	n, err := Run(context.Background(), strings.NewReader(long+"\nsecond question\nexit\n"), &out, asker, Options{HideSchema: true})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, asker.asked, 2)
	assert.Equal(t, strings.TrimSpace(long), asker.asked[0])
	assert.Equal(t, "second question", asker.asked[1])
}

func TestRunQuitTokens(t *testing.T) {
	for _, token := range []string{"exit", "QUIT", `\q`} {
		asker := &fakeAsker{}
		n, err := Run(context.Background(), strings.NewReader(token+"\nq\n"), &bytes.Buffer{}, asker, Options{})
		require.NoError(t, err)
		assert.Zero(t, n, token)
		assert.Empty(t, asker.asked, token)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := Run(ctx, strings.NewReader("q\n"), &bytes.Buffer{}, &fakeAsker{}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestPrintAnswerDegradedExplanation(t *testing.T) {
	ans := countAnswer()
	ans.Explanation = ""
	ans.ExplanationErr = &pipeline.ExplanationError{Msg: "completion failed"}
	var out bytes.Buffer

	PrintAnswer(&out, ans, false)
	assert.Contains(t, out.String(), "Results:")
	assert.Contains(t, out.String(), "Could not summarize the result")
	assert.NotContains(t, out.String(), "Answer:")
}

func TestPrintResult(t *testing.T) {
	var out bytes.Buffer
	PrintResult(&out, database.ResultSet{
		Columns: []string{"name", "grade"},
		Rows: []database.Row{
			{database.Text("Alice"), database.Int(5)},
			{database.Text("Dan"), database.Null()},
		},
	})
	assert.Equal(t, "name   grade\n---    ---\nAlice  5\nDan    NULL\n(2 row(s))\n", out.String())

	out.Reset()
	PrintResult(&out, database.ResultSet{Columns: []string{"name"}, Rows: []database.Row{}})
	assert.Equal(t, "(no rows)\n", out.String())
}
