package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/GoogleCloudPlatform/sheetquery/internal/database"
	"github.com/GoogleCloudPlatform/sheetquery/internal/pipeline"
)

const prompt = "Ask your question: "

// Asker answers one question at a time. *pipeline.Controller implements it.
type Asker interface {
	Ask(ctx context.Context, question string) *pipeline.Answer
	SchemaText() string
}

// Options controls what Run prints.
type Options struct {
	// HideSchema skips printing the full schema at start.
	HideSchema bool
	// HideFocus skips printing the focused schema for each question.
	HideFocus bool
	// Transcript, when set, receives a copy of every answer.
	Transcript io.Writer
}

func isQuit(line string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit", `\q`:
		return true
	}
	return false
}

// Run reads questions from in until a quit command or end of input and
// writes each answer to out. It returns the number of questions asked.
// A failed question is reported and the loop continues.
func Run(ctx context.Context, in io.Reader, out io.Writer, asker Asker, opts Options) (int, error) {
	reader := bufio.NewReader(in)
	fmt.Fprintln(out, "Ask questions about your spreadsheets in plain language.")
	fmt.Fprintln(out, `Type 'exit', 'quit' or '\q' to quit.`)
	if !opts.HideSchema {
		fmt.Fprintf(out, "\nDatabase schema:\n%s\n", asker.SchemaText())
	}

	asked := 0
	for {
		if err := ctx.Err(); err != nil {
			return asked, err
		}
		fmt.Fprint(out, prompt)
		raw, err := reader.ReadString('\n')
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			fmt.Fprintln(out)
			return asked, err
		}
		line := strings.TrimSpace(raw)
		if line == "" {
			if eof {
				fmt.Fprintln(out)
				return asked, nil
			}
			continue
		}
		if isQuit(line) {
			return asked, nil
		}

		ans := asker.Ask(ctx, line)
		asked++
		PrintAnswer(out, ans, !opts.HideFocus)
		if opts.Transcript != nil {
			fmt.Fprintf(opts.Transcript, "Question: %s\n", ans.Question)
			PrintAnswer(opts.Transcript, ans, false)
			fmt.Fprintln(opts.Transcript)
		}
		if eof {
			fmt.Fprintln(out)
			return asked, nil
		}
	}
}

// PrintAnswer writes the stages of ans that produced output: the focused
// schema, the generated SQL, the result table and the explanation or error.
func PrintAnswer(w io.Writer, ans *pipeline.Answer, showFocus bool) {
	if showFocus && slices.Contains(ans.Trace, pipeline.StateSynthesizingSQL) {
		fmt.Fprintf(w, "\nFocused schema:\n%s", ans.Focused.String())
	}
	if ans.SQL != "" {
		fmt.Fprintf(w, "\nGenerated SQL:\n%s\n", ans.SQL)
	}
	if ans.Err != nil {
		fmt.Fprintf(w, "\n%s\n", ans.Message())
		return
	}

	fmt.Fprintln(w, "\nResults:")
	PrintResult(w, ans.Result.ResultSet)
	if ans.ExplanationErr != nil {
		fmt.Fprintf(w, "\n%s\n", ans.Message())
		return
	}
	fmt.Fprintf(w, "\nAnswer:\n%s\n", ans.Explanation)
}

// PrintResult writes rs as an aligned table. Nulls print as NULL.
func PrintResult(w io.Writer, rs database.ResultSet) {
	if len(rs.Rows) == 0 {
		fmt.Fprintln(w, "(no rows)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(rs.Columns, "\t"))

	sep := make([]string, len(rs.Columns))
	for i := range sep {
		sep[i] = "---"
	}
	fmt.Fprintln(tw, strings.Join(sep, "\t"))

	for _, row := range rs.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.String()
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
	fmt.Fprintf(w, "(%d row(s))\n", len(rs.Rows))
}
