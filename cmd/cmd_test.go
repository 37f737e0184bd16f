package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/sheetquery/internal/database"
	"github.com/GoogleCloudPlatform/sheetquery/internal/pipeline"
	"github.com/GoogleCloudPlatform/sheetquery/internal/session"
)

// resetFlags puts every flag back to its default so commands can be run
// repeatedly in one process.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	configFile = ""
	appConfig = nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadAndSchemaCommands(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "school_data")
	require.NoError(t, os.Mkdir(dataDir, 0o755))
	writeFile(t, filepath.Join(dataDir, "students.csv"), "name,grade\nAlice,5\nBob,4\n")
	writeFile(t, filepath.Join(dataDir, "class rooms.csv"), "room,floor\n101,1\n")
	postSQL := filepath.Join(dir, "post.sql")
	writeFile(t, postSQL, "CREATE VIEW fifth AS SELECT name FROM students WHERE grade = 5;\n")
	dbPath := filepath.Join(dir, "excel_data.db")

	out, err := run(t, "", "load", "--dialect", "sqlite", "--database", dbPath, "--dir", dataDir, "--post-sql", postSQL)
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 2 file(s)")
	assert.Equal(t, dbPath, appConfig.Database.DBName)

	out, err = run(t, "", "schema", "--database", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Table: class_rooms\nColumns: room (INTEGER), floor (INTEGER)\n")
	assert.Contains(t, out, "Table: students\nColumns: name (TEXT), grade (INTEGER)\n")

	schemaFile := filepath.Join(dir, "schema.txt")
	out, err = run(t, "", "schema", "--database", dbPath, "--out_file", schemaFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Schema written to: "+schemaFile)
	content, err := os.ReadFile(schemaFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Table: students")
}

func TestLoadConfirmDeclined(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "students.csv"), "name\nNew\n")
	dbPath := filepath.Join(dir, "data.db")

	_, err := run(t, "", "load", "--database", dbPath, "--dir", dir)
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "students.csv"), "name\nNewer\n")
	out, err := run(t, "no\n", "load", "--database", dbPath, "--dir", dir, "--confirm")
	require.NoError(t, err)
	assert.Contains(t, out, "Table students already exists")
	assert.Contains(t, out, "(0 failed, 1 skipped)")
}

func TestInvalidConfiguration(t *testing.T) {
	_, err := run(t, "", "schema", "--dialect", "oracle")
	assert.ErrorContains(t, err, "unsupported dialect: oracle")

	_, err = run(t, "", "load", "--dir", filepath.Join(t.TempDir(), "missing"), "--database", ":memory:")
	assert.Error(t, err)
}

func TestAskRejectsBadTables(t *testing.T) {
	_, err := run(t, "", "ask", "--database", ":memory:", "--tables", "students[name")
	assert.ErrorContains(t, err, "invalid --tables value")
}

type scriptedAsker struct{}

func (scriptedAsker) SchemaText() string { return "" }

func (scriptedAsker) Ask(ctx context.Context, q string) *pipeline.Answer {
	return &pipeline.Answer{
		Question:    q,
		SQL:         "SELECT 1",
		Result:      pipeline.QueryResult{ResultSet: database.ResultSet{Columns: []string{"1"}, Rows: []database.Row{{database.Int(1)}}}},
		Explanation: "One.",
		State:       pipeline.StateDone,
	}
}

func TestAnswerAll(t *testing.T) {
	var out, transcript bytes.Buffer
	err := answerAll(context.Background(), &out, scriptedAsker{}, []string{"first?", "second?"}, session.Options{Transcript: &transcript})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out.String(), "Answer:\nOne."))
	assert.Contains(t, out.String(), "Question: second?")
	assert.Equal(t, 2, strings.Count(transcript.String(), "Question: "))
}
