package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTablesFlag(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    map[string][]string
		wantErr bool
	}{
		{name: "empty", input: "", want: map[string][]string{}},
		{name: "tables only", input: "students, teachers", want: map[string][]string{"students": nil, "teachers": nil}},
		{
			name:  "with columns",
			input: "students[name, grade],teachers",
			want:  map[string][]string{"students": {"name", "grade"}, "teachers": nil},
		},
		{name: "empty brackets", input: "students[]", want: map[string][]string{"students": nil}},
		{name: "missing bracket", input: "students[name", wantErr: true},
		{name: "missing table", input: "[name]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTablesFlag(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitOutsideBrackets(t *testing.T) {
	assert.Equal(t, []string{"a[b,c]", "d"}, SplitOutsideBrackets("a[b,c],d"))
	assert.Nil(t, SplitOutsideBrackets(""))
}

func TestGetDefaultOutputFilePath(t *testing.T) {
	assert.Equal(t, "excel_data_transcript.txt", GetDefaultOutputFilePath("excel_data.db", "ask"))
	assert.Equal(t, "school_schema.txt", GetDefaultOutputFilePath("/data/school.sqlite", "schema"))
	assert.Equal(t, "sheetquery_transcript.txt", GetDefaultOutputFilePath(":memory:", "ask"))
	assert.Equal(t, "sheetquery_schema.txt", GetDefaultOutputFilePath("", "schema"))
}

func TestConfirmAction(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, ConfirmAction(strings.NewReader("Y\n"), &out, "Replace table students"))
	assert.Contains(t, out.String(), "Replace table students")
	assert.False(t, ConfirmAction(strings.NewReader("no\n"), &out, "Replace"))
	assert.False(t, ConfirmAction(strings.NewReader(""), &out, "Replace"))
}

func TestReadSQLStatementsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "post.sql")
	script := "CREATE VIEW fifth AS SELECT * FROM students WHERE grade = 5;\r\n\n" +
		"CREATE INDEX idx_grade ON students (grade);\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o644))

	stmts, err := ReadSQLStatementsFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CREATE VIEW fifth AS SELECT * FROM students WHERE grade = 5",
		"CREATE INDEX idx_grade ON students (grade)",
	}, stmts)

	_, err = ReadSQLStatementsFromFile(filepath.Join(t.TempDir(), "missing.sql"))
	assert.Error(t, err)
}
