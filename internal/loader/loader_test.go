package loader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/GoogleCloudPlatform/sheetquery/internal/config"
	"github.com/GoogleCloudPlatform/sheetquery/internal/database"
	_ "github.com/GoogleCloudPlatform/sheetquery/internal/database/sqlite"
	"github.com/GoogleCloudPlatform/sheetquery/internal/observability"
)

// filesCounted reads the loader file counter for result from the default registry.
func filesCounted(t *testing.T, result string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "sheetquery_files_loaded_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "result" && lp.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func openStore(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(context.Background(), config.DatabaseConfig{Dialect: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func writeXLSX(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
}

type parquetScore struct {
	Name  string  `parquet:"name"`
	Score float64 `parquet:"score"`
}

func parquetBytes(t *testing.T, rows []parquetScore) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	w := parquet.NewGenericWriter[parquetScore](buf)
	_, err := w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestSanitizeTableName(t *testing.T) {
	tests := map[string]string{
		"students.xlsx":        "students",
		"Class List.xlsx":      "Class_List",
		"grade-5 roster.csv":   "grade_5_roster",
		"reports/2024/q1.xlsx": "q1",
		"archive.2024.parquet": "archive.2024",
		"no_extension":         "no_extension",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeTableName(in), in)
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.xlsx"))
	assert.True(t, Supported("a.CSV"))
	assert.True(t, Supported("dir/a.parquet"))
	assert.False(t, Supported("a.xls"))
	assert.False(t, Supported("~$a.xlsx"))
	assert.False(t, Supported("notes.txt"))
}

func TestNormalizeHeader(t *testing.T) {
	got := normalizeHeader([]string{" name ", "", "Name", "name_2", "grade"}, 6)
	assert.Equal(t, []string{"name", "column_2", "Name_2", "name_2_2", "grade", "column_6"}, got)
}

func TestInferKind(t *testing.T) {
	assert.Equal(t, database.KindInteger, inferKind([]string{"1", "", " 42 "}))
	assert.Equal(t, database.KindReal, inferKind([]string{"1", "2.5"}))
	assert.Equal(t, database.KindText, inferKind([]string{"1", "two"}))
	assert.Equal(t, database.KindText, inferKind([]string{"", " "}))
}

func TestBuildTable(t *testing.T) {
	cols, rows := buildTable(grid{
		header: []string{"name", "grade"},
		rows: [][]string{
			{"Alice", "5"},
			{"", ""},
			{"Bob"},
			{"Cara", "4", "extra"},
		},
	})
	assert.Equal(t, []database.ColumnDef{
		{Name: "name", Kind: database.KindText},
		{Name: "grade", Kind: database.KindInteger},
		{Name: "column_3", Kind: database.KindText},
	}, cols)
	require.Len(t, rows, 3)
	assert.Equal(t, database.Row{database.Text("Alice"), database.Int(5), database.Null()}, rows[0])
	assert.Equal(t, database.Row{database.Text("Bob"), database.Null(), database.Null()}, rows[1])
	assert.Equal(t, database.Text("extra"), rows[2][2])
}

func TestLoadDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	writeXLSX(t, filepath.Join(dir, "grade-5 students.xlsx"), [][]any{
		{"name", "grade", "gpa"},
		{"Alice", 5, 3.5},
		{"Bob", 5, 3},
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "teachers.csv"), []byte("name,room\nMs. Lee,101\nMr. Park,\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scores.parquet"), parquetBytes(t, []parquetScore{{"Alice", 91.5}, {"Bob", 78}}), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.xlsx"), []byte("not a workbook"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignored"), 0o644))

	db := openStore(t)
	failedBefore := filesCounted(t, observability.FileFailed)
	report, err := LoadDir(ctx, db, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Loaded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, failedBefore+1, filesCounted(t, observability.FileFailed))
	assert.Equal(t, []string{"grade_5_students", "scores", "teachers"}, report.Tables)

	tables, err := db.ListTables(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"grade_5_students", "scores", "teachers"}, tables)

	cols, err := db.ListColumns(ctx, "grade_5_students")
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "INTEGER", cols[1].DataType)
	assert.Equal(t, "REAL", cols[2].DataType)

	rs, err := db.Query(ctx, "SELECT COUNT(*) FROM grade_5_students WHERE grade = 5")
	require.NoError(t, err)
	assert.Equal(t, database.Int(2), rs.Rows[0][0])

	rs, err = db.Query(ctx, "SELECT room FROM teachers ORDER BY name")
	require.NoError(t, err)
	assert.True(t, rs.Rows[0][0].IsNull())
	assert.Equal(t, database.Int(101), rs.Rows[1][0])

	rs, err = db.Query(ctx, "SELECT score FROM scores WHERE name = 'Alice'")
	require.NoError(t, err)
	assert.Equal(t, database.Real(91.5), rs.Rows[0][0])
}

func TestLoadReplacesExistingTable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "teachers.csv")
	db := openStore(t)

	require.NoError(t, os.WriteFile(path, []byte("name\nA\nB\n"), 0o644))
	_, err := LoadDir(ctx, db, dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("name\nC\n"), 0o644))
	_, err = LoadDir(ctx, db, dir)
	require.NoError(t, err)

	rs, err := db.Query(ctx, "SELECT name FROM teachers")
	require.NoError(t, err)
	assert.Equal(t, []database.Row{{database.Text("C")}}, rs.Rows)
}

func TestLoadConfirm(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "teachers.csv"), []byte("name\nNew\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rooms.csv"), []byte("room\n1\n"), 0o644))

	db := openStore(t)
	require.NoError(t, db.ExecuteSQLStatements(ctx, []string{
		`CREATE TABLE teachers (name TEXT)`,
		`INSERT INTO teachers VALUES ('Old')`,
	}))

	skippedBefore := filesCounted(t, observability.FileSkipped)
	loadedBefore := filesCounted(t, observability.FileLoaded)
	var asked []string
	report, err := LoadDir(ctx, db, dir, WithConfirm(func(table string) bool {
		asked = append(asked, table)
		return false
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"teachers"}, asked)
	assert.Equal(t, 1, report.Loaded)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, skippedBefore+1, filesCounted(t, observability.FileSkipped))
	assert.Equal(t, loadedBefore+1, filesCounted(t, observability.FileLoaded))

	rs, err := db.Query(ctx, "SELECT name FROM teachers")
	require.NoError(t, err)
	assert.Equal(t, database.Text("Old"), rs.Rows[0][0])
}

func TestLoadMissingDir(t *testing.T) {
	_, err := LoadDir(context.Background(), openStore(t), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

type fakeObjects struct {
	objects map[string]string
	listErr error
	prefix  string
}

func (f *fakeObjects) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	f.prefix = prefix
	if f.listErr != nil {
		return nil, f.listErr
	}
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (f *fakeObjects) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func TestBucketSource(t *testing.T) {
	ctx := context.Background()
	client := &fakeObjects{objects: map[string]string{
		"school/students.csv": "name,grade\nAlice,5\n",
		"school/notes.txt":    "skip",
		"school/sub/":         "",
		"other/rooms.csv":     "room\n1\n",
	}}
	src, err := NewBucketSourceWithClient("data", "/school/", client)
	require.NoError(t, err)
	assert.Equal(t, "s3://data/school", src.String())

	names, err := src.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "school/", client.prefix)
	assert.Equal(t, []string{"school/students.csv"}, names)

	db := openStore(t)
	report, err := New(db).Load(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, []string{"students"}, report.Tables)

	client.listErr = errors.New("access denied")
	_, err = New(db).Load(ctx, src)
	assert.ErrorContains(t, err, "access denied")
}

func TestNewSource(t *testing.T) {
	src, err := NewSource(config.LoaderConfig{Dir: "school_data"})
	require.NoError(t, err)
	assert.Equal(t, DirSource{Dir: "school_data"}, src)

	_, err = NewSource(config.LoaderConfig{})
	assert.Error(t, err)

	_, err = NewSource(config.LoaderConfig{Bucket: "data"})
	assert.ErrorContains(t, err, "endpoint is required")

	_, err = NewBucketSourceWithClient(" ", "", &fakeObjects{})
	assert.Error(t, err)
}

func TestParseEndpoint(t *testing.T) {
	host, secure, err := parseEndpoint("https://minio.local:9000", false)
	require.NoError(t, err)
	assert.Equal(t, "minio.local:9000", host)
	assert.True(t, secure)

	host, secure, err = parseEndpoint("localhost:9000", false)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", host)
	assert.False(t, secure)
}
