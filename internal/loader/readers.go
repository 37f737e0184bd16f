package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"
)

const (
	extXLSX    = ".xlsx"
	extCSV     = ".csv"
	extParquet = ".parquet"
)

// Supported reports whether name has an extension the loader can read.
// Office lock files ("~$book.xlsx") are ignored.
func Supported(name string) bool {
	if strings.HasPrefix(path.Base(name), "~$") {
		return false
	}
	switch strings.ToLower(path.Ext(name)) {
	case extXLSX, extCSV, extParquet:
		return true
	}
	return false
}

// grid is a header row followed by data rows, all as cell text.
// An empty string is a missing value.
type grid struct {
	header []string
	rows   [][]string
}

func readGrid(name string, r io.Reader) (grid, error) {
	var records [][]string
	var err error
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case extXLSX:
		records, err = readXLSX(r)
	case extCSV:
		records, err = readCSV(r)
	case extParquet:
		return readParquet(r)
	default:
		return grid{}, fmt.Errorf("unsupported file type %q", ext)
	}
	if err != nil {
		return grid{}, err
	}
	if len(records) == 0 {
		return grid{}, errors.New("no header row")
	}
	return grid{header: records[0], rows: records[1:]}, nil
}

// readXLSX returns the rows of the first sheet.
func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return records, nil
}

// readParquet flattens the leaf columns of a parquet file. Nested column
// paths are joined with dots.
func readParquet(r io.Reader) (grid, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return grid{}, fmt.Errorf("failed to read parquet data: %w", err)
	}
	f, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return grid{}, fmt.Errorf("failed to open parquet file: %w", err)
	}
	reader := parquet.NewReader(f)
	defer reader.Close()

	var g grid
	for _, columnPath := range reader.Schema().Columns() {
		g.header = append(g.header, strings.Join(columnPath, "."))
	}
	if len(g.header) == 0 {
		return grid{}, errors.New("no header row")
	}

	buf := make([]parquet.Row, 128)
	for {
		n, err := reader.ReadRows(buf)
		for _, row := range buf[:n] {
			cells := make([]string, len(g.header))
			for _, v := range row {
				if c := v.Column(); c >= 0 && c < len(cells) && !v.IsNull() {
					cells[c] = parquetText(v)
				}
			}
			g.rows = append(g.rows, cells)
		}
		if errors.Is(err, io.EOF) {
			return g, nil
		}
		if err != nil {
			return grid{}, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
}

func parquetText(v parquet.Value) string {
	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			return "1"
		}
		return "0"
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'f', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
