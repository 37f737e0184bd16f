package database

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind tags the payload carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindReal
	KindText
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInteger:
		return "INTEGER"
	case KindReal:
		return "REAL"
	case KindText:
		return "TEXT"
	case KindBlob:
		return "BLOB"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a single scalar read from or written to the store.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Str   string
	Bytes []byte
}

func Null() Value            { return Value{Kind: KindNull} }
func Int(i int64) Value      { return Value{Kind: KindInteger, Int: i} }
func Real(f float64) Value   { return Value{Kind: KindReal, Float: f} }
func Text(s string) Value    { return Value{Kind: KindText, Str: s} }
func Blob(b []byte) Value    { return Value{Kind: KindBlob, Bytes: b} }
func (v Value) IsNull() bool { return v.Kind == KindNull }

// FromDriver converts a value produced by database/sql scanning into a Value.
func FromDriver(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case int64:
		return Int(x)
	case int:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case uint32:
		return Int(int64(x))
	case uint16:
		return Int(int64(x))
	case uint8:
		return Int(int64(x))
	case uint64:
		if x <= 1<<63-1 {
			return Int(int64(x))
		}
		return Text(strconv.FormatUint(x, 10))
	case float64:
		return Real(x)
	case float32:
		return Real(float64(x))
	case bool:
		if x {
			return Int(1)
		}
		return Int(0)
	case string:
		return Text(x)
	case []byte:
		if utf8.Valid(x) {
			return Text(string(x))
		}
		b := make([]byte, len(x))
		copy(b, x)
		return Blob(b)
	case time.Time:
		return Text(x.Format(time.RFC3339))
	default:
		return Text(fmt.Sprint(x))
	}
}

// Interface returns the value as a driver argument.
func (v Value) Interface() any {
	switch v.Kind {
	case KindInteger:
		return v.Int
	case KindReal:
		return v.Float
	case KindText:
		return v.Str
	case KindBlob:
		return v.Bytes
	}
	return nil
}

// String renders the value for display. NULL renders as "NULL".
func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindReal:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindText:
		return v.Str
	case KindBlob:
		return "x'" + hex.EncodeToString(v.Bytes) + "'"
	}
	return "NULL"
}

// Literal renders the value the way it would appear in a SQL statement.
func (v Value) Literal() string {
	if v.Kind == KindText {
		return "'" + strings.ReplaceAll(v.Str, "'", "''") + "'"
	}
	return v.String()
}

// Row is one result row, in result column order.
type Row []Value

// ResultSet is a fully materialised query result.
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// ColumnIndex finds a column by case-insensitive name, or returns -1.
func (r ResultSet) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}
