package database

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromDriver(t *testing.T) {
	ts := time.Date(2024, 9, 1, 8, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null()},
		{"int64", int64(42), Int(42)},
		{"int32", int32(-7), Int(-7)},
		{"uint8", uint8(200), Int(200)},
		{"huge uint64", uint64(1<<64 - 1), Text("18446744073709551615")},
		{"float64", 3.25, Real(3.25)},
		{"float32", float32(0.5), Real(0.5)},
		{"true", true, Int(1)},
		{"false", false, Int(0)},
		{"string", "Alice", Text("Alice")},
		{"utf8 bytes", []byte("Bob"), Text("Bob")},
		{"binary bytes", []byte{0xff, 0xfe, 0x00}, Blob([]byte{0xff, 0xfe, 0x00})},
		{"time", ts, Text("2024-09-01T08:30:00Z")},
		{"unknown type", big.NewInt(12), Text("12")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromDriver(tt.in))
		})
	}
}

func TestValueRendering(t *testing.T) {
	tests := []struct {
		v        Value
		str      string
		literal  string
		argument any
	}{
		{Null(), "NULL", "NULL", nil},
		{Int(3), "3", "3", int64(3)},
		{Real(2.5), "2.5", "2.5", 2.5},
		{Text("O'Brien"), "O'Brien", "'O''Brien'", "O'Brien"},
		{Blob([]byte{0x01, 0xab}), "x'01ab'", "x'01ab'", []byte{0x01, 0xab}},
	}
	for _, tt := range tests {
		t.Run(tt.v.Kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.str, tt.v.String())
			assert.Equal(t, tt.literal, tt.v.Literal())
			assert.Equal(t, tt.argument, tt.v.Interface())
		})
	}
	assert.True(t, Null().IsNull())
	assert.False(t, Int(0).IsNull())
}

func TestColumnIndex(t *testing.T) {
	rs := ResultSet{Columns: []string{"ID", "Name"}}
	assert.Equal(t, 0, rs.ColumnIndex("id"))
	assert.Equal(t, 1, rs.ColumnIndex("NAME"))
	assert.Equal(t, -1, rs.ColumnIndex("grade"))
}
