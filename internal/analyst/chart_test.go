package analyst

import (
	"strings"
	"testing"
	"time"
)

func TestSuggestChartType(t *testing.T) {
	tests := []struct {
		name     string
		columns  []Column
		rowCount int
		want     string
	}{
		{
			name:     "single cell is a metric",
			columns:  []Column{{Name: "total", Type: "INT8"}},
			rowCount: 1,
			want:     "metric",
		},
		{
			name:     "single column many rows is a table",
			columns:  []Column{{Name: "name", Type: "TEXT"}},
			rowCount: 20,
			want:     "table",
		},
		{
			name:     "date-keyed result is a line chart",
			columns:  []Column{{Name: "day", Type: "DATE"}, {Name: "trips", Type: "INT8"}},
			rowCount: 30,
			want:     "line",
		},
		{
			name:     "timestamptz key is a line chart",
			columns:  []Column{{Name: "at", Type: "TIMESTAMPTZ"}, {Name: "count", Type: "INT8"}},
			rowCount: 12,
			want:     "line",
		},
		{
			name:     "small two-column categorical is a pie",
			columns:  []Column{{Name: "status", Type: "TEXT"}, {Name: "count", Type: "INT8"}},
			rowCount: 5,
			want:     "pie",
		},
		{
			name:     "large categorical is a bar",
			columns:  []Column{{Name: "city", Type: "TEXT"}, {Name: "count", Type: "INT8"}},
			rowCount: 40,
			want:     "bar",
		},
		{
			name:     "three columns small is a bar",
			columns:  []Column{{Name: "a", Type: "TEXT"}, {Name: "b", Type: "INT8"}, {Name: "c", Type: "INT8"}},
			rowCount: 3,
			want:     "bar",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SuggestChartType(tt.columns, tt.rowCount); got != tt.want {
				t.Errorf("SuggestChartType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractTitleFromQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "column list",
			query: "SELECT city, count(*) FROM trips GROUP BY city",
			want:  "Query: city, count(*)...",
		},
		{
			name:  "select star falls back",
			query: "SELECT * FROM trips",
			want:  "Query Result",
		},
		{
			name:  "multiline whitespace collapsed",
			query: "SELECT\n  day,\n  trips\nFROM daily",
			want:  "Query: day, trips...",
		},
		{
			name:  "long column list capped at 50 chars",
			query: "SELECT " + strings.Repeat("a", 60) + " FROM t",
			want:  "Query: " + strings.Repeat("a", 50) + "...",
		},
		{
			name:  "no from clause",
			query: "VACUUM",
			want:  "Query Result",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractTitleFromQuery(tt.query); got != tt.want {
				t.Errorf("ExtractTitleFromQuery = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToJSONSafe(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	row := []any{ts, []byte("42.5"), nil, int64(7)}

	got := rowToJSONSafe(row)
	if got[0] != "2026-03-01T12:00:00Z" {
		t.Errorf("time = %v", got[0])
	}
	if got[1] != "42.5" {
		t.Errorf("bytes = %v", got[1])
	}
	if got[2] != nil {
		t.Errorf("nil = %v", got[2])
	}
	if got[3] != int64(7) {
		t.Errorf("int = %v", got[3])
	}
}
