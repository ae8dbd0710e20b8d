package analyst

import (
	"regexp"
	"strings"
)

// Column describes one result column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SuggestChartType picks a visualization from the result shape. A
// single cell renders as a headline metric, a time-keyed result as a
// line chart, a small two-column categorical result as a pie.
func SuggestChartType(columns []Column, rowCount int) string {
	if rowCount == 1 && len(columns) == 1 {
		return "metric"
	}
	if len(columns) < 2 {
		return "table"
	}

	switch strings.ToUpper(columns[0].Type) {
	case "DATE", "TIMESTAMP", "TIMESTAMPTZ", "DATETIME":
		return "line"
	}

	if rowCount <= 7 && len(columns) == 2 {
		return "pie"
	}
	return "bar"
}

var selectClauseRe = regexp.MustCompile(`(?is)SELECT\s+(.+?)\s+FROM`)

// ExtractTitleFromQuery derives a widget title from the SELECT clause,
// capped at 50 characters. Falls back to a generic title for SELECT *
// and unparseable queries.
func ExtractTitleFromQuery(query string) string {
	match := selectClauseRe.FindStringSubmatch(query)
	if match != nil {
		columns := strings.TrimSpace(match[1])
		columns = strings.Join(strings.Fields(columns), " ")
		if len(columns) > 50 {
			columns = columns[:50]
		}
		if columns != "*" {
			return "Query: " + columns + "..."
		}
	}
	return "Query Result"
}
