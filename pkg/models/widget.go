package models

// WidgetData holds the tabular result backing a widget.
type WidgetData struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Widget is a chart/table visualization built from a successful query.
// Widgets accumulate in the widgets side channel and are embedded into
// the response as one tag per widget, in insertion order.
type Widget struct {
	ID                string     `json:"id"`
	QueryID           string     `json:"query_id"`
	Title             string     `json:"title"`
	ChartType         string     `json:"chart_type"`
	Data              WidgetData `json:"data"`
	Query             string     `json:"query"`
	TotalRows         int        `json:"total_rows"`
	TableDisplayLimit int        `json:"table_display_limit"`
	BytesProcessed    int64      `json:"bytes_processed"`
}

// QueryAttempt records one query execution, successful or not. The
// full attempt history for a turn is embedded as a single tag.
type QueryAttempt struct {
	Query          string `json:"query"`
	Success        bool   `json:"success"`
	Error          string `json:"error"`
	BytesProcessed int64  `json:"bytes_processed"`
	RowCount       int    `json:"row_count"`
}
