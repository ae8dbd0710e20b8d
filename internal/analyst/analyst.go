// Package analyst implements the SQL tools backing the data analyst
// agent: ad-hoc queries with dashboard widget generation, table
// schema inspection, and catalog discovery.
//
// Every query attempt, successful or not, is staged on the session
// side channel so the frontend can show the full attempt history.
// Tool errors are returned as structured payloads rather than Go
// errors: a failed query is information for the model, not a failed
// turn.
package analyst

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/knowsee/knowsee/internal/sidechannel"
	"github.com/knowsee/knowsee/pkg/models"
)

// TableDisplayLimit caps tabular rendering in the frontend. Charts use
// the full result set.
const TableDisplayLimit = 1000

const sampleRowLimit = 5

// Service executes analyst queries against the warehouse.
type Service struct {
	db     *sql.DB
	logger *slog.Logger
	newID  func() string
}

// NewService creates an analyst service. If logger is nil,
// slog.Default() is used.
func NewService(db *sql.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:     db,
		logger: logger.With("component", "analyst"),
		newID:  uuid.NewString,
	}
}

// QueryData runs a SQL query, stages a dashboard widget and the
// attempt record on the session buffer, and returns the tool payload.
// Failures are recorded as attempts and reported in the payload.
func (s *Service) QueryData(ctx context.Context, buf *sidechannel.Buffer, query, title string) map[string]any {
	preview := query
	if len(preview) > 200 {
		preview = preview[:200]
	}
	s.logger.Info("executing analyst query", "query", preview)

	columns, rows, err := s.runQuery(ctx, query)
	if err != nil {
		s.logger.Error("query execution failed", "error", err)
		buf.AddQueryAttempt(models.QueryAttempt{
			Query:   query,
			Success: false,
			Error:   err.Error(),
		})
		return map[string]any{
			"success": false,
			"error":   fmt.Sprintf("Query failed: %v", err),
		}
	}

	totalRows := len(rows)
	suggested := SuggestChartType(columns, totalRows)

	buf.AddQueryAttempt(models.QueryAttempt{
		Query:    query,
		Success:  true,
		RowCount: totalRows,
	})

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}

	if title == "" {
		title = ExtractTitleFromQuery(query)
	}
	widget := models.Widget{
		ID:                s.newID(),
		QueryID:           s.newID(),
		Title:             title,
		ChartType:         suggested,
		Data:              models.WidgetData{Columns: names, Rows: rows},
		Query:             query,
		TotalRows:         totalRows,
		TableDisplayLimit: TableDisplayLimit,
	}
	buf.AddWidget(widget)

	s.logger.Info("query complete", "rows", totalRows, "widget_id", widget.ID)

	return map[string]any{
		"success":         true,
		"query":           query,
		"columns":         names,
		"row_count":       totalRows,
		"suggested_chart": suggested,
		"widget_id":       widget.ID,
	}
}

// DescribeTable returns the schema, a sample of rows, and an
// approximate row count for one table. tableID is schema-qualified
// ("schema.table").
func (s *Service) DescribeTable(ctx context.Context, tableID string) map[string]any {
	parts := strings.Split(tableID, ".")
	if len(parts) != 2 {
		return map[string]any{
			"success": false,
			"error":   fmt.Sprintf("Invalid table_id format. Expected 'schema.table', got %q", tableID),
		}
	}
	schema, table := parts[0], parts[1]

	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		s.logger.Error("describe table failed", "table_id", tableID, "error", err)
		return map[string]any{
			"success": false,
			"error":   fmt.Sprintf("Failed to describe table: %v", err),
		}
	}
	defer rows.Close()

	var columns []map[string]any
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return map[string]any{
				"success": false,
				"error":   fmt.Sprintf("Failed to describe table: %v", err),
			}
		}
		columns = append(columns, map[string]any{
			"name":     name,
			"type":     dataType,
			"nullable": nullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return map[string]any{
			"success": false,
			"error":   fmt.Sprintf("Failed to describe table: %v", err),
		}
	}
	if len(columns) == 0 {
		return map[string]any{
			"success": false,
			"error":   fmt.Sprintf("Table %q not found", tableID),
		}
	}

	result := map[string]any{
		"success":  true,
		"table_id": tableID,
		"columns":  columns,
	}

	sampleCols, sampleRows, err := s.runQuery(ctx,
		fmt.Sprintf("SELECT * FROM %s LIMIT %d", pq.QuoteIdentifier(schema)+"."+pq.QuoteIdentifier(table), sampleRowLimit))
	if err == nil {
		names := make([]string, len(sampleCols))
		for i, c := range sampleCols {
			names[i] = c.Name
		}
		result["sample_data"] = map[string]any{
			"columns": names,
			"rows":    sampleRows,
		}
	} else {
		s.logger.Warn("sample query failed", "table_id", tableID, "error", err)
	}

	var rowCount any = "Unknown"
	var estimate sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		SELECT reltuples::bigint
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2`, schema, table).Scan(&estimate)
	if err == nil && estimate.Valid && estimate.Int64 >= 0 {
		rowCount = estimate.Int64
	}
	result["row_count"] = rowCount

	return result
}

// ListDatasets enumerates the schemas and tables the service account
// can see, excluding system catalogs.
func (s *Service) ListDatasets(ctx context.Context) map[string]any {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name`)
	if err != nil {
		s.logger.Error("list datasets failed", "error", err)
		return map[string]any{
			"success": false,
			"error":   fmt.Sprintf("Failed to list datasets: %v", err),
		}
	}
	defer rows.Close()

	grouped := map[string][]map[string]any{}
	var order []string
	for rows.Next() {
		var schema, table, tableType string
		if err := rows.Scan(&schema, &table, &tableType); err != nil {
			return map[string]any{
				"success": false,
				"error":   fmt.Sprintf("Failed to list datasets: %v", err),
			}
		}
		if _, seen := grouped[schema]; !seen {
			order = append(order, schema)
		}
		grouped[schema] = append(grouped[schema], map[string]any{
			"table_id": schema + "." + table,
			"type":     tableType,
		})
	}
	if err := rows.Err(); err != nil {
		return map[string]any{
			"success": false,
			"error":   fmt.Sprintf("Failed to list datasets: %v", err),
		}
	}

	datasets := make([]map[string]any, 0, len(order))
	for _, schema := range order {
		datasets = append(datasets, map[string]any{
			"dataset_id": schema,
			"tables":     grouped[schema],
		})
	}

	return map[string]any{
		"success":  true,
		"datasets": datasets,
	}
}

// runQuery executes a query and returns typed column descriptors plus
// JSON-safe row values.
func (s *Service) runQuery(ctx context.Context, query string) ([]Column, [][]any, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, fmt.Errorf("read column types: %w", err)
	}
	columns := make([]Column, len(types))
	for i, ct := range types {
		columns[i] = Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, rowToJSONSafe(values))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, out, nil
}
