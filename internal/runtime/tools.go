package runtime

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/knowsee/knowsee/internal/analyst"
	"github.com/knowsee/knowsee/internal/sidechannel"
)

// ToolSet exposes callable functions to the model. Declarations are
// advertised on every request; Call dispatches a function call emitted
// by the model. Results are payloads for the model, never Go errors: a
// failed tool call is information, not a failed turn.
type ToolSet interface {
	Declarations() []*genai.FunctionDeclaration
	Call(ctx context.Context, sessionID, name string, args map[string]any) map[string]any
}

// AnalystTools exposes the analyst service as model-callable functions.
// Query results stage widgets and attempt records on the session's
// side-channel buffer, which the embedder drains after the run.
type AnalystTools struct {
	svc     *analyst.Service
	buffers *sidechannel.Registry
}

// NewAnalystTools wires the analyst service to the session buffers.
func NewAnalystTools(svc *analyst.Service, buffers *sidechannel.Registry) *AnalystTools {
	return &AnalystTools{svc: svc, buffers: buffers}
}

// Declarations implements ToolSet.
func (t *AnalystTools) Declarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name: "query_data",
			Description: "Run a SQL query against the data warehouse. " +
				"The result is also rendered as a dashboard widget for the user.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"query": {Type: genai.TypeString, Description: "The SQL query to execute."},
					"title": {Type: genai.TypeString, Description: "Short title for the resulting widget."},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "describe_table",
			Description: "Get the schema, sample rows, and approximate row count of a table.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"table_id": {Type: genai.TypeString, Description: "Schema-qualified table name, e.g. 'sales.orders'."},
				},
				Required: []string{"table_id"},
			},
		},
		{
			Name:        "list_datasets",
			Description: "List the schemas and tables available for querying.",
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: map[string]*genai.Schema{},
			},
		},
	}
}

// Call implements ToolSet.
func (t *AnalystTools) Call(ctx context.Context, sessionID, name string, args map[string]any) map[string]any {
	switch name {
	case "query_data":
		buf := t.buffers.ForSession(sessionID)
		return t.svc.QueryData(ctx, buf, stringArg(args, "query"), stringArg(args, "title"))
	case "describe_table":
		return t.svc.DescribeTable(ctx, stringArg(args, "table_id"))
	case "list_datasets":
		return t.svc.ListDatasets(ctx)
	}
	return map[string]any{
		"success": false,
		"error":   fmt.Sprintf("unknown tool: %s", name),
	}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
