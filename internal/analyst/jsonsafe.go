package analyst

import (
	"time"
)

// toJSONSafe converts a database/sql scan value into something
// encoding/json can handle without surprises: timestamps become
// ISO 8601 strings and raw byte slices become UTF-8 strings. lib/pq
// returns numerics and text as []byte, so without this every cell
// would serialize as base64.
func toJSONSafe(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return v.Format(time.RFC3339)
	case []byte:
		return string(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = toJSONSafe(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = toJSONSafe(item)
		}
		return out
	default:
		return v
	}
}

func rowToJSONSafe(row []any) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = toJSONSafe(v)
	}
	return out
}
