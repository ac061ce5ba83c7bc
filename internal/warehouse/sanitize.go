package warehouse

import (
	"encoding/base64"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cast"
)

// Sanitize converts one warehouse field value into a JSON-safe primitive:
// temporal types become ISO-8601 strings, NaN/Inf floats and other
// unrecognised values (e.g. big.Rat from NUMERIC columns) become their string
// form, binary values become base64 strings, and nil stays nil. It is
// applied both at the executor boundary (primary) and again at the client
// boundary (defence in depth) — both call sites share this single function
// so the two layers never diverge.
//
// A field that cannot be converted degrades to its best-effort string
// representation rather than failing the whole row.
func Sanitize(field string, v any) any {
	if v == nil {
		return nil
	}

	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case float32:
		return sanitizeFloat(field, float64(x))
	case float64:
		return sanitizeFloat(field, x)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return v
	case bool, string:
		return v
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, nested := range x {
			out[k] = Sanitize(field+"."+k, nested)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, nested := range x {
			out[i] = Sanitize(field, nested)
		}
		return out
	default:
		// Scientific-library numeric scalars (e.g. big.Rat from NUMERIC
		// columns) and anything else unforeseen: best-effort string fallback,
		// never a hard failure.
		s, err := cast.ToStringE(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return s
	}
}

func sanitizeFloat(field string, f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		// JSON has no representation for NaN/Inf; degrade to string so
		// encoding never fails.
		return fmt.Sprintf("%v", f)
	}
	return f
}

// SanitizeRow applies Sanitize to every field of a raw row map.
func SanitizeRow(raw map[string]any) Row {
	out := make(Row, len(raw))
	for k, v := range raw {
		out[k] = Sanitize(k, v)
	}
	return out
}
