// Package coerce turns loosely structured values into maps.
//
// Values are tried in order: native map, strict JSON object text, Python
// literal text delimited by braces, and finally an opaque wrap under RawDataKey.
package coerce

import (
	"encoding/json"
	"fmt"
	"strings"

	"voicecapture/internal/models"
)

// RawDataKey holds input that could not be read as a mapping.
const RawDataKey = "raw_data"

// ToMap coerces v into a map. It never fails.
func ToMap(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case models.Record:
		return map[string]any(t)
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			out[k] = s
		}
		return out
	case string:
		return FromText(t)
	case []byte:
		return FromText(string(t))
	case json.RawMessage:
		return FromText(string(t))
	default:
		return map[string]any{RawDataKey: fmt.Sprint(v)}
	}
}

// FromText parses text as a JSON object, then as a Python literal dict, and
// wraps it under RawDataKey when neither works.
func FromText(text string) map[string]any {
	if m, ok := parseJSONObject(text); ok {
		return m
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		if m, err := ParseLiteralDict(trimmed); err == nil {
			return m
		}
	}
	return map[string]any{RawDataKey: text}
}

// IsWrapped reports whether m is the opaque RawDataKey fallback.
func IsWrapped(m map[string]any) bool {
	if len(m) != 1 {
		return false
	}
	_, ok := m[RawDataKey]
	return ok
}

func parseJSONObject(text string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(text), &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}
