package reply

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Map returns v as an object, or nil.
func Map(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// String reads m[key] as text. Numbers and booleans are formatted; objects
// and lists are re-encoded as JSON; null and missing keys yield "".
func String(m map[string]any, key string) string {
	return Text(m[key])
}

// Text renders a decoded JSON value as a string.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// StringSlice reads m[key] as a list of strings. A single string becomes a
// one-element list; non-scalar entries are skipped.
func StringSlice(m map[string]any, key string) []string {
	switch x := m[key].(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			switch e.(type) {
			case string, float64, bool:
				if s := Text(e); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	case string:
		if x == "" {
			return []string{}
		}
		return []string{x}
	}
	return []string{}
}

// Bool reads m[key] with JSON-ish truthiness: booleans as-is, non-zero
// numbers, and strings such as "true" or "oui".
func Bool(m map[string]any, key string) bool {
	switch x := m[key].(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "vrai", "yes", "oui", "1":
			return true
		}
	}
	return false
}
