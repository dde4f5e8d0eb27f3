// Package reply turns untrusted model output into JSON values. Nothing in
// this package returns an error or panics on bad input; callers choose
// their own fallback when decoding fails.
package reply

import (
	"encoding/json"
	"strings"
)

const fence = "```"

// Decode extracts a JSON value from a model reply. When the reply contains
// a Markdown code fence, only the interior of the first block is parsed (a
// block tagged json is preferred). It returns false when no strict JSON
// value can be read.
func Decode(raw string) (any, bool) {
	text := Unfence(raw)
	if text == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, false
	}
	return v, true
}

// DecodeObject is Decode restricted to JSON objects.
func DecodeObject(raw string) (map[string]any, bool) {
	v, ok := Decode(raw)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// Unfence returns the trimmed interior of the first code block in raw, or
// raw trimmed when it has no fence. An unterminated block runs to the end.
func Unfence(raw string) string {
	text := strings.TrimSpace(raw)

	start := strings.Index(text, fence+"json")
	if start >= 0 {
		start += len(fence + "json")
	} else if start = strings.Index(text, fence); start >= 0 {
		start += len(fence)
	} else {
		return text
	}

	body := text[start:]
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}
