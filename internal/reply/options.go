package reply

import "strconv"

// Option is one answer choice of a multiple-choice exercise.
type Option struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	IsCorrect   bool   `json:"is_correct"`
	Explanation string `json:"explanation"`
}

// PlaceholderOptions is served when a reply carries no usable options.
func PlaceholderOptions() []Option {
	return []Option{
		{ID: "A", Text: "Option 1", IsCorrect: true},
		{ID: "B", Text: "Option 2", IsCorrect: false},
	}
}

// NormalizeOptions coerces the "options" value of an exercise reply.
// Entries that are not objects are dropped; a missing id takes the letter
// of the entry's position. A missing, non-list, empty or all-invalid input
// yields PlaceholderOptions.
func NormalizeOptions(v any) []Option {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return PlaceholderOptions()
	}

	out := make([]Option, 0, len(list))
	for i, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		id := String(m, "id")
		if id == "" {
			id = indexLetter(i)
		}
		out = append(out, Option{
			ID:          id,
			Text:        String(m, "text"),
			IsCorrect:   Bool(m, "is_correct"),
			Explanation: String(m, "explanation"),
		})
	}
	if len(out) == 0 {
		return PlaceholderOptions()
	}
	return out
}

// indexLetter maps 0 → "A" through 25 → "Z". Later positions use their
// 1-based number.
func indexLetter(i int) string {
	if i < 0 || i >= 26 {
		return strconv.Itoa(i + 1)
	}
	return string(rune('A' + i))
}
