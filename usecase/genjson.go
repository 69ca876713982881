package usecase

import (
	"encoding/json"
	"strings"
)

// StripCodeFence removes markdown code-fence markers that generation models
// wrap JSON responses in despite being told not to.
func StripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

// coerceList decodes a JSON value that should be an array but may arrive as
// a single object, null, or garbage. A single object becomes a one-element
// slice; anything undecodable becomes an empty slice.
func coerceList[T any](raw json.RawMessage) []T {
	if len(raw) == 0 || string(raw) == "null" {
		return []T{}
	}
	var list []T
	if err := json.Unmarshal(raw, &list); err == nil {
		if list == nil {
			return []T{}
		}
		return list
	}
	var single T
	if err := json.Unmarshal(raw, &single); err == nil {
		return []T{single}
	}
	return []T{}
}

// coerceString returns the decoded string or "" when the value is missing
// or not a string.
func coerceString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// coerceScore returns the decoded number rounded to an int and clamped to
// the 0-100 score range, or 0.
func coerceScore(raw json.RawMessage) int {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	if f < 0 {
		return 0
	}
	if f > 100 {
		return 100
	}
	return int(f + 0.5)
}
