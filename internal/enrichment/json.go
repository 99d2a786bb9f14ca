package enrichment

import "strings"

// ExtractJSONObject returns the first balanced JSON object or array in text,
// dropping markdown fences and surrounding prose. Text without one is
// returned trimmed so the caller's decoder reports the error.
func ExtractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := findJSONStart(text)
	if start < 0 {
		return text
	}
	end := findJSONEnd(text[start:])
	if end < 0 {
		return text
	}
	return text[start : start+end+1]
}

// findJSONStart looks for the start of a JSON value in text.
func findJSONStart(text string) int {
	for i, ch := range text {
		if ch == '[' || ch == '{' {
			return i
		}
	}
	return -1
}

// findJSONEnd looks for the end of the JSON value starting at text[0].
func findJSONEnd(text string) int {
	depth := 0
	inString := false
	escape := false

	for i, ch := range text {
		if escape {
			escape = false
			continue
		}

		if ch == '\\' {
			escape = true
			continue
		}

		if ch == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		if ch == '[' || ch == '{' {
			depth++
		} else if ch == ']' || ch == '}' {
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}
