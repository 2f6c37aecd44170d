package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var pythonFence = regexp.MustCompile("(?s)```python\n(.*?)```")

// StripCodeFences removes surrounding Markdown fences and whitespace from a
// model response.
func StripCodeFences(text string) string {
	cleaned := strings.TrimSpace(text)

	if strings.HasPrefix(cleaned, "```") {
		lines := strings.SplitN(cleaned, "\n", 2)
		if len(lines) == 2 {
			cleaned = lines[1]
		} else {
			cleaned = ""
		}
	}

	if strings.HasSuffix(cleaned, "```") {
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
	}

	return strings.TrimSpace(cleaned)
}

// ExtractJSON trims explanatory text around a JSON body. It only crops; it
// never attempts to repair genuinely malformed JSON.
func ExtractJSON(text string) string {
	cleaned := StripCodeFences(text)

	start := len(cleaned)
	for _, marker := range []string{"{", "["} {
		if idx := strings.Index(cleaned, marker); idx != -1 && idx < start {
			start = idx
		}
	}
	if start == len(cleaned) {
		start = 0
	}
	trimmed := cleaned[start:]

	end := -1
	for _, marker := range []string{"}", "]"} {
		if idx := strings.LastIndex(trimmed, marker); idx > end {
			end = idx
		}
	}
	if end == -1 {
		end = len(trimmed) - 1
	}

	return strings.TrimSpace(trimmed[:end+1])
}

// DecodeJSON cleans a model response and unmarshals the JSON body into v.
func DecodeJSON(text string, v any) error {
	cleaned := ExtractJSON(text)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		snippet := cleaned
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return fmt.Errorf("decode model JSON: %w (response starts %q)", err, snippet)
	}
	return nil
}

// ExtractPythonBlock pulls the first fenced python block out of free text.
func ExtractPythonBlock(text string) (string, bool) {
	if m := pythonFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}
