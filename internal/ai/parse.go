package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LLMParseError indicates the model's reply was not the JSON we asked for.
// Callers fall back to the fixed evaluation rather than failing.
type LLMParseError struct {
	Reason string
}

func (e *LLMParseError) Error() string {
	return fmt.Sprintf("llm parse error: %s", e.Reason)
}

// cleanResponse strips markdown code fences and isolates the first balanced
// JSON object. Models wrap JSON in fences or prose often enough that this is
// the normal path, not the exception.
func cleanResponse(resp string) string {
	cleaned := strings.TrimSpace(resp)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	if jsonStr, ok := extractFirstJSONObject(cleaned); ok {
		cleaned = jsonStr
	}
	return cleaned
}

// decodeStrict unmarshals into dst after cleaning, wrapping any failure in
// LLMParseError.
func decodeStrict(resp string, dst interface{}) error {
	cleaned := cleanResponse(resp)
	if err := json.Unmarshal([]byte(cleaned), dst); err != nil {
		return &LLMParseError{Reason: err.Error()}
	}
	return nil
}

// extractFirstJSONObject finds the first outermost balanced {...}
func extractFirstJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if char == '{' {
				depth++
			} else if char == '}' {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}

	return "", false
}
