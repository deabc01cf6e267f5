package generate

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// ExtractJSONObject returns the first syntactically valid JSON object
// embedded anywhere in text. Models frequently wrap their payload in prose or
// markdown code fences; scanning for balanced braces and validating each
// candidate tolerates both.
func ExtractJSONObject(text string) (string, error) {
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(text); i++ {
			c := text[i]
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				if inString {
					escaped = true
				}
			case '"':
				inString = !inString
			case '{':
				if !inString {
					depth++
				}
			case '}':
				if inString {
					continue
				}
				depth--
				if depth == 0 {
					candidate := text[start : i+1]
					if gjson.Valid(candidate) {
						return candidate, nil
					}
					i = len(text) // abandon this start position
				}
			}
		}
	}
	return "", fmt.Errorf("no valid JSON object found in model output")
}
