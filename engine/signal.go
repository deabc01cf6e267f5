package engine

import "github.com/tidwall/gjson"

// DefaultFlagKey is the boolean key scanned for in persona replies when no
// other key is configured.
const DefaultFlagKey = "goal_achieved"

// SignalExtractor detects a termination signal in a persona reply. found
// reports whether a signal was present at all; value is its boolean payload.
type SignalExtractor interface {
	Extract(text string) (value bool, found bool)
}

// FlagExtractor scans free-form text for an embedded JSON object carrying a
// boolean flag under a configurable key. The first syntactically valid object
// that carries the key wins; later objects are ignored. Scraping JSON out of
// prose is fragile, which is why this lives behind the SignalExtractor
// interface rather than inside the engine loop.
type FlagExtractor struct {
	key string
}

// NewFlagExtractor returns a FlagExtractor for the given key. An empty key
// selects DefaultFlagKey.
func NewFlagExtractor(key string) *FlagExtractor {
	if key == "" {
		key = DefaultFlagKey
	}
	return &FlagExtractor{key: key}
}

// Key returns the flag key this extractor scans for.
func (e *FlagExtractor) Key() string { return e.key }

// Extract implements SignalExtractor.
func (e *FlagExtractor) Extract(text string) (bool, bool) {
	var value, found bool
	scanJSONObjects(text, func(raw string) bool {
		r := gjson.Get(raw, e.key)
		if r.Type != gjson.True && r.Type != gjson.False {
			return true
		}
		value = r.Bool()
		found = true
		return false
	})
	return value, found
}

// scanJSONObjects walks every balanced-brace candidate in text, invoking fn
// for each syntactically valid JSON object in order of appearance. fn returns
// false to stop the scan.
func scanJSONObjects(text string, fn func(raw string) bool) {
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
						if !fn(candidate) {
							return
						}
						start = i // resume after this object
					}
					i = len(text)
				}
			}
		}
	}
}
