package util

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderRe matches $name and ${name} template placeholders. A doubled
// dollar sign ($$) escapes a literal dollar.
var placeholderRe = regexp.MustCompile(`\$(\$|\{[A-Za-z_][A-Za-z0-9_]*\}|[A-Za-z_][A-Za-z0-9_]*)`)

// Substitute replaces $name / ${name} placeholders in text with values from
// vars. Every referenced placeholder must be present in vars; a missing
// variable is an error so broken prompt templates fail loudly instead of
// producing prompts with holes.
func Substitute(text string, vars map[string]string) (string, error) {
	var missing []string

	out := placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		name := m[1:]
		if name == "$" {
			return "$"
		}
		name = strings.TrimPrefix(name, "{")
		name = strings.TrimSuffix(name, "}")
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("template references undefined variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
