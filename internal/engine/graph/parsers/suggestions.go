package parsers

import (
	"strings"
)

// maxSuggestions caps rendered follow-up suggestions.
const maxSuggestions = 3

// ParseSuggestions splits the suggestion model output into at most
// three clean lines, stripping bullets and numbering.
func ParseSuggestions(content string) []string {
	var out []string
	for _, line := range strings.Split(stripFences(content), "\n") {
		s := strings.TrimSpace(line)
		s = strings.TrimLeft(s, "0123456789.-)>* ")
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
