package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

// forbiddenPatterns is the static deny-list checked before execution.
// Generated snippets come from a language model; even though the snippet
// language cannot express these operations, a misbehaving model may emit
// them verbatim and they must be rejected up front, never mid-run.
var forbiddenPatterns = []struct {
	re  *regexp.Regexp
	msg string
}{
	{regexp.MustCompile(`\.plot\s*\(`), "plotting operations are not allowed; use chart tools instead"},
	{regexp.MustCompile(`\.to_csv\s*\(`), "file writes are not allowed"},
	{regexp.MustCompile(`\.to_excel\s*\(`), "file writes are not allowed"},
	{regexp.MustCompile(`\.to_json\s*\(`), "file writes are not allowed"},
	{regexp.MustCompile(`\.to_parquet\s*\(`), "file writes are not allowed"},
	{regexp.MustCompile(`\bopen\s*\(`), "file operations are not allowed"},
	{regexp.MustCompile(`__import__`), "dynamic imports are not allowed"},
	{regexp.MustCompile(`\beval\s*\(`), "eval is not allowed"},
	{regexp.MustCompile(`\bexec\s*\(`), "exec is not allowed"},
	{regexp.MustCompile(`\bsubprocess\b`), "subprocess operations are not allowed"},
	{regexp.MustCompile(`\bos\s*\.`), "OS operations are not allowed"},
	{regexp.MustCompile(`\bsys\s*\.`), "system operations are not allowed"},
	{regexp.MustCompile(`\bimport\s+os\b`), "OS module imports are not allowed"},
	{regexp.MustCompile(`\bimport\s+sys\b`), "system module imports are not allowed"},
	{regexp.MustCompile(`\bimport\s+subprocess\b`), "subprocess imports are not allowed"},
}

// ValidateCode rejects snippets matching the deny-list, case-insensitively.
func ValidateCode(code string) error {
	lower := strings.ToLower(code)
	for _, p := range forbiddenPatterns {
		if p.re.MatchString(lower) {
			return fmt.Errorf("%s", p.msg)
		}
	}
	return nil
}

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\n?(.*?)```")

// StripFences removes surrounding markdown code-fence markup, if any.
func StripFences(code string) string {
	if m := fenceRe.FindStringSubmatch(code); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(code)
}

var assignRe = regexp.MustCompile(`^\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*=`)

// EnsureResultBinding makes sure the snippet binds the reserved result
// name. When the last statement binds a different name, an aliasing
// assignment is appended; when the last line is a bare pipeline, it is
// rewritten into a result assignment. Best effort only.
func EnsureResultBinding(code string) string {
	lines := strings.Split(strings.TrimSpace(code), "\n")
	lastTarget := ""
	for _, line := range lines {
		if m := assignRe.FindStringSubmatch(line); m != nil {
			if m[1] == ResultVar {
				return code
			}
			lastTarget = m[1]
		}
	}
	if lastTarget != "" {
		return code + "\n" + ResultVar + " = " + lastTarget
	}
	// Bare pipeline with no assignment at all.
	last := strings.TrimSpace(lines[len(lines)-1])
	if last != "" {
		lines[len(lines)-1] = ResultVar + " = " + last
		return strings.Join(lines, "\n")
	}
	return code
}
