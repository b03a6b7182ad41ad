package parsers

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/insightbot-core/engine/internal/engine/model"
)

// ParsePlan parses the planner output into ordered steps. The caller
// decides what to do when parsing fails (single-step fallback).
func ParsePlan(content string) ([]model.PlanStep, error) {
	if len(content) > maxContentLen {
		content = content[:maxContentLen]
	}
	s := stripFences(content)

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in plan output")
	}

	var steps []model.PlanStep
	if err := json.Unmarshal([]byte(s[start:end+1]), &steps); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("empty plan")
	}

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Step < steps[j].Step })
	for i := range steps {
		steps[i].Step = i + 1
		steps[i].Code = strings.TrimSpace(steps[i].Code)
		if steps[i].Code == "" {
			return nil, fmt.Errorf("plan step %d has no code", i+1)
		}
		if steps[i].OutputVar == "" {
			steps[i].OutputVar = codeTarget(steps[i].Code)
		}
	}
	return steps, nil
}

// codeTarget returns the binding name on the left of a snippet line.
func codeTarget(code string) string {
	if eq := strings.Index(code, "="); eq > 0 {
		return strings.TrimSpace(code[:eq])
	}
	return ""
}
