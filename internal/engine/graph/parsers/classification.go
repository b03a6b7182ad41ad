package parsers

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/insightbot-core/engine/internal/engine/model"
	logx "github.com/insightbot-core/engine/pkg/logger"
)

// limit pathological model output
const maxContentLen = 64 * 1024

var fenceRe = regexp.MustCompile("(?s)```(?:json|[a-zA-Z]*)?\n?(.*?)```")

// stripFences unwraps a fenced code block if the content carries one.
func stripFences(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// extractJSONObject returns the first balanced {...} span in s, or "".
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// Classification is the router model's parsed output.
type Classification struct {
	Intent           string   `json:"intent"`
	SubIntent        string   `json:"sub_intent"`
	PreferChart      bool     `json:"prefer_chart"`
	MentionedColumns []string `json:"mentioned_columns"`
	Operations       []string `json:"operations"`
	Confidence       float64  `json:"confidence"`
	IsFollowUp       bool     `json:"is_follow_up"`
}

var validIntents = map[string]struct{}{
	model.IntentDataQuery:     {},
	model.IntentVisualization: {},
	model.IntentSmallTalk:     {},
	model.IntentReport:        {},
	model.IntentSummarizeLast: {},
}

var validSubIntents = map[string]struct{}{
	model.SubIntentCompare:      {},
	model.SubIntentTrend:        {},
	model.SubIntentCorrelate:    {},
	model.SubIntentSegment:      {},
	model.SubIntentDistribution: {},
	model.SubIntentFilter:       {},
	model.SubIntentReport:       {},
	model.SubIntentGeneral:      {},
}

// ParseClassification parses the router output. Malformed output never
// fails the turn: any parse or validation problem falls back to a plain
// data query so the pipeline still answers.
func ParseClassification(content string) Classification {
	fallback := Classification{
		Intent:     model.IntentDataQuery,
		SubIntent:  model.SubIntentGeneral,
		Confidence: 1.0,
	}
	if len(content) > maxContentLen {
		content = content[:maxContentLen]
	}

	raw := extractJSONObject(stripFences(content))
	if raw == "" {
		logx.Warn().Str("component", "classification_parser").Msg("no JSON object in router output, falling back to data_query")
		return fallback
	}

	var c Classification
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		logx.Warn().Err(err).Str("component", "classification_parser").Msg("router output unmarshal failed, falling back to data_query")
		return fallback
	}

	c.Intent = strings.ToLower(strings.TrimSpace(c.Intent))
	if _, ok := validIntents[c.Intent]; !ok {
		logx.Warn().Str("component", "classification_parser").Str("intent", c.Intent).Msg("unknown intent, falling back to data_query")
		c.Intent = model.IntentDataQuery
	}
	c.SubIntent = strings.ToLower(strings.TrimSpace(c.SubIntent))
	if _, ok := validSubIntents[c.SubIntent]; !ok {
		c.SubIntent = model.SubIntentGeneral
	}
	if c.Confidence <= 0 || c.Confidence > 1 {
		c.Confidence = 1.0
	}
	return c
}
