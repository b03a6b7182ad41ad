package model

import (
	"strings"

	"github.com/insightbot-core/engine/internal/dataset"
	"github.com/insightbot-core/engine/internal/sandbox"
	"github.com/insightbot-core/engine/internal/viz"
)

// Intents produced by the router.
const (
	IntentDataQuery     = "data_query"
	IntentVisualization = "visualization_request"
	IntentSmallTalk     = "small_talk"
	IntentReport        = "report"
	IntentSummarizeLast = "summarize_last"
)

// Analytical sub-intents.
const (
	SubIntentCompare      = "compare"
	SubIntentTrend        = "trend"
	SubIntentCorrelate    = "correlate"
	SubIntentSegment      = "segment"
	SubIntentDistribution = "distribution"
	SubIntentFilter       = "filter"
	SubIntentReport       = "report"
	SubIntentGeneral      = "general"
)

// Operation names the selector can choose. The names double as the
// tool names bound to the selector model.
const (
	OpInsight           = "insight_tool"
	OpBarChart          = "bar_chart"
	OpLineChart         = "line_chart"
	OpScatterChart      = "scatter_chart"
	OpHistogram         = "histogram"
	OpAreaChart         = "area_chart"
	OpBoxChart          = "box_chart"
	OpHeatmapChart      = "heatmap_chart"
	OpCorrelationMatrix = "correlation_matrix"
	OpComboChart        = "combo_chart"
	OpDashboard         = "dashboard"
)

// ChartOps maps chart operation names to chart kinds.
var ChartOps = map[string]string{
	OpBarChart:          viz.KindBar,
	OpLineChart:         viz.KindLine,
	OpScatterChart:      viz.KindScatter,
	OpHistogram:         viz.KindHistogram,
	OpAreaChart:         viz.KindArea,
	OpBoxChart:          viz.KindBox,
	OpHeatmapChart:      viz.KindHeatmap,
	OpCorrelationMatrix: viz.KindCorrelation,
	OpComboChart:        viz.KindCombo,
	OpDashboard:         viz.KindDashboard,
}

// IsChartOp reports whether name is a chart operation.
func IsChartOp(name string) bool {
	_, ok := ChartOps[name]
	return ok
}

// Message roles in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one entry in the append-only message history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Entities are the column and operation mentions extracted by the router.
type Entities struct {
	MentionedColumns []string `json:"mentioned_columns,omitempty"`
	Operations       []string `json:"operations,omitempty"`
}

// SelectedOp is one downstream operation chosen by the selector.
type SelectedOp struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// StringArg returns a string argument of the op, or "".
func (op SelectedOp) StringArg(key string) string {
	if op.Args == nil {
		return ""
	}
	if s, ok := op.Args[key].(string); ok {
		return s
	}
	return ""
}

// PlanStep is one ordered step of a multi-step plan.
type PlanStep struct {
	Step        int    `json:"step"`
	Description string `json:"description"`
	Code        string `json:"code"`
	OutputVar   string `json:"output_var"`
}

// ErrorSuggestion carries "did you mean" recovery data for a
// column_not_found failure.
type ErrorSuggestion struct {
	Mention    string   `json:"mention"`
	Candidates []string `json:"candidates"`
}

// ConversationContext is the continuity context used to resolve short
// follow-up questions.
type ConversationContext struct {
	LastQuery          string `json:"last_query,omitempty"`
	LastInsightSummary string `json:"last_insight_summary,omitempty"`
}

// Empty reports whether there is no prior turn to resolve against.
func (c ConversationContext) Empty() bool {
	return c.LastQuery == "" && c.LastInsightSummary == ""
}

// TurnSnapshot records the artifacts of one assistant reply so the
// display layer can reconstruct every prior turn.
type TurnSnapshot struct {
	ChartSpec     *viz.ChartSpec  `json:"chart_spec,omitempty"`
	InsightResult *sandbox.Result `json:"insight_result,omitempty"`
	GeneratedCode string          `json:"generated_code,omitempty"`
	ChartError    string          `json:"chart_error,omitempty"`
}

// ConversationState is the single record threaded through every stage
// of one turn and checkpointed per session between turns.
type ConversationState struct {
	SessionID string        `json:"session_id"`
	Messages  []ChatMessage `json:"messages"`

	Schema  dataset.Schema  `json:"schema,omitempty"`
	Profile dataset.Profile `json:"profile,omitempty"`

	// OperationHistory lists recent operation names for router context.
	OperationHistory []string `json:"operation_history,omitempty"`

	Intent      string   `json:"intent,omitempty"`
	SubIntent   string   `json:"sub_intent,omitempty"`
	PreferChart bool     `json:"prefer_chart,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
	IsFollowUp  bool     `json:"is_follow_up,omitempty"`
	Entities    Entities `json:"entities,omitempty"`

	// EffectiveQuery overrides the last raw message for downstream
	// stages after follow-up or clarification resolution.
	EffectiveQuery string `json:"effective_query,omitempty"`

	SelectedOps []SelectedOp `json:"selected_ops,omitempty"`
	Plan        []PlanStep   `json:"plan,omitempty"`

	Insight       string          `json:"insight,omitempty"`
	InsightResult *sandbox.Result `json:"insight_result,omitempty"`
	GeneratedCode string          `json:"generated_code,omitempty"`

	ChartSpec   *viz.ChartSpec `json:"chart_spec,omitempty"`
	Figure      *viz.Figure    `json:"figure,omitempty"`
	ChartReason string         `json:"chart_reason,omitempty"`
	ChartError  string         `json:"chart_error,omitempty"`

	Error           string           `json:"error,omitempty"`
	ErrorSuggestion *ErrorSuggestion `json:"error_suggestion,omitempty"`

	NeedsClarification         bool     `json:"needs_clarification,omitempty"`
	ClarificationOptions       []string `json:"clarification_options,omitempty"`
	ClarificationMention       string   `json:"clarification_mention,omitempty"`
	ClarificationOriginalQuery string   `json:"clarification_original_query,omitempty"`

	Context     ConversationContext `json:"context,omitempty"`
	Suggestions []string            `json:"suggestions,omitempty"`
	Snapshots   []TurnSnapshot      `json:"snapshots,omitempty"`

	// TotalCostUSD accumulates model usage cost across the session.
	TotalCostUSD float64 `json:"total_cost_usd,omitempty"`
}

// NewConversationState creates the state for a fresh session.
func NewConversationState(sessionID string) *ConversationState {
	return &ConversationState{SessionID: sessionID}
}

// BeginTurn clears per-turn fields and appends the new user message.
// Clarification-pending fields, continuity context, history, and
// snapshots survive across turns.
func (s *ConversationState) BeginTurn(userMessage string) {
	s.Intent = ""
	s.SubIntent = ""
	s.PreferChart = false
	s.Confidence = 0
	s.IsFollowUp = false
	s.Entities = Entities{}
	s.EffectiveQuery = ""
	s.SelectedOps = nil
	s.Plan = nil
	s.Insight = ""
	s.InsightResult = nil
	s.GeneratedCode = ""
	s.ChartSpec = nil
	s.Figure = nil
	s.ChartReason = ""
	s.ChartError = ""
	s.Error = ""
	s.ErrorSuggestion = nil
	s.Suggestions = nil
	s.Messages = append(s.Messages, ChatMessage{Role: RoleUser, Content: userMessage})
}

// LastUserMessage returns the content of the latest user message.
func (s *ConversationState) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// CurrentQuery is the query downstream stages must use: the effective
// query when one was resolved this turn, else the last raw message.
func (s *ConversationState) CurrentQuery() string {
	if q := strings.TrimSpace(s.EffectiveQuery); q != "" {
		return q
	}
	return strings.TrimSpace(s.LastUserMessage())
}

// AppendAssistant appends an assistant reply to history.
func (s *ConversationState) AppendAssistant(content string) {
	s.Messages = append(s.Messages, ChatMessage{Role: RoleAssistant, Content: content})
}

// InsightOp returns the selected data-analysis operation, if any.
func (s *ConversationState) InsightOp() (SelectedOp, bool) {
	for _, op := range s.SelectedOps {
		if op.Name == OpInsight {
			return op, true
		}
	}
	return SelectedOp{}, false
}

// ChartOp returns the selected chart operation, if any.
func (s *ConversationState) ChartOp() (SelectedOp, bool) {
	for _, op := range s.SelectedOps {
		if IsChartOp(op.Name) {
			return op, true
		}
	}
	return SelectedOp{}, false
}
