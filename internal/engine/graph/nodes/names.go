package nodes

// Node names used when wiring the conversation graph.
const (
	NodeRouter        = "Router"
	NodeClarification = "Clarification"
	NodeAnalyzer      = "Analyzer"
	NodePlanner       = "Planner"
	NodeInsight       = "Insight"
	NodeViz           = "Visualization"
	NodeResponder     = "Responder"
	NodeSuggestion    = "Suggestion"
)
