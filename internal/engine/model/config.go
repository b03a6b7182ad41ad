package model

// ================ Config ================
type ConversationConfig struct {
	TTL         string `envconfig:"CONVERSATION_TTL" default:"15m"`
	MaxMessages int    `envconfig:"CONVERSATION_MAX_MESSAGES" default:"40"`
	Executor    struct {
		Timeout string `envconfig:"EXECUTOR_TIMEOUT" default:"10s"`
	}
	Graph struct {
		MaxRunSteps int `envconfig:"GRAPH_MAX_RUN_STEPS" default:"20"`
	}
}

// ModelRoleConfig is the shared shape of every model-role config.
type ModelRoleConfig struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

type RouterModelConfig struct {
	Model       string  `envconfig:"ROUTER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"ROUTER_MAX_TOKENS" default:"512"`
	Temperature float32 `envconfig:"ROUTER_TEMPERATURE" default:"0.0"`
}

type ResolverModelConfig struct {
	Model       string  `envconfig:"RESOLVER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"RESOLVER_MAX_TOKENS" default:"256"`
	Temperature float32 `envconfig:"RESOLVER_TEMPERATURE" default:"0.0"`
}

type AnalyzerModelConfig struct {
	Model       string  `envconfig:"ANALYZER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"ANALYZER_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"ANALYZER_TEMPERATURE" default:"0.1"`
}

type PlannerModelConfig struct {
	Model       string  `envconfig:"PLANNER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"PLANNER_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"PLANNER_TEMPERATURE" default:"0.1"`
}

type CodeGenModelConfig struct {
	Model       string  `envconfig:"CODEGEN_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"CODEGEN_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"CODEGEN_TEMPERATURE" default:"0.1"`
}

type SummarizerModelConfig struct {
	Model       string  `envconfig:"SUMMARIZER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"SUMMARIZER_MAX_TOKENS" default:"256"`
	Temperature float32 `envconfig:"SUMMARIZER_TEMPERATURE" default:"0.2"`
}

type SuggestionModelConfig struct {
	Model       string  `envconfig:"SUGGESTION_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"SUGGESTION_MAX_TOKENS" default:"128"`
	Temperature float32 `envconfig:"SUGGESTION_TEMPERATURE" default:"0.4"`
}

type SmallTalkModelConfig struct {
	Model       string  `envconfig:"SMALLTALK_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"SMALLTALK_MAX_TOKENS" default:"150"`
	Temperature float32 `envconfig:"SMALLTALK_TEMPERATURE" default:"0.7"`
}

// Role returns the generic shape of a role config.
func (c RouterModelConfig) Role() ModelRoleConfig {
	return ModelRoleConfig{Model: c.Model, MaxTokens: c.MaxTokens, Temperature: c.Temperature}
}
func (c ResolverModelConfig) Role() ModelRoleConfig {
	return ModelRoleConfig{Model: c.Model, MaxTokens: c.MaxTokens, Temperature: c.Temperature}
}
func (c AnalyzerModelConfig) Role() ModelRoleConfig {
	return ModelRoleConfig{Model: c.Model, MaxTokens: c.MaxTokens, Temperature: c.Temperature}
}
func (c PlannerModelConfig) Role() ModelRoleConfig {
	return ModelRoleConfig{Model: c.Model, MaxTokens: c.MaxTokens, Temperature: c.Temperature}
}
func (c CodeGenModelConfig) Role() ModelRoleConfig {
	return ModelRoleConfig{Model: c.Model, MaxTokens: c.MaxTokens, Temperature: c.Temperature}
}
func (c SummarizerModelConfig) Role() ModelRoleConfig {
	return ModelRoleConfig{Model: c.Model, MaxTokens: c.MaxTokens, Temperature: c.Temperature}
}
func (c SuggestionModelConfig) Role() ModelRoleConfig {
	return ModelRoleConfig{Model: c.Model, MaxTokens: c.MaxTokens, Temperature: c.Temperature}
}
func (c SmallTalkModelConfig) Role() ModelRoleConfig {
	return ModelRoleConfig{Model: c.Model, MaxTokens: c.MaxTokens, Temperature: c.Temperature}
}
// ModelConfigs bundles every model-role config for the engine.
type ModelConfigs struct {
	Router     RouterModelConfig
	Resolver   ResolverModelConfig
	Analyzer   AnalyzerModelConfig
	Planner    PlannerModelConfig
	CodeGen    CodeGenModelConfig
	Summarizer SummarizerModelConfig
	Suggestion SuggestionModelConfig
	SmallTalk  SmallTalkModelConfig
}
