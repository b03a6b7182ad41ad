package prompts

import (
	"context"
	_ "embed"
	"strings"
)

//go:embed template/analyzer_prompt.txt
var analyzerSystemPrompt string

//go:embed template/planner_prompt.txt
var plannerSystemPrompt string

//go:embed template/codegen_prompt.txt
var codegenSystemPrompt string

// RenderAnalyzerSystem renders the tool-dispatch system prompt.
func RenderAnalyzerSystem(ctx context.Context, schemaText, profileText string) (string, error) {
	content := strings.NewReplacer(
		"{schema}", schemaText,
		"{profile}", profileText,
	).Replace(analyzerSystemPrompt)
	return renderSystem(ctx, content)
}

// RenderPlannerSystem renders the multi-step planning system prompt.
func RenderPlannerSystem(ctx context.Context, schemaText string) (string, error) {
	content := strings.NewReplacer(
		"{schema}", schemaText,
	).Replace(plannerSystemPrompt)
	return renderSystem(ctx, content)
}

// RenderCodeGenSystem renders the snippet generation system prompt.
func RenderCodeGenSystem(ctx context.Context, schemaText, profileText string) (string, error) {
	content := strings.NewReplacer(
		"{schema}", schemaText,
		"{profile}", profileText,
	).Replace(codegenSystemPrompt)
	return renderSystem(ctx, content)
}
