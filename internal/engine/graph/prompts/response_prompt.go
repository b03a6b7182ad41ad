package prompts

import (
	"context"
	_ "embed"
	"strings"
)

//go:embed template/summarizer_prompt.txt
var summarizerSystemPrompt string

//go:embed template/suggestion_prompt.txt
var suggestionSystemPrompt string

//go:embed template/smalltalk_prompt.txt
var smallTalkSystemPrompt string

// RenderSummarizerSystem renders the result summarization prompt.
func RenderSummarizerSystem(ctx context.Context, query, resultText string) (string, error) {
	content := strings.NewReplacer(
		"{query}", query,
		"{result}", resultText,
	).Replace(summarizerSystemPrompt)
	return renderSystem(ctx, content)
}

// RenderSuggestionSystem renders the follow-up suggestion prompt.
func RenderSuggestionSystem(ctx context.Context, schemaText, lastQuery, intent string) (string, error) {
	content := strings.NewReplacer(
		"{schema}", schemaText,
		"{last_query}", lastQuery,
		"{intent}", intent,
	).Replace(suggestionSystemPrompt)
	return renderSystem(ctx, content)
}

// RenderSmallTalkSystem renders the small-talk persona prompt.
func RenderSmallTalkSystem(ctx context.Context, columns []string) (string, error) {
	cols := strings.Join(columns, ", ")
	if cols == "" {
		cols = "(no dataset loaded)"
	}
	content := strings.NewReplacer(
		"{columns}", cols,
	).Replace(smallTalkSystemPrompt)
	return renderSystem(ctx, content)
}
