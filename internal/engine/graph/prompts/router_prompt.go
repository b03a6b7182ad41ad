package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/router_prompt.txt
var routerSystemPrompt string

//go:embed template/resolver_prompt.txt
var resolverSystemPrompt string

// renderSystem routes a finished system prompt through the Eino prompt
// component so prompt callbacks fire, and returns the final string.
func renderSystem(ctx context.Context, content string) (string, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}

// RenderRouterSystem renders the intent classification system prompt.
// Known tokens are replaced manually to avoid interfering with the JSON
// braces in the template.
func RenderRouterSystem(ctx context.Context, schemaText, operationHistory string) (string, error) {
	if operationHistory == "" {
		operationHistory = "(none)"
	}
	content := strings.NewReplacer(
		"{schema}", schemaText,
		"{operation_history}", operationHistory,
	).Replace(routerSystemPrompt)
	return renderSystem(ctx, content)
}

// RenderResolverSystem renders the follow-up resolution system prompt.
func RenderResolverSystem(ctx context.Context, lastQuery, lastSummary string) (string, error) {
	if lastSummary == "" {
		lastSummary = "(none)"
	}
	content := strings.NewReplacer(
		"{last_query}", lastQuery,
		"{last_summary}", lastSummary,
	).Replace(resolverSystemPrompt)
	return renderSystem(ctx, content)
}
