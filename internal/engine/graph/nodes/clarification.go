package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/insightbot-core/engine/internal/engine/model"
	logx "github.com/insightbot-core/engine/pkg/logger"
)

// ClarificationNode turns a flagged ambiguous mention into a question
// the user can answer by column name or by number. The pending
// clarification fields stay set so the next turn can resolve the answer.
type ClarificationNode struct{}

func (n *ClarificationNode) Run(ctx context.Context, state *model.ConversationState) (*model.ConversationState, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "By %q, which column do you mean?\n", state.ClarificationMention)
	for i, opt := range state.ClarificationOptions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, opt)
	}
	b.WriteString("Reply with the column name or its number.")

	state.AppendAssistant(b.String())
	state.Snapshots = append(state.Snapshots, model.TurnSnapshot{})

	logx.Debug().
		Str("session_id", state.SessionID).
		Str("mention", state.ClarificationMention).
		Int("options", len(state.ClarificationOptions)).
		Msg("clarification question asked")
	return state, nil
}
