package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	errx "github.com/insightbot-core/engine/internal/core/error"
	"github.com/insightbot-core/engine/internal/dataset"
	"github.com/insightbot-core/engine/internal/engine/graph"
	"github.com/insightbot-core/engine/internal/engine/graph/observers"
	"github.com/insightbot-core/engine/internal/engine/model"
	logx "github.com/insightbot-core/engine/pkg/logger"
)

// Config holds everything the engine needs end-to-end.
type Config struct {
	APIKey  string
	BaseURL string

	Models       model.ModelConfigs
	Conversation model.ConversationConfig

	StateRepo model.StateRepository
	Tables    model.TableStore
}

// Engine processes conversation turns: it checkpoints state per
// session and runs one traversal of the conversation graph per user
// message.
type Engine struct {
	runnable    compose.Runnable[*model.ConversationState, *model.ConversationState]
	states      model.StateRepository
	tables      model.TableStore
	maxMessages int
}

// New composes the model callers, compiles the graph, and returns a
// ready engine.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.StateRepo == nil {
		return nil, fmt.Errorf("state repository is nil")
	}

	deps, err := graph.NewDeps(ctx, graph.Config{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		Models:       cfg.Models,
		Conversation: cfg.Conversation,
		Tables:       cfg.Tables,
	})
	if err != nil {
		return nil, err
	}
	runnable, err := graph.BuildGraph(ctx, deps, cfg.Conversation.Graph.MaxRunSteps)
	if err != nil {
		return nil, err
	}

	return &Engine{
		runnable:    runnable,
		states:      cfg.StateRepo,
		tables:      cfg.Tables,
		maxMessages: cfg.Conversation.MaxMessages,
	}, nil
}

// LoadDataset stores the session's tables and resets any analysis
// context that referred to the previous dataset.
func (e *Engine) LoadDataset(ctx context.Context, sessionID string, tables map[string]*dataset.Table) error {
	if err := e.tables.SaveTables(ctx, sessionID, tables); err != nil {
		return err
	}
	state, err := e.states.LoadState(ctx, sessionID)
	if err != nil {
		return err
	}
	state.Context = model.ConversationContext{}
	state.OperationHistory = nil
	state.NeedsClarification = false
	state.ClarificationOptions = nil
	state.ClarificationMention = ""
	state.ClarificationOriginalQuery = ""
	return e.states.SaveState(ctx, state)
}

// Reset discards the session checkpoint and tables.
func (e *Engine) Reset(ctx context.Context, sessionID string) error {
	return e.states.ClearState(ctx, sessionID)
}

// ProcessTurn runs one conversation turn. The returned state carries
// the appended assistant message, the turn's snapshot, and follow-up
// suggestions; it has already been checkpointed.
func (e *Engine) ProcessTurn(ctx context.Context, sessionID, message string) (*model.ConversationState, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("empty message")
	}

	state, err := e.states.LoadState(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state.BeginTurn(message)
	e.trimHistory(state)

	tables, err := e.tables.LoadTables(ctx, sessionID)
	if err != nil {
		// a dataset-less session can still hold a conversation
		if !errx.NotFound(err) {
			return nil, err
		}
		tables = map[string]*dataset.Table{}
	}
	state.Schema = dataset.BuildSchema(tables)
	state.Profile = dataset.BuildProfile(tables)

	out, err := e.runnable.Invoke(ctx, state, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("turn traversal failed")
		return nil, err
	}

	if err := e.states.SaveState(ctx, out); err != nil {
		// the reply was produced; losing the checkpoint only costs continuity
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to checkpoint state")
	}

	logx.Debug().
		Str("session_id", sessionID).
		Str("intent", out.Intent).
		Float64("total_cost_usd", out.TotalCostUSD).
		Msg("turn processed")
	return out, nil
}

// trimHistory drops the oldest messages past the configured cap.
func (e *Engine) trimHistory(state *model.ConversationState) {
	if e.maxMessages <= 0 || len(state.Messages) <= e.maxMessages {
		return
	}
	state.Messages = state.Messages[len(state.Messages)-e.maxMessages:]
}
