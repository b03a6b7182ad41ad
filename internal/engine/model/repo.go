package model

import (
	"context"

	"github.com/insightbot-core/engine/internal/dataset"
)

type StateRepository interface {
	// LoadState retrieves the checkpointed state for a session. A session
	// with no checkpoint yields a fresh state, not an error.
	LoadState(ctx context.Context, sessionID string) (*ConversationState, error)

	// SaveState checkpoints the state under its session ID.
	SaveState(ctx context.Context, state *ConversationState) error

	// ClearState removes the checkpoint for a session.
	ClearState(ctx context.Context, sessionID string) error
}

type TableStore interface {
	// SaveTables stores the named tables for a session.
	SaveTables(ctx context.Context, sessionID string, tables map[string]*dataset.Table) error

	// LoadTables retrieves the session's tables. A session that never
	// uploaded tables yields a not-found error.
	LoadTables(ctx context.Context, sessionID string) (map[string]*dataset.Table, error)
}
